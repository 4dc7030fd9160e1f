package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sightlinehq/sightline/internal/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "text")
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	received := make(chan Event, 1)
	err := b.Subscribe(context.Background(), TopicSearchCompleted, func(_ context.Context, e Event) error {
		received <- e
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	event := NewEvent("ev-1", TopicSearchCompleted, "test", SearchCompletedPayload{Query: "q"})
	if err := b.Publish(context.Background(), TopicSearchCompleted, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case got := <-received:
		if got.ID != "ev-1" {
			t.Errorf("expected event ev-1, got %s", got.ID)
		}
		if got.Timestamp == 0 {
			t.Error("expected a timestamp on the event")
		}
	case <-time.After(time.Second):
		t.Fatal("handler never received the event")
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	b := NewMemoryBus(testLogger())

	var mu sync.Mutex
	var delivered int
	for i := 0; i < 3; i++ {
		err := b.Subscribe(context.Background(), TopicDocumentIndexed, func(_ context.Context, _ Event) error {
			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe %d failed: %v", i, err)
		}
	}

	event := NewEvent("ev-2", TopicDocumentIndexed, "test", nil)
	if err := b.Publish(context.Background(), TopicDocumentIndexed, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Close waits for in-flight handlers.
	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered != 3 {
		t.Errorf("expected 3 deliveries, got %d", delivered)
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	event := NewEvent("ev-3", TopicSearchCompleted, "test", nil)
	if err := b.Publish(context.Background(), TopicSearchCompleted, event); err != nil {
		t.Errorf("publishing without subscribers must not fail: %v", err)
	}
}

func TestMemoryBus_HandlerErrorDoesNotPropagate(t *testing.T) {
	b := NewMemoryBus(testLogger())

	err := b.Subscribe(context.Background(), TopicSearchCompleted, func(_ context.Context, _ Event) error {
		return errors.New("handler exploded")
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	event := NewEvent("ev-4", TopicSearchCompleted, "test", nil)
	if err := b.Publish(context.Background(), TopicSearchCompleted, event); err != nil {
		t.Errorf("a failing handler must not fail the publish: %v", err)
	}

	b.Close()
}

func TestMemoryBus_ClosedRejectsOperations(t *testing.T) {
	b := NewMemoryBus(testLogger())
	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	event := NewEvent("ev-5", TopicSearchCompleted, "test", nil)
	if err := b.Publish(context.Background(), TopicSearchCompleted, event); err == nil {
		t.Error("expected publish on a closed bus to fail")
	}
	err := b.Subscribe(context.Background(), TopicSearchCompleted, func(_ context.Context, _ Event) error {
		return nil
	})
	if err == nil {
		t.Error("expected subscribe on a closed bus to fail")
	}

	// Closing twice is a no-op.
	if err := b.Close(); err != nil {
		t.Errorf("second close must not fail: %v", err)
	}
}
