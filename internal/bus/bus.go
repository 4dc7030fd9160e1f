// Package bus provides event bus implementations for service notifications.
package bus

import (
	"context"
	"time"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "search.completed").
	Type string `json:"type"`

	// Source is the service that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created.
	Timestamp int64 `json:"timestamp"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event with the current timestamp.
func NewEvent(id, eventType, source string, payload any) Event {
	return Event{
		ID:        id,
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Topics for service events.
const (
	// TopicSearchCompleted carries per-query outcome summaries.
	TopicSearchCompleted = "search.completed"

	// TopicDocumentIndexed carries page upsert notifications.
	TopicDocumentIndexed = "document.indexed"
)

// SearchCompletedPayload summarizes one completed search for downstream
// consumers (analytics, audit).
type SearchCompletedPayload struct {
	Query         string  `json:"query"`
	Mode          string  `json:"mode"`
	Results       int     `json:"results"`
	RerankedCount int     `json:"reranked_count"`
	DroppedCount  int     `json:"dropped_count"`
	TotalTimeMs   float64 `json:"total_time_ms"`
}

// DocumentIndexedPayload describes a batch of upserted pages.
type DocumentIndexedPayload struct {
	Modality string `json:"modality"`
	Pages    int    `json:"pages"`
}
