package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"

	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
)

// KafkaBus is a Kafka-based event bus implementation.
type KafkaBus struct {
	config   KafkaConfig
	producer sarama.SyncProducer
	consumer sarama.ConsumerGroup
	client   sarama.Client
	log      *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	consumerWg   sync.WaitGroup
	consumerStop chan struct{}
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string      // Kafka broker addresses
	ConsumerGroup string        // Consumer group ID
	ClientID      string        // Client identifier
	Version       string        // Kafka version (e.g., "2.8.0")
	Timeout       time.Duration // Request timeout (default: 30s)
}

// NewKafkaBus creates a new Kafka-based event bus.
func NewKafkaBus(cfg KafkaConfig, log *logger.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.ValidationError("kafka brokers cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, apperrors.ValidationError("kafka consumer group cannot be empty")
	}
	if log == nil {
		log = logger.Default()
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "sightline-bus"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "invalid kafka version", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kafkaConfig.Consumer.Return.Errors = true
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "failed to create kafka client", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "failed to create kafka producer", err)
	}

	consumer, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		producer.Close()
		client.Close()
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "failed to create kafka consumer group", err)
	}

	return &KafkaBus{
		config:       cfg,
		producer:     producer,
		consumer:     consumer,
		client:       client,
		log:          log,
		handlers:     make(map[string][]Handler),
		consumerStop: make(chan struct{}),
	}, nil
}

// Publish publishes an event to a Kafka topic.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return apperrors.ServiceUnavailableError("bus is closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return apperrors.InternalError("failed to marshal event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
		Key:   sarama.StringEncoder(event.ID), // Event ID as partition key
	}

	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return apperrors.Wrap(apperrors.CodeUnavailable, "failed to publish event", err)
	}

	return nil
}

// Subscribe registers a handler and starts consuming the topic.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return apperrors.ServiceUnavailableError("bus is closed")
	}

	alreadyConsuming := len(b.handlers[topic]) > 0
	b.handlers[topic] = append(b.handlers[topic], handler)

	if alreadyConsuming {
		return nil
	}

	b.consumerWg.Add(1)
	go b.consumeLoop(topic)

	return nil
}

// consumeLoop runs the consumer group session for one topic until Close.
func (b *KafkaBus) consumeLoop(topic string) {
	defer b.consumerWg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-b.consumerStop
		cancel()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		err := b.consumer.Consume(ctx, []string{topic}, &consumerHandler{bus: b, topic: topic})
		if err != nil && ctx.Err() == nil {
			b.log.Warn("kafka consume error, retrying", "topic", topic, "error", err)
			time.Sleep(time.Second)
		}
	}
}

// consumerHandler dispatches consumed messages to subscribed handlers.
type consumerHandler struct {
	bus   *KafkaBus
	topic string
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			h.bus.log.Warn("failed to unmarshal event", "topic", h.topic, "error", err)
			session.MarkMessage(msg, "")
			continue
		}

		h.bus.mu.RLock()
		handlers := h.bus.handlers[h.topic]
		h.bus.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler(session.Context(), event); err != nil {
				h.bus.log.Warn("bus handler error", "topic", h.topic, "error", err)
			}
		}

		session.MarkMessage(msg, "")
	}
	return nil
}

// Close shuts down the producer, consumer and client.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.consumerStop)
	b.consumerWg.Wait()

	var firstErr error
	if err := b.consumer.Close(); err != nil {
		firstErr = err
	}
	if err := b.producer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := b.client.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
