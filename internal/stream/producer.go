// Package stream mirrors domain events onto Kafka so consumers outside this
// process (analytics, data warehouse loaders) can observe them. The mirror is
// best effort: the in-process bus stays the source of truth for reactions,
// and a mirror failure never affects sibling handlers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Envelope is the wire form of one mirrored domain event.
type Envelope struct {
	CorrelationID string          `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Producer publishes event envelopes to Kafka.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// ProducerConfig configures the Kafka producer.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
}

// DefaultProducerConfig returns sensible defaults for production.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "events.domain",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false, // Sync for reliability
	}
}

func NewProducer(config ProducerConfig, logger *slog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // Keyed by event type, keeps per-type order
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        config.Async,
		Compression:  kafka.Snappy,
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// Publish sends one envelope, keyed by event type.
func (p *Producer) Publish(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(env.EventType),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// PublishRaw sends an already-encoded value under the given key. Used for
// non-event payloads such as outbound call triggers.
func (p *Producer) PublishRaw(ctx context.Context, key string, value []byte) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close flushes pending batches and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
