package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/segmentio/kafka-go"
)

// TypeHeader names the message header carrying Event.Type.
const TypeHeader = "event_type"

// Event is one analytics record. Key picks the partition, so events with the
// same key stay ordered.
type Event struct {
	Key   string
	Type  string
	Value any
}

// Producer writes events to one topic.
type Producer struct {
	writer  *kafka.Writer
	brokers []string
	logger  *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{
		writer:  w,
		brokers: cfg.Brokers,
		logger:  slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// PublishBatch writes events in one call. Events that cannot be encoded are
// logged and left out instead of failing the batch.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	messages := p.encode(events)
	if len(messages) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing %d events to %s: %w", len(messages), p.writer.Topic, err)
	}
	p.logger.Debug("batch published", "count", len(messages))
	return nil
}

func (p *Producer) encode(events []Event) []kafka.Message {
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			p.logger.Error("dropping unencodable event", "key", event.Key, "type", event.Type, "error", err)
			continue
		}
		msg := kafka.Message{Key: []byte(event.Key), Value: value}
		if event.Type != "" {
			msg.Headers = []kafka.Header{{Key: TypeHeader, Value: []byte(event.Type)}}
		}
		messages = append(messages, msg)
	}
	return messages
}

// Ping dials the first reachable broker. Health checks use it to report the
// analytics pipeline as degraded.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no brokers configured")
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
