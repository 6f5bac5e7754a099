// Package kafka carries analytics events between the emote bot and the
// analytics service over segmentio/kafka-go. Events travel as JSON with the
// event type in a message header.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message. A returned error is logged and the
// message is not committed; a later commit on the partition still moves past
// it.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads one topic as part of the configured consumer group.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	closeOnce sync.Once
	closeErr  error
	logger    *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: startOffset(cfg.StartOffset),
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", cfg.ConsumerGroup),
	}
}

// startOffset applies only to a group without committed offsets.
func startOffset(name string) int64 {
	if name == "first" {
		return kafka.FirstOffset
	}
	return kafka.LastOffset
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "event_type", header(msg, TypeHeader))
		log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			log.Error("failed to process message", "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("failed to commit message", "error", err)
		}
	}
}

// Close closes the reader. It is safe to call more than once.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.reader.Close() })
	return c.closeErr
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
