package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kafka"
)

// BatchPublisher is the part of kafka.Producer the collector needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events in a channel and publishes them to Kafka in
// batches, flushing when a batch fills up or the flush interval elapses.
type Collector struct {
	producer      BatchPublisher
	eventCh       chan any
	batchSize     int
	flushInterval time.Duration
	dropped       atomic.Int64

	mu     sync.RWMutex
	closed bool

	logger *slog.Logger
	done   chan struct{}
}

func NewCollector(producer BatchPublisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		eventCh:       make(chan any, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.finalFlush(batch)
					return
				}
				batch = append(batch, toKafkaEvent(event))
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.finalFlush(c.drainInto(batch))
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues event, dropping it when the buffer is full or the collector
// is closed.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the final flush. Start must
// have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) drainInto(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafkaEvent(event))
		default:
			return batch
		}
	}
}

func (c *Collector) finalFlush(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

// flush publishes batch and returns an empty slice to reuse. Failed batches
// are logged and dropped.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics batch",
			"batch_size", len(batch),
			"error", err,
		)
	} else {
		c.logger.Debug("analytics batch flushed", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}
