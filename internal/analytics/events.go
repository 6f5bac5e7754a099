package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kafka"
)

type EventType string

const (
	EventSearch  EventType = "search"
	EventPublish EventType = "publish"
)

// Search sources.
const (
	SourceInline = "inline"
	SourceAPI    = "api"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Page      int       `json:"page"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// PublishEvent is emitted for every eligible entry the ingestion run visits.
// Skipped entries were already published by an earlier run.
type PublishEvent struct {
	Type      EventType `json:"type"`
	EmoteID   string    `json:"emote_id"`
	Ref       string    `json:"ref"`
	Kind      string    `json:"kind"`
	Skipped   bool      `json:"skipped"`
	SizeBytes int       `json:"size_bytes,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// Tracker accepts analytics events without blocking the caller.
type Tracker interface {
	Track(event any)
}

// Discard is the Tracker used when analytics is disabled.
type Discard struct{}

func (Discard) Track(any) {}

// toKafkaEvent keys publish events by emote so one emote's history stays on
// one partition, and search events by query.
func toKafkaEvent(event any) kafka.Event {
	switch e := event.(type) {
	case SearchEvent:
		return kafka.Event{Key: e.Query, Type: string(EventSearch), Value: e}
	case *SearchEvent:
		return kafka.Event{Key: e.Query, Type: string(EventSearch), Value: e}
	case PublishEvent:
		return kafka.Event{Key: e.EmoteID, Type: string(EventPublish), Value: e}
	case *PublishEvent:
		return kafka.Event{Key: e.EmoteID, Type: string(EventPublish), Value: e}
	default:
		return kafka.Event{Key: "analytics", Value: e}
	}
}
