// Package tracing records timed span trees for multi-step operations, such as
// publishing one emote, and writes them to slog when the root span finishes.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type contextKey struct{}

// Span is a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	Err       error
	mu        sync.Mutex
}

// StartSpan creates a root span. An empty traceID is replaced by a random
// UUID.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan creates a span under the one in ctx. Without a parent the
// child starts its own trace.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	child := &Span{
		Name:      name,
		TraceID:   parent.TraceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()

	return context.WithValue(ctx, contextKey{}, child), child
}

// End records the end time. Calling End twice keeps the first result.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.EndTime.IsZero() {
		return
	}
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// Fail marks the span as failed with err.
func (s *Span) Fail(err error) {
	s.mu.Lock()
	s.Err = err
	s.mu.Unlock()
}

func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the span tree, one record per span, depth first.
func (s *Span) Log() {
	s.log(slog.Default().With("component", "tracing"), 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, s.Attrs[k])
	}
	level := slog.LevelDebug
	if s.Err != nil {
		attrs = append(attrs, "error", s.Err)
		level = slog.LevelWarn
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Log(context.Background(), level, "span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
