package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kafka"
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	InlineSearches    int64            `json:"inline_searches"`
	APISearches       int64            `json:"api_searches"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
	EmotesPublished   int64            `json:"emotes_published"`
	EmotesSkipped     int64            `json:"emotes_skipped"`
	PublishedByKind   map[string]int64 `json:"published_by_kind"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	inlineSearches    atomic.Int64
	apiSearches       atomic.Int64
	zeroResults       atomic.Int64
	published         atomic.Int64
	skipped           atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	publishedByKind   map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		publishedByKind:   make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes events until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent returns the consumer callback feeding agg. Malformed and
// unknown events are logged and acknowledged.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := agg.Record(value); err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		}
		return nil
	}
}

// Record decodes one JSON event, dispatching on its type field.
func (a *Aggregator) Record(value []byte) error {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return fmt.Errorf("decoding event type: %w", err)
	}
	switch head.Type {
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		a.recordSearchEvent(event)
	case EventPublish:
		event, err := kafka.DecodeJSON[PublishEvent](value)
		if err != nil {
			return err
		}
		a.recordPublishEvent(event)
	default:
		return fmt.Errorf("unknown event type %q", head.Type)
	}
	return nil
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
	switch event.Source {
	case SourceInline:
		a.inlineSearches.Add(1)
	case SourceAPI:
		a.apiSearches.Add(1)
	}
	if event.Returned == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.Returned == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordPublishEvent(event PublishEvent) {
	if event.Skipped {
		a.skipped.Add(1)
		return
	}
	a.published.Add(1)
	a.mu.Lock()
	a.publishedByKind[event.Kind]++
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		InlineSearches:  a.inlineSearches.Load(),
		APISearches:     a.apiSearches.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		EmotesPublished: a.published.Load(),
		EmotesSkipped:   a.skipped.Load(),
		PublishedByKind: make(map[string]int64, len(a.publishedByKind)),
	}
	for kind, n := range a.publishedByKind {
		stats.PublishedByKind[kind] = n
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
