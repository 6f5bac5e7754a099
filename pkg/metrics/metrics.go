// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        prometheus.Histogram
	SearchResultsCount   prometheus.Histogram
	DownloadCacheHits    prometheus.Counter
	DownloadCacheMisses  prometheus.Counter
	DownloadBytesTotal   prometheus.Counter
	EmotesPublishedTotal *prometheus.CounterVec
	EmotesSkippedTotal   prometheus.Counter
	IngestionErrorsTotal *prometheus.CounterVec
	RateLimitWaitsTotal  *prometheus.CounterVec
	RateLimitWaitSeconds prometheus.Counter
}

// New creates all collectors and registers them with reg. Services pass
// prometheus.DefaultRegisterer; tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emote_search_queries_total",
				Help: "Total emote searches by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emote_search_latency_seconds",
				Help:    "Emote search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emote_search_results_count",
				Help:    "Number of results returned per search page.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		DownloadCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "download_cache_hits_total",
				Help: "Source image fetches served from the key-value cache.",
			},
		),
		DownloadCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "download_cache_misses_total",
				Help: "Source image fetches that went to the network.",
			},
		),
		DownloadBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "download_bytes_total",
				Help: "Bytes downloaded from the origin CDN.",
			},
		),
		EmotesPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emotes_published_total",
				Help: "Emotes uploaded and recorded, by media kind.",
			},
			[]string{"kind"},
		),
		EmotesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "emotes_skipped_total",
				Help: "Eligible emotes skipped because they were already published.",
			},
		),
		IngestionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_errors_total",
				Help: "Ingestion failures by stage.",
			},
			[]string{"stage"},
		),
		RateLimitWaitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_waits_total",
				Help: "Cooldowns taken after platform throttling, by operation.",
			},
			[]string{"operation"},
		),
		RateLimitWaitSeconds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_wait_seconds_total",
				Help: "Total time spent waiting on platform throttling.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.DownloadCacheHits,
		m.DownloadCacheMisses,
		m.DownloadBytesTotal,
		m.EmotesPublishedTotal,
		m.EmotesSkippedTotal,
		m.IngestionErrorsTotal,
		m.RateLimitWaitsTotal,
		m.RateLimitWaitSeconds,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
