// Package middleware holds the HTTP middleware shared by the bot and
// analytics servers.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/metrics"
)

// Metrics returns middleware that records HTTP request count, latency, and
// in-flight gauge. Paths outside knownPaths are labelled "other" so probes
// for random URLs cannot grow the label set.
func Metrics(m *metrics.Metrics, knownPaths ...string) func(http.Handler) http.Handler {
	known := make(map[string]struct{}, len(knownPaths))
	for _, p := range knownPaths {
		known[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(known, r.URL.Path)

			m.HTTPRequestsTotal.WithLabelValues(
				r.Method,
				path,
				strconv.Itoa(sw.status),
			).Inc()

			m.HTTPRequestDuration.WithLabelValues(
				r.Method,
				path,
			).Observe(duration)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the response status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

func normalizePath(known map[string]struct{}, path string) string {
	if _, ok := known[path]; ok {
		return path
	}
	return "other"
}
