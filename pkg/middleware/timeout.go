package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds request handling. When the deadline passes before the
// handler wrote anything, the client gets a 504 and later writes from the
// handler are discarded.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w}
			go func() {
				defer close(done)
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()
			select {
			case <-done:
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.written {
					slog.Warn("request timed out", "method", r.Method, "path", r.URL.Path, "timeout", timeout)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}` + "\n"))
				}
			}
		})
	}
}

type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	written  bool
	timedOut bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return
	}
	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.written = true
	return tw.ResponseWriter.Write(b)
}
