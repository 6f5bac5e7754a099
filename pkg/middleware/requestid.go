package middleware

import (
	"context"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID propagates an incoming X-Request-ID or assigns a new UUID, echoes
// it on the response and stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the request id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
