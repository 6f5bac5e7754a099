// Package logger configures the process-wide slog logger and carries the
// request id through contexts so handler logs can be correlated.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default logger writing to stdout. format is "json" or
// "text"; unknown levels mean info.
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination; cmd/emotectl logs to
// stderr so command output stays clean.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}

// FromContext returns the default logger, tagged with the request id when ctx
// carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID := RequestID(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
