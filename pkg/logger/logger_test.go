package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextTagsRequestID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := WithRequestID(context.Background(), "req-1")
	FromContext(ctx).Info("search completed", "query", "pog")
	FromContext(context.Background()).Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "pog", line["query"])
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
