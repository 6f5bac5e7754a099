package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "ingest_emote", "")
	require.NotEmpty(t, root.TraceID)

	_, child := StartChildSpan(ctx, "download")
	child.End()
	root.End()

	assert.Equal(t, root, SpanFromContext(ctx))
	require.Len(t, root.Children, 1)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.GreaterOrEqual(t, root.Duration, child.Duration)

	first := root.EndTime
	root.End()
	assert.Equal(t, first, root.EndTime)
}

func TestOrphanChildStartsTrace(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "upload")
	assert.NotEmpty(t, span.TraceID)
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, root := StartSpan(context.Background(), "ingest_emote", "trace-1")
	root.SetAttr("emote_id", "42")
	_, child := StartChildSpan(ctx, "upload")
	child.Fail(errors.New("boom"))
	child.End()
	root.End()
	root.Log()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "trace-1", rec["trace_id"])
	assert.Equal(t, "42", rec["emote_id"])
	assert.Equal(t, "DEBUG", rec["level"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "upload", rec["span"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "boom", rec["error"])
}
