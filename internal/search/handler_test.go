package search

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchRecorder struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *searchRecorder) Track(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := event.(analytics.SearchEvent); ok {
		r.events = append(r.events, e)
	}
}

func TestHandlerSearch(t *testing.T) {
	f := newFixture()
	entries := []catalog.Entry{emote("1", "pog", "g"), emote("2", "poggers", "g")}
	f.publish(t, entries...)
	rec := &searchRecorder{}
	h := middleware.RequestID(http.HandlerFunc(NewHandler(f.index(entries), rec).Search))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=POG&page=0", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))

	var page Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, "POG", page.Query)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, "1", page.NextPageToken)
	assert.Equal(t, "static", page.Results[0].KindName)

	require.Len(t, rec.events, 1)
	assert.Equal(t, analytics.SourceAPI, rec.events[0].Source)
	assert.Equal(t, 2, rec.events[0].Returned)
	assert.Equal(t, "req-1", rec.events[0].RequestID)
}

func TestHandlerEmptyPageIsArray(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.index(nil), nil)

	w := httptest.NewRecorder()
	h.Search(w, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=nothing", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["results"])
}
