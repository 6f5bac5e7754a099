package search

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/middleware"
)

// Handler exposes the index over HTTP.
type Handler struct {
	index   *Index
	tracker analytics.Tracker
	logger  *slog.Logger
}

// NewHandler creates a Handler. tracker may be nil.
func NewHandler(index *Index, tracker analytics.Tracker) *Handler {
	if tracker == nil {
		tracker = analytics.Discard{}
	}
	return &Handler{
		index:   index,
		tracker: tracker,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=<text>&page=<token>. An empty q
// matches every published emote.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	token := r.URL.Query().Get("page")

	page, err := h.index.Search(ctx, query, token)
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"page", page.Page,
		"returned", len(page.Results),
		"latency_ms", latencyMs,
	)
	h.tracker.Track(analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Page:      page.Page,
		Returned:  len(page.Results),
		LatencyMs: latencyMs,
		Source:    analytics.SourceAPI,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})

	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
