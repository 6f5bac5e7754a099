package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	aggregator *Aggregator
	snapshots  *SnapshotStore
	logger     *slog.Logger
}

// NewHandler serves live stats. snapshots may be nil.
func NewHandler(aggregator *Aggregator, snapshots *SnapshotStore) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshot serves the last persisted stats.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "snapshots disabled"})
		return
	}
	stats, capturedAt, err := h.snapshots.Latest(r.Context())
	if err != nil {
		h.logger.Error("failed to load snapshot", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if stats == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot yet"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"captured_at": capturedAt,
		"stats":       stats,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
