package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/logger"
)

// Runner serialises pipeline runs so the startup run and on-demand runs never
// overlap.
type Runner struct {
	pipeline *Pipeline
	catalog  *catalog.Catalog
	mu       sync.Mutex
	logger   *slog.Logger
}

func NewRunner(pipeline *Pipeline, cat *catalog.Catalog) *Runner {
	return &Runner{
		pipeline: pipeline,
		catalog:  cat,
		logger:   slog.Default().With("component", "ingestion-runner"),
	}
}

// ErrRunInProgress is returned by TryRun while another run holds the lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Run waits for any in-progress run, then runs the pipeline.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipeline.Run(ctx, r.catalog)
}

// TryRun runs the pipeline unless a run is already in progress.
func (r *Runner) TryRun(ctx context.Context) (Summary, error) {
	if !r.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer r.mu.Unlock()
	return r.pipeline.Run(ctx, r.catalog)
}

// Trigger handles POST /api/v1/ingestion/run. The run outlives the request:
// a client that disconnects during an upload cooldown must not abort it.
func (r *Runner) Trigger(w http.ResponseWriter, req *http.Request) {
	log := logger.FromContext(req.Context())
	summary, err := r.TryRun(context.WithoutCancel(req.Context()))
	if errors.Is(err, ErrRunInProgress) {
		r.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		resp := map[string]any{"error": "ingestion failed", "summary": summary}
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			resp["emote_id"] = stageErr.ID
			resp["ref"] = stageErr.Ref
			resp["stage"] = stageErr.Stage
		}
		status := apperrors.HTTPStatusCode(err)
		log.Error("on-demand ingestion failed", "error", err, "status_code", status)
		r.writeJSON(w, status, resp)
		return
	}
	log.Info("on-demand ingestion finished", "published", summary.Published, "skipped", summary.Skipped)
	r.writeJSON(w, http.StatusOK, summary)
}

func (r *Runner) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		r.logger.Error("failed to write response", "error", err)
	}
}
