package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/kvstore"
)

var snapshotKey = kvstore.Key("analytics", "snapshot", "latest")

// SnapshotStore keeps the latest aggregated stats in the key-value store so
// a restarted analytics service can report what it saw before.
type SnapshotStore struct {
	store  kvstore.Store
	logger *slog.Logger
}

func NewSnapshotStore(store kvstore.Store) *SnapshotStore {
	return &SnapshotStore{
		store:  store,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

type snapshot struct {
	Stats      AggregatedStats `json:"stats"`
	CapturedAt time.Time       `json:"captured_at"`
}

func (s *SnapshotStore) Save(ctx context.Context, stats AggregatedStats) error {
	data, err := json.Marshal(snapshot{Stats: stats, CapturedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	if err := s.store.Set(ctx, snapshotKey, data); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"emotes_published", stats.EmotesPublished,
	)
	return nil
}

// Latest returns the last saved snapshot, or nil if none exists.
func (s *SnapshotStore) Latest(ctx context.Context) (*AggregatedStats, time.Time, error) {
	data, err := s.store.GetOptional(ctx, snapshotKey)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading analytics snapshot: %w", err)
	}
	if data == nil {
		return nil, time.Time{}, nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &snap.Stats, snap.CapturedAt, nil
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
func (s *SnapshotStore) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.Save(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
