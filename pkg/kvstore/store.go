// Package kvstore provides the byte-oriented persistent map both pipelines
// use as their source of truth. Backends: SQLite (default), PostgreSQL,
// Redis and an in-memory map for tests.
package kvstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
)

// Store is a durable key-value map. Get reports a missing key with
// apperrors.ErrNotFound; GetOptional reports it as a nil slice. A stored empty
// value is always returned as a non-nil empty slice. Every other error is
// returned unchanged (wrapped) and never retried here.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	GetOptional(ctx context.Context, key []byte) ([]byte, error)
	Has(ctx context.Context, key []byte) (bool, error)
	Set(ctx context.Context, key []byte, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLite.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.Postgres)
	case "redis":
		return OpenRedis(ctx, cfg.Redis)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Key joins colon-delimited key segments, e.g. Key("download", url, "data").
func Key(parts ...string) []byte {
	return []byte(strings.Join(parts, ":"))
}

func notFound(key []byte) error {
	return apperrors.Newf(apperrors.ErrNotFound, 404, "key %q", key)
}

// nonNil keeps a present-but-empty value distinguishable from a missing one.
func nonNil(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}
