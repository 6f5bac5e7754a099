package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	_ "github.com/lib/pq"
)

type Postgres struct {
	sqlStore
}

// OpenPostgres connects with lib/pq, verifies the connection and creates the
// emote_kv table if needed.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &Postgres{sqlStore{db: db, q: postgresQueries}}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
