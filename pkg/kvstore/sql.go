package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// queries holds the dialect-specific statements for sqlStore.
type queries struct {
	ddl string
	get string
	has string
	set string
}

var postgresQueries = queries{
	ddl: `CREATE TABLE IF NOT EXISTS emote_kv (
		key   BYTEA PRIMARY KEY,
		value BYTEA NOT NULL
	)`,
	get: `SELECT value FROM emote_kv WHERE key = $1`,
	has: `SELECT EXISTS (SELECT 1 FROM emote_kv WHERE key = $1)`,
	set: `INSERT INTO emote_kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
}

var sqliteQueries = queries{
	ddl: `CREATE TABLE IF NOT EXISTS emote_kv (
		key   BLOB PRIMARY KEY,
		value BLOB NOT NULL
	) WITHOUT ROWID`,
	get: `SELECT value FROM emote_kv WHERE key = ?`,
	has: `SELECT EXISTS (SELECT 1 FROM emote_kv WHERE key = ?)`,
	set: `INSERT INTO emote_kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
}

// sqlStore implements Store over a single emote_kv table. Each Set is one
// autocommitted statement, so a value is durable once Set returns.
type sqlStore struct {
	db *sql.DB
	q  queries
}

func (s *sqlStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.q.ddl); err != nil {
		return fmt.Errorf("creating emote_kv table: %w", err)
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := s.GetOptional(ctx, key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, notFound(key)
	}
	return value, nil
}

func (s *sqlStore) GetOptional(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying key %q: %w", key, err)
	}
	return nonNil(value), nil
}

func (s *sqlStore) Has(ctx context.Context, key []byte) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, s.q.has, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking key %q: %w", key, err)
	}
	return exists, nil
}

func (s *sqlStore) Set(ctx context.Context, key []byte, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.q.set, key, nonNil(value)); err != nil {
		return fmt.Errorf("storing key %q: %w", key, err)
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
