package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Redis stores keys without expiry. Durability on return depends on the
// server's persistence settings (appendonly yes with fsync always for a
// strict guarantee).
type Redis struct {
	rdb *redis.Client
}

// OpenRedis creates a Redis client and verifies the connection with a PING.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := r.GetOptional(ctx, key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, notFound(key)
	}
	return value, nil
}

func (r *Redis) GetOptional(ctx context.Context, key []byte) ([]byte, error) {
	value, err := r.rdb.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return nonNil(value), nil
}

func (r *Redis) Has(ctx context.Context, key []byte) (bool, error) {
	n, err := r.rdb.Exists(ctx, string(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Set(ctx context.Context, key []byte, value []byte) error {
	if err := r.rdb.Set(ctx, string(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Ping sends a PING to Redis and returns any error.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
