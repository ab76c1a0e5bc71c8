// Package database opens the connections backing the session store and
// selects the store implementation from configuration.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/duynhne/session-gateway/config"
	"github.com/duynhne/session-gateway/internal/core/domain"
	"github.com/duynhne/session-gateway/internal/core/repository"
)

const connectTimeout = 10 * time.Second

// Connect opens a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// ConnectRedis opens a Redis client and verifies it with a ping.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 3,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// NewSessionStore builds the session store selected by SESSION_STORE. The
// returned close function releases the backing connection and is never nil.
func NewSessionStore(ctx context.Context, cfg *config.Config) (domain.SessionStore, func(), error) {
	ttl := cfg.Session.TTL

	switch cfg.Session.Store {
	case config.StoreRedis:
		rdb, err := ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisSessionStore(rdb, cfg.Redis.Prefix, ttl), func() { _ = rdb.Close() }, nil

	case config.StorePostgres:
		pool, err := Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewSessionRepository(pool, ttl), pool.Close, nil

	default:
		return repository.NewMemorySessionStore(ttl), func() {}, nil
	}
}
