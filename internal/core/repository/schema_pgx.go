package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var sessionsSchema = []string{`
CREATE TABLE IF NOT EXISTS gateway_sessions (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL,
	bearer_token TEXT NOT NULL,
	is_verified  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS gateway_sessions_expires_at_idx ON gateway_sessions (expires_at)`,
}

// EnsureSchema creates the gateway_sessions table and its expiry index when
// they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range sessionsSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create gateway_sessions schema: %w", err)
		}
	}
	return nil
}
