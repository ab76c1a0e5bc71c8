package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/session-gateway/internal/core/domain"
)

// PgxSessionRepository implements domain.SessionStore using pgxpool.
type PgxSessionRepository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewSessionRepository creates a new PgxSessionRepository. The
// gateway_sessions table must exist (see EnsureSchema).
func NewSessionRepository(pool *pgxpool.Pool, ttl time.Duration) *PgxSessionRepository {
	return &PgxSessionRepository{pool: pool, ttl: ttl}
}

// Create inserts a new session row.
func (r *PgxSessionRepository) Create(ctx context.Context, email, bearerToken string, verified bool) (string, error) {
	id := newSessionID()
	query := `
		INSERT INTO gateway_sessions (id, email, bearer_token, is_verified, created_at, expires_at)
		VALUES ($1, $2, $3, $4, now(), now() + $5::interval)
	`
	if _, err := r.pool.Exec(ctx, query, id, email, bearerToken, verified, r.ttl); err != nil {
		return "", err
	}
	return id, nil
}

// Get looks up a live session by id.
// Returns (nil, nil) when the id is unknown or the session has expired.
func (r *PgxSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, email, bearer_token, is_verified, created_at, expires_at
		FROM gateway_sessions
		WHERE id = $1 AND expires_at > now()
	`

	var sess domain.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sess.ID, &sess.Email, &sess.BearerToken, &sess.IsVerified, &sess.CreatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &sess, nil
}

// SetVerified marks a live session as verified.
func (r *PgxSessionRepository) SetVerified(ctx context.Context, id string) (bool, error) {
	query := `UPDATE gateway_sessions SET is_verified = TRUE WHERE id = $1 AND expires_at > now()`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Destroy deletes the session row.
func (r *PgxSessionRepository) Destroy(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM gateway_sessions WHERE id = $1`, id)
	return err
}

// DeleteExpired removes rows past their expiry and returns how many were
// removed. Expired rows are already invisible to Get; this only reclaims space.
func (r *PgxSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM gateway_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
