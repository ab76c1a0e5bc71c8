package domain

import (
	"context"
	"time"
)

// Session is the server-side record behind a session cookie. BearerToken is
// the upstream credential and must never be serialized to the browser.
type Session struct {
	ID          string
	Email       string
	BearerToken string
	IsVerified  bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session has outlived its fixed TTL at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore defines the data-access contract for gateway sessions.
// Implementations live in internal/core/repository (Core layer) and must be
// safe for concurrent use.
type SessionStore interface {
	// Create stores a new session with a fixed TTL and returns its freshly
	// issued, unguessable id.
	Create(ctx context.Context, email, bearerToken string, verified bool) (string, error)

	// Get returns the session with the given id.
	// Returns (nil, nil) when the id is unknown or the session has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// SetVerified flips IsVerified to true. It never re-creates a destroyed or
	// expired session and never sets the flag back to false.
	// Returns false when no live session matches the id.
	SetVerified(ctx context.Context, id string) (bool, error)

	// Destroy removes the session. Destroying an unknown id is not an error.
	Destroy(ctx context.Context, id string) error
}
