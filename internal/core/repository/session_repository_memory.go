package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duynhne/session-gateway/internal/core/domain"
)

// newSessionID issues a random (version 4) UUID as the opaque session id.
func newSessionID() string {
	return uuid.NewString()
}

// MemorySessionStore implements domain.SessionStore with a process-local map.
// Expired entries are dropped lazily when they are next touched.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore creates a MemorySessionStore with a fixed session TTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create stores a new session and returns its id.
func (s *MemorySessionStore) Create(_ context.Context, email, bearerToken string, verified bool) (string, error) {
	now := s.now()
	sess := domain.Session{
		ID:          newSessionID(),
		Email:       email,
		BearerToken: bearerToken,
		IsVerified:  verified,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.ID, nil
}

// Get returns a copy of the live session with the given id.
// Returns (nil, nil) when the id is unknown or expired.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if sess.Expired(s.now()) {
		s.evict(id)
		return nil, nil
	}
	return &sess, nil
}

// SetVerified marks the live session with the given id as verified.
func (s *MemorySessionStore) SetVerified(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, id)
		return false, nil
	}
	sess.IsVerified = true
	s.sessions[id] = sess
	return true, nil
}

// Destroy removes the session with the given id.
func (s *MemorySessionStore) Destroy(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, including expired entries that
// have not been touched since expiry.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DeleteExpired drops every expired session and returns how many were removed.
func (s *MemorySessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemorySessionStore) evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: the entry may have been replaced.
	if sess, ok := s.sessions[id]; ok && sess.Expired(s.now()) {
		delete(s.sessions, id)
	}
}
