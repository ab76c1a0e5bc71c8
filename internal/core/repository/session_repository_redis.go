package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duynhne/session-gateway/internal/core/domain"
)

// ErrRedisUnavailable wraps connectivity failures of the Redis backing.
var ErrRedisUnavailable = errors.New("redis unavailable")

// setVerifiedScript flips the verified field only when the session key still
// exists, so a concurrent logout or expiry is never undone.
const setVerifiedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "verified", "1")
return 1
`

var setVerifiedLua = redis.NewScript(setVerifiedScript)

const (
	fieldEmail     = "email"
	fieldToken     = "token"
	fieldVerified  = "verified"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// RedisSessionStore implements domain.SessionStore with one Redis hash per
// session. Expiry is enforced by the key TTL.
type RedisSessionStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionStore creates a RedisSessionStore. Keys are namespaced as
// "<prefix>:session:<id>".
func NewRedisSessionStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + ":session:" + id
}

// Create writes the session hash and its TTL in one transaction.
func (s *RedisSessionStore) Create(ctx context.Context, email, bearerToken string, verified bool) (string, error) {
	id := newSessionID()
	now := s.now()
	key := s.key(id)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldEmail, email,
			fieldToken, bearerToken,
			fieldVerified, boolField(verified),
			fieldCreatedAt, now.Unix(),
			fieldExpiresAt, now.Add(s.ttl).Unix(),
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w: %w", ErrRedisUnavailable, err)
	}
	return id, nil
}

// Get loads the session hash. Returns (nil, nil) when the key is absent.
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session: %w: %w", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sess := &domain.Session{
		ID:          id,
		Email:       fields[fieldEmail],
		BearerToken: fields[fieldToken],
		IsVerified:  fields[fieldVerified] == "1",
		CreatedAt:   unixField(fields[fieldCreatedAt]),
		ExpiresAt:   unixField(fields[fieldExpiresAt]),
	}
	// A hash without a token is a half-written record; treat it as absent.
	if sess.BearerToken == "" || sess.Expired(s.now()) {
		return nil, nil
	}
	return sess, nil
}

// SetVerified flips the verified flag through an atomic script.
func (s *RedisSessionStore) SetVerified(ctx context.Context, id string) (bool, error) {
	updated, err := setVerifiedLua.Run(ctx, s.rdb, []string{s.key(id)}).Int()
	if err != nil {
		return false, fmt.Errorf("set session verified: %w: %w", ErrRedisUnavailable, err)
	}
	return updated == 1, nil
}

// Destroy deletes the session key.
func (s *RedisSessionStore) Destroy(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unixField(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
