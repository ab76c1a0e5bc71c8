package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/session-gateway/internal/core/domain"
)

func newRedisSessionStoreTest(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisSessionStore(rdb, "test", ttl), mr
}

func TestRedisSessionStoreContract(t *testing.T) {
	runSessionStoreContract(t, func(t *testing.T) domain.SessionStore {
		store, _ := newRedisSessionStoreTest(t, time.Hour)
		return store
	})
}

func TestRedisSessionStoreKeyLayoutAndTTL(t *testing.T) {
	store, mr := newRedisSessionStoreTest(t, 24*time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "k@example.com", "tok", false)
	require.NoError(t, err)

	key := "test:session:" + id
	require.True(t, mr.Exists(key))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
	assert.Equal(t, "k@example.com", mr.HGet(key, fieldEmail))
	assert.Equal(t, "0", mr.HGet(key, fieldVerified))

	_, err = store.SetVerified(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "1", mr.HGet(key, fieldVerified))
	assert.Equal(t, 24*time.Hour, mr.TTL(key), "verification must not renew the TTL")
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	store, mr := newRedisSessionStoreTest(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "e@example.com", "tok", false)
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)

	sess, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sess)

	ok, err := store.SetVerified(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:session:"+id), "expired session must not be resurrected")
}

func TestRedisSessionStoreIgnoresPartialRecord(t *testing.T) {
	store, mr := newRedisSessionStoreTest(t, time.Hour)

	mr.HSet("test:session:partial", fieldEmail, "p@example.com")

	sess, err := store.Get(context.Background(), "partial")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRedisSessionStoreUnavailable(t *testing.T) {
	store, mr := newRedisSessionStoreTest(t, time.Hour)
	ctx := context.Background()

	id, err := store.Create(ctx, "u@example.com", "tok", false)
	require.NoError(t, err)

	mr.Close()

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRedisUnavailable)

	err = store.Destroy(ctx, id)
	assert.ErrorIs(t, err, ErrRedisUnavailable)

	_, err = store.Create(ctx, "u@example.com", "tok", false)
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
