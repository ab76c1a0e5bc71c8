package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/session-gateway/internal/core/domain"
)

// runSessionStoreContract exercises the behavior every domain.SessionStore
// backing must share.
func runSessionStoreContract(t *testing.T, newStore func(t *testing.T) domain.SessionStore) {
	t.Run("create then get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, "new@example.com", "t1", false)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		sess, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, id, sess.ID)
		assert.Equal(t, "new@example.com", sess.Email)
		assert.Equal(t, "t1", sess.BearerToken)
		assert.False(t, sess.IsVerified)
		assert.True(t, sess.ExpiresAt.After(sess.CreatedAt))
	})

	t.Run("ids are unique", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		seen := make(map[string]struct{})
		for i := 0; i < 50; i++ {
			id, err := store.Create(ctx, "a@example.com", "tok", false)
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "duplicate session id %s", id)
			seen[id] = struct{}{}
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		store := newStore(t)

		sess, err := store.Get(context.Background(), "does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("set verified is monotonic", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, "v@example.com", "tok", false)
		require.NoError(t, err)

		ok, err := store.SetVerified(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetVerified(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		sess, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.True(t, sess.IsVerified)
		assert.Equal(t, "tok", sess.BearerToken)
	})

	t.Run("created verified stays verified", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, "v@example.com", "tok", true)
		require.NoError(t, err)

		sess, err := store.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.True(t, sess.IsVerified)
	})

	t.Run("set verified on unknown id", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		ok, err := store.SetVerified(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		sess, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, sess, "SetVerified must not create a session")
	})

	t.Run("destroy removes and is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, "d@example.com", "tok", true)
		require.NoError(t, err)

		require.NoError(t, store.Destroy(ctx, id))
		require.NoError(t, store.Destroy(ctx, id))

		sess, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, sess)

		ok, err := store.SetVerified(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "SetVerified must not resurrect a destroyed session")

		sess, err = store.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a, err := store.Create(ctx, "a@example.com", "ta", false)
		require.NoError(t, err)
		b, err := store.Create(ctx, "b@example.com", "tb", false)
		require.NoError(t, err)

		_, err = store.SetVerified(ctx, a)
		require.NoError(t, err)
		require.NoError(t, store.Destroy(ctx, a))

		sess, err := store.Get(ctx, b)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "b@example.com", sess.Email)
		assert.False(t, sess.IsVerified)
	})

	t.Run("concurrent verify and destroy", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, "race@example.com", "tok", false)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = store.SetVerified(ctx, id)
			}()
			go func() {
				defer wg.Done()
				_, _ = store.Get(ctx, id)
			}()
		}
		wg.Wait()
		require.NoError(t, store.Destroy(ctx, id))

		sess, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})
}
