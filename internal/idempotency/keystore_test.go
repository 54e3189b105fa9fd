package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisKeyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKeyStore(client), mr
}

// storeContract exercises the behaviour every KeyStore must share.
func storeContract(t *testing.T, store KeyStore) {
	ctx := context.Background()
	marker := Record{State: StateInProgress, Token: "t1", Fingerprint: "fp"}

	ok, existing, err := store.Reserve(ctx, "k1", marker, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, existing)

	ok, existing, err = store.Reserve(ctx, "k1", Record{State: StateInProgress, Token: "t2", Fingerprint: "fp"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, existing)
	assert.Equal(t, StateInProgress, existing.State)
	assert.Equal(t, "t1", existing.Token)

	// Release with a foreign token is a no-op.
	require.NoError(t, store.Release(ctx, "k1", "t2"))
	ok, _, err = store.Reserve(ctx, "k1", marker, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, store.Complete(ctx, "k1", "t2", Record{State: StateCompleted}, time.Hour), ErrLeaseLost)

	done := Record{State: StateCompleted, Token: "t1", Fingerprint: "fp", Result: []byte(`{"ok":true}`)}
	require.NoError(t, store.Complete(ctx, "k1", "t1", done, time.Hour))

	_, existing, err = store.Reserve(ctx, "k1", marker, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, StateCompleted, existing.State)
	assert.JSONEq(t, `{"ok":true}`, string(existing.Result))

	// A completed record is not released by its own token.
	require.NoError(t, store.Release(ctx, "k1", "t1"))
	_, existing, err = store.Reserve(ctx, "k1", marker, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, existing)

	// Releasing an in-progress marker frees the key.
	ok, _, err = store.Reserve(ctx, "k2", Record{State: StateInProgress, Token: "t3"}, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Release(ctx, "k2", "t3"))
	ok, _, err = store.Reserve(ctx, "k2", Record{State: StateInProgress, Token: "t4"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryKeyStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryKeyStore())
}

func TestRedisKeyStore_Contract(t *testing.T) {
	store, _ := newRedisStore(t)
	storeContract(t, store)
}

func TestMemoryKeyStore_LeaseExpiry(t *testing.T) {
	store := NewMemoryKeyStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _, err := store.Reserve(ctx, "k", Record{State: StateInProgress, Token: "a"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, _, err = store.Reserve(ctx, "k", Record{State: StateInProgress, Token: "b"}, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease should be reclaimable")
}

func TestMemoryKeyStore_Cleanup(t *testing.T) {
	store := NewMemoryKeyStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, _ = store.Reserve(ctx, "short", Record{State: StateInProgress, Token: "a"}, time.Second)
	_, _, _ = store.Reserve(ctx, "long", Record{State: StateInProgress, Token: "b"}, time.Hour)
	require.Len(t, store.records, 2)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Cleanup())
	assert.Len(t, store.records, 1)
	_, live := store.records["long"]
	assert.True(t, live)
}

func TestRedisKeyStore_LeaseExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	ok, _, err := store.Reserve(ctx, "k", Record{State: StateInProgress, Token: "a"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(keyPrefix+"k"))

	mr.FastForward(2 * time.Second)
	ok, _, err = store.Reserve(ctx, "k", Record{State: StateInProgress, Token: "b"}, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// Completing after the lease was taken over reports the loss.
	assert.ErrorIs(t, store.Complete(ctx, "k", "a", Record{State: StateCompleted}, time.Hour), ErrLeaseLost)
}

func TestRedisKeyStore_CompletedTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "k", Record{State: StateInProgress, Token: "a"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k", "a", Record{State: StateCompleted, Token: "a"}, time.Hour))

	ttl := mr.TTL(keyPrefix + "k")
	assert.Greater(t, ttl, 59*time.Minute)
}
