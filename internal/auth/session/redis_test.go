package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStoreSaveAndValidate(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Minute))

	ok, err := store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Validate(ctx, "alice", "token-2")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.Validate(ctx, "bob", "token-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreSaveOverwrites(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Minute))
	require.NoError(t, store.Save(ctx, "alice", "token-2", time.Minute))

	ok, err := store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.Validate(ctx, "alice", "token-2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Minute))
	require.NoError(t, store.Delete(ctx, "alice"))

	ok, err := store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreTTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Minute))
	mr.FastForward(2 * time.Minute)

	ok, err := store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Minute))

	ok, err := store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Save(ctx, "alice", "token-2", time.Minute))
	ok, err = store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "alice"))
	ok, err = store.Validate(ctx, "alice", "token-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	ok, err := store.Validate(ctx, "alice", "token-1")
	require.NoError(t, err)
	require.False(t, ok)
}
