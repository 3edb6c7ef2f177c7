package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisSlotStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSlotStore(client, ""), mr
}

func TestRedisSlotStore_ReserveRelease(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)

	require.NoError(t, store.Release(ctx, "k1"))

	reserved, err = store.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestRedisSlotStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "k1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, reserved)

	mr.FastForward(31 * time.Second)

	reserved, err = store.Reserve(ctx, "k1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestRedisSlotStore_Prefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisSlotStore(client, "custom:")

	reserved, err := store.Reserve(context.Background(), "k1", time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	assert.True(t, mr.Exists("custom:k1"))
}

func TestRedisSlotStore_StoreDown(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Reserve(context.Background(), "k1", time.Minute)
	assert.Error(t, err)
}
