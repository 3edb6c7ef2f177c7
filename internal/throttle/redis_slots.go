package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlotStore is a SlotStore backed by Redis, for deployments
// running more than one gateway instance. SET NX carries the atomic
// check-and-set to the shared store.
type RedisSlotStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSlotStore creates a Redis-backed slot store. The prefix
// namespaces slot keys within the Redis keyspace.
func NewRedisSlotStore(client *redis.Client, prefix string) *RedisSlotStore {
	if prefix == "" {
		prefix = "throttle:slot:"
	}
	return &RedisSlotStore{client: client, prefix: prefix}
}

// Reserve implements SlotStore.
func (s *RedisSlotStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
}

// Release implements SlotStore.
func (s *RedisSlotStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Ensure RedisSlotStore implements SlotStore.
var _ SlotStore = (*RedisSlotStore)(nil)
