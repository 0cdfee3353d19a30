package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores processed keys as Redis keys with a TTL, letting
// Redis's own expiry do the cleanup work.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, prefix: "ticket-dedup:"}
}

func (r *RedisBackend) IsDuplicate(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisBackend) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.redisKey(key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Cleanup is a no-op: Redis expires keys on its own.
func (r *RedisBackend) Cleanup(ctx context.Context, olderThan time.Time) error { return nil }

func (r *RedisBackend) Stats(ctx context.Context) (*Stats, error) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var count int64
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return &Stats{UniqueKeys: count}, nil
}

func (r *RedisBackend) Close() error { return r.client.Close() }

func (r *RedisBackend) redisKey(key string) string {
	return r.prefix + key
}
