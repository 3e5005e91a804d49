package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "storefront:cache:"

// RedisStore backs the cache with a shared Redis instance so that multiple
// replicas observe the same invalidations.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a cache backed by the provided Redis client.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("cache: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Get implements the Store interface.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}
	return value, nil
}

// Set implements the Store interface. Tag membership sets share the value TTL
// so stale index entries age out alongside their keys.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, value, ttl)
	for _, tag := range tags {
		tagKey := redisTagKey(tag)
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// InvalidateKey implements the Store interface.
func (s *RedisStore) InvalidateKey(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

// InvalidateTag implements the Store interface.
func (s *RedisStore) InvalidateTag(ctx context.Context, tag string) error {
	tagKey := redisTagKey(tag)
	keys, err := s.client.SMembers(ctx, tagKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: redis smembers: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, redisKeyPrefix+key)
	}
	pipe.Del(ctx, tagKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: redis invalidate tag: %w", err)
	}
	return nil
}

func redisTagKey(tag string) string {
	return redisKeyPrefix + "tag:" + tag
}
