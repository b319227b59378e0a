package history

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis lists.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisStore creates a Redis-backed history store.
func NewRedisStore(client *redis.Client, config RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: config.Prefix,
	}
}

// key builds the final Redis key with prefix.
func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Push removes earlier copies of value, prepends it and trims the list,
// all in one MULTI/EXEC.
func (s *RedisStore) Push(ctx context.Context, key, value string, limit int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	redisKey := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, redisKey, 0, value)
		pipe.LPush(ctx, redisKey, value)
		if limit > 0 {
			pipe.LTrim(ctx, redisKey, 0, int64(limit-1))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push failed: %w", err)
	}
	return nil
}

// List returns the list most-recent-first. A missing key is an empty list.
func (s *RedisStore) List(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	values, err := s.client.LRange(ctx, s.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	return values, nil
}

// Clear removes the list at key.
func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return s.client.Del(ctx, s.key(key)).Err()
}

// Ping checks if Redis connection is healthy.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return s.client.Ping(ctx).Err()
}
