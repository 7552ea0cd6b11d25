package invalidation

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const generationKeyPrefix = "views:gen:"

// RedisClient wraps the go-redis client with health checking
type RedisClient struct {
	*redis.Client
}

// NewRedisClient connects to url. Returns nil if the URL is empty (Redis not configured).
func NewRedisClient(ctx context.Context, url string) (*RedisClient, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{Client: client}, nil
}

// Health checks if the Redis connection is healthy
func (c *RedisClient) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RedisStore shares view generations between server instances
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Store backed by client
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Bump(ctx context.Context, path string) (int64, error) {
	gen, err := s.client.Incr(ctx, generationKeyPrefix+path).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump view generation: %w", err)
	}
	return gen, nil
}

func (s *RedisStore) Generation(ctx context.Context, path string) (int64, error) {
	gen, err := s.client.Get(ctx, generationKeyPrefix+path).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read view generation: %w", err)
	}
	return gen, nil
}
