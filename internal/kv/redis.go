package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// RedisSubstrate stores keys in a Redis database.
type RedisSubstrate struct {
	client *redis.Client
}

// NewRedisSubstrate connects to the configured server and checks it answers.
func NewRedisSubstrate(ctx context.Context, cfg types.RedisConfig) (*RedisSubstrate, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisSubstrate{client: client}, nil
}

// NewRedisSubstrateFromClient wraps an existing client.
func NewRedisSubstrateFromClient(client *redis.Client) *RedisSubstrate {
	return &RedisSubstrate{client: client}
}

// Get implements Substrate.
func (r *RedisSubstrate) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set implements Substrate. Keys never expire.
func (r *RedisSubstrate) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

// Delete implements Substrate.
func (r *RedisSubstrate) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Close closes the client.
func (r *RedisSubstrate) Close() error {
	return r.client.Close()
}
