package kv

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/caja/internal/backendtest"
	"github.com/mesh-intelligence/caja/pkg/types"
)

func newRedisSubstrate(t *testing.T) (*RedisSubstrate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	sub, err := NewRedisSubstrate(context.Background(), types.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	return sub, mr
}

func TestRedisSubstrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	sub, mr := newRedisSubstrate(t)
	t.Cleanup(func() { sub.Close() })

	_, ok, err := sub.Get(ctx, "caja:seq:sales")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sub.Set(ctx, "caja:seq:sales", []byte("7")))
	v, ok, err := sub.Get(ctx, "caja:seq:sales")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", string(v))

	got, err := mr.Get("caja:seq:sales")
	require.NoError(t, err)
	assert.Equal(t, "7", got)
	assert.Zero(t, mr.TTL("caja:seq:sales"))

	require.NoError(t, sub.Delete(ctx, "caja:seq:sales"))
	assert.False(t, mr.Exists("caja:seq:sales"))
}

func TestRedisSubstrateUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisSubstrate(context.Background(), types.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestStoreBehaviourOnRedis(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) types.Backend {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return newTestStore(t, NewRedisSubstrateFromClient(client), Options{})
	})
}

// TestStoreBehaviourOnLiveRedis runs the suite against a real server when
// CAJA_TEST_REDIS_ADDR is set. Each store gets its own prefix and removes
// its keys afterwards.
func TestStoreBehaviourOnLiveRedis(t *testing.T) {
	addr := os.Getenv("CAJA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CAJA_TEST_REDIS_ADDR not set")
	}
	backendtest.Run(t, func(t *testing.T) types.Backend {
		ctx := context.Background()
		client := redis.NewClient(&redis.Options{Addr: addr})
		require.NoError(t, client.Ping(ctx).Err())
		prefix := "test-" + uuid.NewString()
		s := newTestStore(t, NewRedisSubstrateFromClient(client), Options{Prefix: prefix})
		t.Cleanup(func() {
			keys, err := client.Keys(ctx, prefix+":*").Result()
			if err == nil && len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		})
		return s
	})
}

func TestOpenRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := types.Config{
		Backend: types.BackendKV,
		KV:      types.KVConfig{Substrate: types.SubstrateRedis, Prefix: "till"},
		Redis:   types.RedisConfig{Addr: mr.Addr()},
	}

	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Initialize(ctx))

	assert.True(t, mr.Exists("till:table:permissions"))
	assert.True(t, mr.Exists("till:seeded"))
}
