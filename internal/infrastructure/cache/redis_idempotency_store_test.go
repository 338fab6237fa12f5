package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMiniredisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStoreWithClient(client, ""), mr
}

func TestRedisIdempotencyStore_Claim(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	owner, claimed, err := store.Claim(ctx, "company:key", "txn-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "txn-a", owner)
	assert.True(t, mr.Exists("ledger:idempotency:company:key"))
	assert.Equal(t, time.Hour, mr.TTL("ledger:idempotency:company:key"))

	owner, claimed, err = store.Claim(ctx, "company:key", "txn-b", time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "txn-a", owner)
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	_, _, err := store.Claim(ctx, "k", "txn-a", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	owner, claimed, err := store.Claim(ctx, "k", "txn-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "txn-b", owner)
}

func TestRedisIdempotencyStore_Release(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	_, _, err := store.Claim(ctx, "k", "txn-a", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k"))
	assert.False(t, mr.Exists("ledger:idempotency:k"))
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newMiniredisStore(t)
	mr.Close()

	_, _, err := store.Claim(context.Background(), "k", "v", time.Hour)
	assert.Error(t, err)
}

func TestOpenIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		store, err := OpenIdempotencyStore(ctx, BackendMemory, RedisConfig{})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)}
		store, err := OpenIdempotencyStore(ctx, BackendRedis, cfg, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("unreachable redis without fallback", func(t *testing.T) {
		_, err := OpenIdempotencyStore(ctx, BackendRedis, RedisConfig{Host: "127.0.0.1", Port: 1})
		assert.Error(t, err)
	})

	t.Run("unreachable redis with fallback", func(t *testing.T) {
		store, err := OpenIdempotencyStore(ctx, BackendRedis, RedisConfig{Host: "127.0.0.1", Port: 1}, WithInMemoryFallback(true))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("empty backend means memory", func(t *testing.T) {
		store, err := OpenIdempotencyStore(ctx, "", RedisConfig{})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := OpenIdempotencyStore(ctx, "memcached", RedisConfig{})
		assert.Error(t, err)
	})
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
