package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRedisLocker(t *testing.T, opts Options) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisLocker(client, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return l, mr
}

func TestRedisLocker_WithLock(t *testing.T) {
	l, mr := newTestRedisLocker(t, DefaultOptions())

	err := l.WithLock(context.Background(), "ledger:period:c:2024:3", func(ctx context.Context) error {
		assert.True(t, mr.Exists("ledger:period:c:2024:3"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("ledger:period:c:2024:3"))
}

func TestRedisLocker_ReturnsFnErrorUnwrapped(t *testing.T) {
	l, mr := newTestRedisLocker(t, DefaultOptions())
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.Same(t, boom, err)
	assert.False(t, mr.Exists("k"))
}

func TestRedisLocker_TakenKey(t *testing.T) {
	l, mr := newTestRedisLocker(t, Options{Expiry: time.Second, Tries: 2, RetryDelay: time.Millisecond})
	require.NoError(t, mr.Set("k", "someone-else"))

	called := false
	err := l.WithLock(context.Background(), "k", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, called)
}

func TestRedisLocker_SerializesConcurrentHolders(t *testing.T) {
	l, _ := newTestRedisLocker(t, Options{Expiry: 5 * time.Second, Tries: 200, RetryDelay: 5 * time.Millisecond})
	var inside, overlaps atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "shared", func(ctx context.Context) error {
				if inside.Add(1) > 1 {
					overlaps.Add(1)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, overlaps.Load())
}

func TestNewRedisLocker_InvalidOptions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, err := NewRedisLocker(client, Options{Expiry: 0, Tries: 1}, nil)
	assert.Error(t, err)
	_, err = NewRedisLocker(client, Options{Expiry: time.Second, Tries: 0}, nil)
	assert.Error(t, err)
	_, err = NewRedisLocker(nil, DefaultOptions(), nil)
	assert.Error(t, err)
}
