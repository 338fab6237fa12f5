package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotAcquired is returned when the lock stays taken for every try
var ErrNotAcquired = errors.New("lock is held by another process")

// Options configures distributed lock acquisition
type Options struct {
	// Expiry bounds how long a crashed holder can block the key
	Expiry time.Duration
	// Tries is the number of acquisition attempts
	Tries int
	// RetryDelay is the wait between attempts
	RetryDelay time.Duration
}

// DefaultOptions returns lock options suited to posting and period closing
func DefaultOptions() Options {
	return Options{
		Expiry:     30 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

func (o Options) validate() error {
	if o.Expiry <= 0 {
		return errors.New("lock expiry must be greater than 0")
	}
	if o.Tries < 1 {
		return errors.New("lock tries must be at least 1")
	}
	if o.RetryDelay < 0 {
		return errors.New("lock retry delay cannot be negative")
	}
	return nil
}

// RedisLocker is a distributed keyed mutex built on redsync
type RedisLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *zap.Logger
}

// NewRedisLocker creates a RedisLocker over an existing client
func NewRedisLocker(client redis.UniversalClient, opts Options, logger *zap.Logger) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}, nil
}

// WithLock runs fn while holding the distributed lock for key. The lock is
// released when fn returns, even on panic. Errors from fn are returned as is.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilFn
	}

	ctx, span := telemetry.StartSpan(ctx, "lock.with_lock", telemetry.WithAttribute("lock.key", key))
	defer span.End()

	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		telemetry.RecordError(span, err)
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return fmt.Errorf("acquire lock %s: %w", key, ErrNotAcquired)
		}
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	defer func() {
		// a fresh context so a cancelled caller still releases the key
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Warn("Failed to release lock",
				zap.String("key", key),
				zap.Bool("unlock_ok", ok),
				zap.Error(err),
			)
		}
	}()

	return fn(ctx)
}
