package cache

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Idempotency backends accepted by OpenIdempotencyStore
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type openOptions struct {
	logger        *zap.Logger
	allowFallback bool
}

// OpenOption configures OpenIdempotencyStore
type OpenOption func(*openOptions)

// WithLogger reports the chosen backend and any fallback on logger
func WithLogger(logger *zap.Logger) OpenOption {
	return func(o *openOptions) { o.logger = logger }
}

// WithInMemoryFallback lets an unreachable Redis degrade to the in-memory
// store. Only single-process ledgers may use it: with several writers a
// fallback silently loses duplicate detection.
func WithInMemoryFallback(allow bool) OpenOption {
	return func(o *openOptions) { o.allowFallback = allow }
}

// OpenIdempotencyStore returns the store for backend. An empty backend
// means memory.
func OpenIdempotencyStore(ctx context.Context, backend string, redisCfg RedisConfig, opts ...OpenOption) (shared.IdempotencyStore, error) {
	o := openOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case "", BackendMemory:
		o.logger.Debug("Using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	case BackendRedis:
		store, err := NewRedisIdempotencyStore(ctx, redisCfg)
		switch {
		case err == nil:
			o.logger.Debug("Using Redis idempotency store", zap.String("addr", redisCfg.Addr()))
			return store, nil
		case !o.allowFallback:
			return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
		}
		o.logger.Warn("Redis unavailable, falling back to in-memory idempotency store", zap.Error(err))
		return NewInMemoryIdempotencyStore(), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", backend)
	}
}
