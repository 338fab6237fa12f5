package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which request keys have already been served.
type IdempotencyStore interface {
	// Claim binds key to value for ttl if the key is free.
	// It returns claimed=true when this caller now owns the key. Otherwise it
	// returns the value stored by the earlier owner.
	Claim(ctx context.Context, key, value string, ttl time.Duration) (owner string, claimed bool, err error)

	// Release frees a key so that a failed request can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
