package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
)

// Locker serialises work on a named resource across goroutines or processes
type Locker interface {
	// WithLock runs fn while holding the lock for key. The context passed to
	// fn is cancelled if the lock is lost.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// PeriodLockKey names the lock that serialises postings into a period with
// closing it.
func PeriodLockKey(companyID uuid.UUID, period ledger.PeriodKey) string {
	return fmt.Sprintf("ledger:period:%s:%d:%d", companyID, period.Year, period.Month)
}

// YearLockKey names the lock held while a fiscal year is closed
func YearLockKey(companyID uuid.UUID, year int) string {
	return fmt.Sprintf("ledger:year:%s:%d", companyID, year)
}

// idempotencyKey namespaces a caller supplied key by company. The store
// adds its own "ledger:idempotency:" prefix.
func idempotencyKey(companyID uuid.UUID, key string) string {
	return companyID.String() + ":" + key
}
