package ledger

import "time"

// Defaults used when Options fields are zero
const (
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultLedgerPageSize = 500
)

// Options holds the ledger policy switches read from configuration
type Options struct {
	// RequireSegregationOfDuties rejects approvals by the transaction's creator
	RequireSegregationOfDuties bool
	// IdempotencyTTL is how long an idempotency key stays bound to its transaction
	IdempotencyTTL time.Duration
	// LedgerPageSize is the number of lines fetched per page by GeneralLedger
	LedgerPageSize int
}

func (o Options) withDefaults() Options {
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if o.LedgerPageSize <= 0 {
		o.LedgerPageSize = DefaultLedgerPageSize
	}
	return o
}
