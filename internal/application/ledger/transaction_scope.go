package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
)

// TransactionScope provides transactional access to the ledger repositories.
// Everything done through the repositories handed to fn is committed or
// rolled back as one unit.
type TransactionScope interface {
	// Execute runs fn within a unit of work. If fn returns an error the unit
	// is rolled back, otherwise it is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one unit of work.
//
// Posting touches all four: the period gate reads Periods, balance deltas go
// through Accounts, the status compare-and-set through Transactions and
// number allocation through Sequences.
type TransactionalRepositories interface {
	Accounts() ledger.AccountRepository
	Transactions() ledger.TransactionRepository
	Periods() ledger.FiscalPeriodRepository
	Sequences() ledger.SequenceGenerator
}

// NoOpTransactionScope runs fn directly against the given repositories
// without any atomicity. It suits read paths and tests of single writes.
type NoOpTransactionScope struct {
	accounts     ledger.AccountRepository
	transactions ledger.TransactionRepository
	periods      ledger.FiscalPeriodRepository
	sequences    ledger.SequenceGenerator
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	accounts ledger.AccountRepository,
	transactions ledger.TransactionRepository,
	periods ledger.FiscalPeriodRepository,
	sequences ledger.SequenceGenerator,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		accounts:     accounts,
		transactions: transactions,
		periods:      periods,
		sequences:    sequences,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Accounts returns the account repository
func (s *NoOpTransactionScope) Accounts() ledger.AccountRepository { return s.accounts }

// Transactions returns the transaction repository
func (s *NoOpTransactionScope) Transactions() ledger.TransactionRepository { return s.transactions }

// Periods returns the fiscal period repository
func (s *NoOpTransactionScope) Periods() ledger.FiscalPeriodRepository { return s.periods }

// Sequences returns the sequence generator
func (s *NoOpTransactionScope) Sequences() ledger.SequenceGenerator { return s.sequences }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
