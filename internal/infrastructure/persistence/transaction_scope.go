package persistence

import (
	"context"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to fn shares one database transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction, rolling back when fn fails
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// Repositories bundles the ledger repositories over one connection or transaction
type Repositories struct {
	accounts     *GormAccountRepository
	transactions *GormTransactionRepository
	periods      *GormFiscalPeriodRepository
	sequences    *GormSequenceGenerator
}

// NewRepositories binds every ledger repository to db
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		accounts:     NewGormAccountRepository(db),
		transactions: NewGormTransactionRepository(db),
		periods:      NewGormFiscalPeriodRepository(db),
		sequences:    NewGormSequenceGenerator(db),
	}
}

// Accounts returns the account repository
func (r *Repositories) Accounts() ledger.AccountRepository { return r.accounts }

// Transactions returns the transaction repository
func (r *Repositories) Transactions() ledger.TransactionRepository { return r.transactions }

// Periods returns the fiscal period repository
func (r *Repositories) Periods() ledger.FiscalPeriodRepository { return r.periods }

// Sequences returns the sequence generator
func (r *Repositories) Sequences() ledger.SequenceGenerator { return r.sequences }

var (
	_ appledger.TransactionScope          = (*GormTransactionScope)(nil)
	_ appledger.TransactionalRepositories = (*Repositories)(nil)
)
