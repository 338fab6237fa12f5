package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountFilter narrows account listings
type AccountFilter struct {
	shared.Filter
	Type       *AccountType
	ParentID   *uuid.UUID
	ActiveOnly bool
}

// TransactionFilter narrows transaction listings
type TransactionFilter struct {
	shared.Filter
	Status *TransactionStatus
	Type   *TransactionType
	From   *time.Time
	To     *time.Time
}

// LedgerLine is a journal line of a ledger-effective transaction, joined
// with the transaction fields needed for reporting.
type LedgerLine struct {
	TransactionID     uuid.UUID       `json:"transaction_id"`
	TransactionNumber string          `json:"transaction_number"`
	TransactionType   TransactionType `json:"transaction_type"`
	Description       string          `json:"description,omitempty"`
	AccountingDate    time.Time       `json:"accounting_date"`
	PostedAt          time.Time       `json:"posted_at"`
	LineNo            int             `json:"line_no"`
	AccountID         uuid.UUID       `json:"account_id"`
	Debit             decimal.Decimal `json:"debit"`
	Credit            decimal.Decimal `json:"credit"`
	Memo              string          `json:"memo,omitempty"`
}

// LedgerLineQuery selects ledger lines of one account. From and To are
// inclusive accounting dates; nil means unbounded. Results are ordered by
// accounting date, posting time, transaction number and line number.
type LedgerLineQuery struct {
	CompanyID uuid.UUID
	AccountID uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ActivityQuery selects ledger activity of a company aggregated per account
type ActivityQuery struct {
	CompanyID  uuid.UUID
	AccountIDs []uuid.UUID
	From       *time.Time
	To         *time.Time
	// ExcludeClosing leaves out year-end closing transactions
	ExcludeClosing bool
}

// AccountActivity is the debit and credit total of one account
type AccountActivity struct {
	AccountID uuid.UUID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// AccountRepository persists the chart of accounts.
// Lookups of a missing account return ErrAccountNotFound.
type AccountRepository interface {
	// FindByID finds an account by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindByIDForCompany finds an account by ID within a company
	FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*Account, error)
	// FindByIDs loads the accounts that exist among ids; missing IDs are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Account, error)
	// FindByCode finds an account by its code within a company
	FindByCode(ctx context.Context, companyID uuid.UUID, code string) (*Account, error)
	// FindAllForCompany lists accounts ordered by code, with the total count
	FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter AccountFilter) ([]Account, int64, error)
	// Create inserts a new account; a taken code yields ErrDuplicateAccountCode
	Create(ctx context.Context, account *Account) error
	// SaveWithLock updates descriptive fields with optimistic locking (version check).
	// The cached balance is never written here.
	SaveWithLock(ctx context.Context, account *Account) error
	// ApplyBalanceDelta atomically adds delta to the cached balance. A store that
	// has to add outside SQL reports a concurrent change as ErrConcurrencyConflict.
	ApplyBalanceDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	// SetBalance overwrites the cached balance with a recomputed value
	SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	// Delete removes an account
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository persists transactions and serves the ledger log.
// Lookups of a missing transaction return ErrTransactionNotFound.
type TransactionRepository interface {
	// FindByID finds a transaction with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// FindByIDForCompany finds a transaction with its lines within a company
	FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*Transaction, error)
	// FindByNumber finds a transaction by number within a company
	FindByNumber(ctx context.Context, companyID uuid.UUID, number string) (*Transaction, error)
	// FindAllForCompany lists transactions (without lines) with the total count
	FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter TransactionFilter) ([]Transaction, int64, error)
	// Create inserts a transaction and its lines
	Create(ctx context.Context, txn *Transaction) error
	// SaveWithLock writes status fields with optimistic locking (version check).
	// A lost race yields ErrConcurrencyConflict. Lines are never rewritten.
	SaveWithLock(ctx context.Context, txn *Transaction) error
	// CountLinesForAccount counts journal lines referencing an account in any status
	CountLinesForAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	// FindLedgerLines returns ledger-effective lines of one account
	FindLedgerLines(ctx context.Context, query LedgerLineQuery) ([]LedgerLine, error)
	// SumLedgerActivity aggregates ledger-effective lines per account
	SumLedgerActivity(ctx context.Context, query ActivityQuery) ([]AccountActivity, error)
}

// FiscalPeriodRepository persists fiscal periods and years.
// Finders return nil, nil for a period or year that was never recorded.
type FiscalPeriodRepository interface {
	// FindPeriod finds one period of a company
	FindPeriod(ctx context.Context, companyID uuid.UUID, key PeriodKey) (*FiscalPeriod, error)
	// FindPeriodsByYear lists recorded periods of a year ordered by month
	FindPeriodsByYear(ctx context.Context, companyID uuid.UUID, year int) ([]FiscalPeriod, error)
	// CreatePeriod inserts a period
	CreatePeriod(ctx context.Context, period *FiscalPeriod) error
	// SavePeriodWithLock updates a period with optimistic locking (version check)
	SavePeriodWithLock(ctx context.Context, period *FiscalPeriod) error
	// FindYear finds the fiscal year record
	FindYear(ctx context.Context, companyID uuid.UUID, year int) (*FiscalYear, error)
	// CreateYear inserts a fiscal year record
	CreateYear(ctx context.Context, year *FiscalYear) error
	// SaveYearWithLock updates a fiscal year with optimistic locking (version check)
	SaveYearWithLock(ctx context.Context, year *FiscalYear) error
}

// SequenceGenerator hands out transaction number sequences.
// Values for a (company, key) pair strictly increase and are never reused.
type SequenceGenerator interface {
	Next(ctx context.Context, companyID uuid.UUID, key string) (int64, error)
}
