package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newSQLiteDB opens a migrated in-memory database
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate())
	t.Cleanup(func() { _ = database.Close() })
	return database.DB
}

// newMockDB creates a GORM postgres connection backed by sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gormDB, mock
}

func seedAccount(t *testing.T, repo *GormAccountRepository, companyID uuid.UUID, code string, accountType ledger.AccountType) *ledger.Account {
	t.Helper()
	account, err := ledger.NewAccount(companyID, code, "Account "+code, accountType, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), account))
	return account
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTxn builds a two-line DRAFT transaction moving amt from credit to debit
func newTxn(t *testing.T, companyID uuid.UUID, number string, txnType ledger.TransactionType, on time.Time, debit, credit uuid.UUID, amt string) *ledger.Transaction {
	t.Helper()
	txn, err := ledger.NewTransaction(companyID, number, txnType, on, "test entry", []ledger.JournalLine{
		ledger.NewDebitLine(debit, amount(amt), "debit"),
		ledger.NewCreditLine(credit, amount(amt), "credit"),
	}, uuid.New())
	require.NoError(t, err)
	return txn
}

// newPostedTxn is newTxn moved through approval and posting at postedAt
func newPostedTxn(t *testing.T, companyID uuid.UUID, number string, txnType ledger.TransactionType, on time.Time, debit, credit uuid.UUID, amt string, postedAt time.Time) *ledger.Transaction {
	t.Helper()
	txn := newTxn(t, companyID, number, txnType, on, debit, credit, amt)
	actor := uuid.New()
	require.NoError(t, txn.Approve(actor, false))
	require.NoError(t, txn.MarkPosted(actor, postedAt))
	return txn
}
