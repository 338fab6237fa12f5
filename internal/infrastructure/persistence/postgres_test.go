package persistence

import (
	"context"
	"testing"
	"time"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded schema
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestPostgres_PostingRoundTrip(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()
	companyID := uuid.New()

	scope := NewGormTransactionScope(db)
	accounts := NewGormAccountRepository(db)
	cash := seedAccount(t, accounts, companyID, "1000", ledger.AccountTypeAsset)
	revenue := seedAccount(t, accounts, companyID, "4000", ledger.AccountTypeRevenue)

	dup, err := ledger.NewAccount(companyID, "1000", "Duplicate", ledger.AccountTypeAsset, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, accounts.Create(ctx, dup), ledger.ErrDuplicateAccountCode)

	txn := newPostedTxn(t, companyID, "GENERAL-202403-000001", ledger.TransactionTypeGeneral,
		date(2024, time.March, 5), cash.ID, revenue.ID, "125.5000", time.Now())

	err = scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		seq, err := repos.Sequences().Next(ctx, companyID, "GENERAL-202403")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), seq)
		if err := repos.Transactions().Create(ctx, txn); err != nil {
			return err
		}
		if err := repos.Accounts().ApplyBalanceDelta(ctx, cash.ID, amount("125.5")); err != nil {
			return err
		}
		return repos.Accounts().ApplyBalanceDelta(ctx, revenue.ID, amount("125.5"))
	})
	require.NoError(t, err)

	loaded, err := NewGormTransactionRepository(db).FindByNumber(ctx, companyID, txn.Number)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)
	assert.True(t, loaded.Lines[0].Debit.Equal(amount("125.5")))
	assert.True(t, loaded.IsLedgerEffective())

	activity, err := NewGormTransactionRepository(db).SumLedgerActivity(ctx, ledger.ActivityQuery{CompanyID: companyID})
	require.NoError(t, err)
	require.Len(t, activity, 2)

	reloaded, err := accounts.FindByID(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(amount("125.5")))
}
