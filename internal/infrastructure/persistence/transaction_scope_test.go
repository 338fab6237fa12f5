package persistence

import (
	"context"
	"errors"
	"testing"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope_Execute(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	scope := NewGormTransactionScope(db)
	accounts := NewGormAccountRepository(db)
	companyID := uuid.New()

	t.Run("commits on success", func(t *testing.T) {
		account, err := ledger.NewAccount(companyID, "1000", "Cash", ledger.AccountTypeAsset, nil)
		require.NoError(t, err)

		err = scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
			if err := repos.Accounts().Create(ctx, account); err != nil {
				return err
			}
			_, err := repos.Sequences().Next(ctx, companyID, "GENERAL-202401")
			return err
		})
		require.NoError(t, err)

		_, err = accounts.FindByID(ctx, account.ID)
		assert.NoError(t, err)
	})

	t.Run("rolls back every repository on error", func(t *testing.T) {
		account, err := ledger.NewAccount(companyID, "2000", "Payables", ledger.AccountTypeLiability, nil)
		require.NoError(t, err)
		boom := errors.New("boom")

		err = scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
			require.NoError(t, repos.Accounts().Create(ctx, account))
			_, err := repos.Sequences().Next(ctx, companyID, "GENERAL-202401")
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = accounts.FindByID(ctx, account.ID)
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

		// the sequence increment was rolled back with the account
		next, err := NewGormSequenceGenerator(db).Next(ctx, companyID, "GENERAL-202401")
		require.NoError(t, err)
		assert.Equal(t, int64(2), next)
	})
}
