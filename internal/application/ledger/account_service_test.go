package ledger_test

import (
	"testing"
	"time"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountService_CreateAccount(t *testing.T) {
	h := newHarness(t)

	resp, err := h.accounts.CreateAccount(h.ctx, appledger.CreateAccountRequest{
		CompanyID:   h.companyID,
		Code:        "1000",
		Name:        "Cash",
		Type:        "ASSET",
		Description: "petty cash and bank",
	})
	require.NoError(t, err)
	assert.Equal(t, "DEBIT", resp.NormalSide)
	assert.True(t, resp.IsActive)
	assertDecimal(t, "0", resp.Balance)

	tests := []struct {
		name string
		req  appledger.CreateAccountRequest
		want error
	}{
		{"duplicate code", appledger.CreateAccountRequest{CompanyID: h.companyID, Code: "1000", Name: "Again", Type: "ASSET"}, ledger.ErrDuplicateAccountCode},
		{"unknown type", appledger.CreateAccountRequest{CompanyID: h.companyID, Code: "9000", Name: "Odd", Type: "CONTRA"}, ledger.ErrInvalidInput},
		{"missing name", appledger.CreateAccountRequest{CompanyID: h.companyID, Code: "9001", Type: "ASSET"}, ledger.ErrInvalidInput},
		{"missing parent", appledger.CreateAccountRequest{CompanyID: h.companyID, Code: "9002", Name: "Orphan", Type: "ASSET", ParentID: ptr(uuid.New())}, ledger.ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.accounts.CreateAccount(h.ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("same code in another company", func(t *testing.T) {
		_, err := h.accounts.CreateAccount(h.ctx, appledger.CreateAccountRequest{CompanyID: uuid.New(), Code: "1000", Name: "Cash", Type: "ASSET"})
		assert.NoError(t, err)
	})
}

func TestAccountService_Hierarchy(t *testing.T) {
	h := newHarness(t)
	assets := h.account("1", ledger.AccountTypeAsset)
	current := h.account("11", ledger.AccountTypeAsset)
	cash := h.account("1100", ledger.AccountTypeAsset)

	_, err := h.accounts.MoveAccount(h.ctx, appledger.MoveAccountRequest{CompanyID: h.companyID, AccountID: current, ParentID: &assets})
	require.NoError(t, err)
	moved, err := h.accounts.MoveAccount(h.ctx, appledger.MoveAccountRequest{CompanyID: h.companyID, AccountID: cash, ParentID: &current})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, current, *moved.ParentID)

	_, err = h.accounts.MoveAccount(h.ctx, appledger.MoveAccountRequest{CompanyID: h.companyID, AccountID: assets, ParentID: &cash})
	assert.ErrorIs(t, err, ledger.ErrHierarchyCycle)

	_, err = h.accounts.MoveAccount(h.ctx, appledger.MoveAccountRequest{CompanyID: h.companyID, AccountID: assets, ParentID: &assets})
	assert.ErrorIs(t, err, ledger.ErrHierarchyCycle)

	children, err := h.accounts.ListAccounts(h.ctx, h.companyID, appledger.AccountListFilter{ParentID: &current})
	require.NoError(t, err)
	require.Len(t, children.Items, 1)
	assert.Equal(t, "1100", children.Items[0].Code)

	root, err := h.accounts.MoveAccount(h.ctx, appledger.MoveAccountRequest{CompanyID: h.companyID, AccountID: cash})
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
}

func TestAccountService_UpdateAndActivation(t *testing.T) {
	h := newHarness(t)
	id := h.account("1000", ledger.AccountTypeAsset)

	updated, err := h.accounts.UpdateAccount(h.ctx, appledger.UpdateAccountRequest{
		CompanyID: h.companyID,
		AccountID: id,
		Name:      "Cash at bank",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cash at bank", updated.Name)

	off, err := h.accounts.DeactivateAccount(h.ctx, h.companyID, id)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	_, err = h.accounts.DeactivateAccount(h.ctx, h.companyID, id)
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	active, err := h.accounts.ListAccounts(h.ctx, h.companyID, appledger.AccountListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active.Items)

	on, err := h.accounts.ActivateAccount(h.ctx, h.companyID, id)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
	assert.Greater(t, on.Version, off.Version)

	_, err = h.accounts.GetAccount(h.ctx, uuid.New(), id)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound, "accounts are scoped to their company")
}

func TestAccountService_DeleteAccount(t *testing.T) {
	h := newHarness(t)
	parent := h.account("1", ledger.AccountTypeAsset)
	cash := h.account("1000", ledger.AccountTypeAsset)
	revenue := h.account("4000", ledger.AccountTypeRevenue)
	unused := h.account("1999", ledger.AccountTypeAsset)

	_, err := h.accounts.MoveAccount(h.ctx, appledger.MoveAccountRequest{CompanyID: h.companyID, AccountID: unused, ParentID: &parent})
	require.NoError(t, err)

	// a draft reference is enough to pin the account
	h.create(day(2024, time.March, 1), debit(cash, "1"), credit(revenue, "1"))
	assert.ErrorIs(t, h.accounts.DeleteAccount(h.ctx, h.companyID, cash), ledger.ErrAccountInUse)
	assert.ErrorIs(t, h.accounts.DeleteAccount(h.ctx, h.companyID, parent), ledger.ErrAccountInUse)

	require.NoError(t, h.accounts.DeleteAccount(h.ctx, h.companyID, unused))
	_, err = h.accounts.GetAccount(h.ctx, h.companyID, unused)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	require.NoError(t, h.accounts.DeleteAccount(h.ctx, h.companyID, parent))
}

func TestAccountService_ListAccounts(t *testing.T) {
	h := newHarness(t)
	h.account("2000", ledger.AccountTypeLiability)
	h.account("1000", ledger.AccountTypeAsset)
	h.account("1100", ledger.AccountTypeAsset)
	h.account("4000", ledger.AccountTypeRevenue)

	all, err := h.accounts.ListAccounts(h.ctx, h.companyID, appledger.AccountListFilter{})
	require.NoError(t, err)
	require.Len(t, all.Items, 4)
	assert.Equal(t, "1000", all.Items[0].Code, "ordered by code")

	assets, err := h.accounts.ListAccounts(h.ctx, h.companyID, appledger.AccountListFilter{Type: "ASSET"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), assets.Total)

	page, err := h.accounts.ListAccounts(h.ctx, h.companyID, appledger.AccountListFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "4000", page.Items[0].Code)

	found, err := h.accounts.GetAccountByCode(h.ctx, h.companyID, "1100")
	require.NoError(t, err)
	assert.Equal(t, "Account 1100", found.Name)
}

func ptr[T any](v T) *T { return &v }
