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

func TestPeriodService_ClosePeriod(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.closePeriod(2024, 1))
	assert.ErrorIs(t, h.closePeriod(2024, 1), ledger.ErrPeriodClosed)
	assert.ErrorIs(t, h.closePeriod(2024, 13), ledger.ErrInvalidInput)
	assert.Contains(t, h.events.types(), ledger.EventTypePeriodClosed)

	jan, err := h.periods.GetPeriod(h.ctx, h.companyID, 2024, 1)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.PeriodStatusClosed), jan.Status)
	assert.True(t, jan.Recorded)
	require.NotNil(t, jan.ClosedBy)
	assert.Equal(t, h.approver, *jan.ClosedBy)

	feb, err := h.periods.GetPeriod(h.ctx, h.companyID, 2024, 2)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.PeriodStatusOpen), feb.Status)
	assert.False(t, feb.Recorded)

	_, err = h.periods.OpenPeriod(h.ctx, h.companyID, 2024, 1)
	assert.ErrorIs(t, err, ledger.ErrPeriodClosed, "closing is irreversible")

	opened, err := h.periods.OpenPeriod(h.ctx, h.companyID, 2024, 2)
	require.NoError(t, err)
	assert.True(t, opened.Recorded)

	_, err = h.periods.OpenPeriod(h.ctx, h.companyID, 2024, 13)
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)

	periods, err := h.periods.ListPeriods(h.ctx, h.companyID, 2024)
	require.NoError(t, err)
	require.Len(t, periods, ledger.ClosingMonth)
	assert.Equal(t, string(ledger.PeriodStatusClosed), periods[0].Status)
	assert.Equal(t, string(ledger.PeriodStatusOpen), periods[1].Status)
	assert.Equal(t, 13, periods[12].Month)

	_, err = h.periods.GetPeriod(h.ctx, h.companyID, 2024, 14)
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)
}

func TestPeriodService_CloseFiscalYear(t *testing.T) {
	h := newHarness(t)
	cash := h.account("1000", ledger.AccountTypeAsset)
	retained := h.account("3000", ledger.AccountTypeEquity)
	revenue := h.account("4000", ledger.AccountTypeRevenue)
	expense := h.account("5000", ledger.AccountTypeExpense)

	h.book(day(2024, time.March, 10), debit(cash, "1000"), credit(revenue, "1000"))
	h.book(day(2024, time.June, 10), debit(expense, "400"), credit(cash, "400"))

	closeYear := func(retainedID uuid.UUID) (*appledger.FiscalYearResponse, error) {
		return h.periods.CloseFiscalYear(h.ctx, appledger.CloseFiscalYearRequest{
			CompanyID:                 h.companyID,
			Year:                      2024,
			RetainedEarningsAccountID: retainedID,
			ClosedBy:                  h.approver,
		})
	}

	_, err := closeYear(retained)
	assert.ErrorIs(t, err, ledger.ErrPeriodsStillOpen)

	h.closeMonths(2024)

	_, err = closeYear(cash)
	assert.ErrorIs(t, err, ledger.ErrInvalidAccount, "retained earnings must be equity")
	assertDecimal(t, "1000", h.balance(revenue), "a failed close changes nothing")

	fy, err := closeYear(retained)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.PeriodStatusClosed), fy.Status)
	assertDecimal(t, "600", fy.NetIncome)
	require.NotNil(t, fy.ClosingTransaction)
	assert.Equal(t, "CLOSING-202412-000001", fy.ClosingTransaction.Number)
	assert.Equal(t, string(ledger.TransactionStatusPosted), fy.ClosingTransaction.Status)

	assertDecimal(t, "0", h.balance(revenue))
	assertDecimal(t, "0", h.balance(expense))
	assertDecimal(t, "600", h.balance(retained))
	assertDecimal(t, "600", h.balance(cash))
	assert.Contains(t, h.events.types(), ledger.EventTypeFiscalYearClosed)

	_, err = closeYear(retained)
	assert.ErrorIs(t, err, ledger.ErrFiscalYearClosed)

	// the closing entry stays with the closed year
	_, err = h.txns.Cancel(h.ctx, appledger.CancelTransactionRequest{
		CompanyID:     h.companyID,
		TransactionID: fy.ClosingTransaction.ID,
		CancelledBy:   h.approver,
		Reason:        "reopen",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
	assertDecimal(t, "600", h.balance(retained))
	assertDecimal(t, "0", h.balance(revenue))

	closing, err := h.periods.GetPeriod(h.ctx, h.companyID, 2024, ledger.ClosingMonth)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.PeriodStatusClosed), closing.Status)

	stmt, err := h.reports.IncomeStatement(h.ctx, h.companyID, day(2024, time.January, 1), day(2024, time.December, 31))
	require.NoError(t, err)
	assertDecimal(t, "1000", stmt.TotalRevenue)
	assertDecimal(t, "400", stmt.TotalExpense)
	assertDecimal(t, "600", stmt.NetIncome)

	tb, err := h.reports.GenerateTrialBalance(h.ctx, h.companyID, day(2024, time.January, 1), day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced())

	// nothing can be dated in a closed year any more
	txn := h.create(day(2024, time.December, 31), debit(cash, "1"), credit(revenue, "1"))
	h.approve(txn.ID)
	_, err = h.post(txn.ID)
	assert.ErrorIs(t, err, ledger.ErrPeriodClosed)

	// the next year starts from the carried balances
	h.book(day(2025, time.January, 2), debit(cash, "50"), credit(revenue, "50"))
	assertDecimal(t, "50", h.balance(revenue))
}

func TestPeriodService_CloseYearsOutOfOrder(t *testing.T) {
	h := newHarness(t)
	cash := h.account("1000", ledger.AccountTypeAsset)
	retained := h.account("3000", ledger.AccountTypeEquity)
	revenue := h.account("4000", ledger.AccountTypeRevenue)

	h.book(day(2023, time.May, 5), debit(cash, "100"), credit(revenue, "100"))
	h.book(day(2024, time.May, 5), debit(cash, "50"), credit(revenue, "50"))
	h.closeMonths(2023)
	h.closeMonths(2024)

	closeYear := func(year int) *appledger.FiscalYearResponse {
		fy, err := h.periods.CloseFiscalYear(h.ctx, appledger.CloseFiscalYearRequest{
			CompanyID:                 h.companyID,
			Year:                      year,
			RetainedEarningsAccountID: retained,
			ClosedBy:                  h.approver,
		})
		require.NoError(t, err)
		return fy
	}

	later := closeYear(2024)
	assertDecimal(t, "50", later.NetIncome, "only activity dated in 2024")
	assertDecimal(t, "100", h.balance(revenue), "2023 revenue waits for its own close")

	earlier := closeYear(2023)
	assertDecimal(t, "100", earlier.NetIncome)

	assertDecimal(t, "0", h.balance(revenue))
	assertDecimal(t, "150", h.balance(retained))
	assertDecimal(t, "150", h.balance(cash))

	v, err := h.reports.VerifyBalance(h.ctx, h.companyID, day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, v.Balanced)
	assert.Empty(t, v.Divergences)
}

func TestPeriodService_CloseQuietYear(t *testing.T) {
	h := newHarness(t)
	retained := h.account("3000", ledger.AccountTypeEquity)
	h.closeMonths(2023)

	fy, err := h.periods.CloseFiscalYear(h.ctx, appledger.CloseFiscalYearRequest{
		CompanyID:                 h.companyID,
		Year:                      2023,
		RetainedEarningsAccountID: retained,
		ClosedBy:                  h.approver,
	})
	require.NoError(t, err)
	assert.Nil(t, fy.ClosingTransaction)
	assertDecimal(t, "0", fy.NetIncome)
}
