package ledger_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_TrialBalance(t *testing.T) {
	h := newHarness(t)
	cash := h.account("1000", ledger.AccountTypeAsset)
	payable := h.account("2000", ledger.AccountTypeLiability)
	revenue := h.account("4000", ledger.AccountTypeRevenue)
	expense := h.account("5000", ledger.AccountTypeExpense)

	h.book(day(2024, time.March, 1), debit(cash, "500"), credit(revenue, "500"))
	h.book(day(2024, time.March, 9), debit(expense, "120.25"), credit(payable, "120.25"))
	h.book(day(2024, time.April, 2), debit(cash, "80"), credit(revenue, "80"))
	// drafts and approved entries are not part of the ledger
	h.create(day(2024, time.March, 5), debit(cash, "999"), credit(revenue, "999"))

	tb, err := h.reports.GenerateTrialBalance(h.ctx, h.companyID, day(2024, time.March, 1), day(2024, time.March, 31))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced())
	assertDecimal(t, "620.25", tb.TotalDebit)
	assertDecimal(t, "620.25", tb.TotalCredit)

	require.Len(t, tb.Rows, 4)
	codes := make([]string, 0, len(tb.Rows))
	for _, r := range tb.Rows {
		codes = append(codes, r.AccountCode)
	}
	assert.Equal(t, []string{"1000", "2000", "4000", "5000"}, codes)
	assertDecimal(t, "500", tb.Rows[0].Net)
	assertDecimal(t, "120.25", tb.Rows[1].Net, "liabilities are credit-normal")
	assert.Equal(t, ledger.SideCredit, tb.Rows[2].NormalSide)

	t.Run("range without activity", func(t *testing.T) {
		tb, err := h.reports.GenerateTrialBalance(h.ctx, h.companyID, day(2023, time.January, 1), day(2023, time.December, 31))
		require.NoError(t, err)
		assert.Empty(t, tb.Rows)
		assert.True(t, tb.IsBalanced())
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := h.reports.GenerateTrialBalance(h.ctx, h.companyID, day(2024, time.April, 1), day(2024, time.March, 1))
		assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	})
}

func TestReportService_GeneralLedger(t *testing.T) {
	h := newHarness(t, withPageSize(2))
	cash := h.account("1000", ledger.AccountTypeAsset)
	revenue := h.account("4000", ledger.AccountTypeRevenue)
	expense := h.account("5000", ledger.AccountTypeExpense)

	h.book(day(2024, time.February, 20), debit(cash, "100"), credit(revenue, "100"))
	h.book(day(2024, time.March, 1), debit(cash, "50"), credit(revenue, "50"))
	h.book(day(2024, time.March, 2), debit(expense, "30"), credit(cash, "30"))
	h.book(day(2024, time.March, 3), debit(cash, "10"), credit(revenue, "10"))
	h.book(day(2024, time.March, 4), debit(expense, "5"), credit(cash, "5"))
	h.book(day(2024, time.April, 1), debit(cash, "1000"), credit(revenue, "1000"))

	opening, err := h.reports.OpeningBalance(h.ctx, h.companyID, cash, day(2024, time.March, 1))
	require.NoError(t, err)
	assertDecimal(t, "100", opening)

	var running []string
	var numbers []string
	for entry, err := range h.reports.GeneralLedger(h.ctx, h.companyID, cash, day(2024, time.March, 1), day(2024, time.March, 31)) {
		require.NoError(t, err)
		running = append(running, entry.RunningBalance.String())
		numbers = append(numbers, entry.TransactionNumber)
	}
	assert.Equal(t, []string{"150", "120", "130", "125"}, running)
	assert.Equal(t, []string{
		"GENERAL-202403-000001",
		"GENERAL-202403-000002",
		"GENERAL-202403-000003",
		"GENERAL-202403-000004",
	}, numbers)

	t.Run("stops when the caller breaks", func(t *testing.T) {
		n := 0
		for range h.reports.GeneralLedger(h.ctx, h.companyID, cash, day(2024, time.January, 1), day(2024, time.December, 31)) {
			n++
			if n == 3 {
				break
			}
		}
		assert.Equal(t, 3, n)
	})

	t.Run("unknown account", func(t *testing.T) {
		for _, err := range h.reports.GeneralLedger(h.ctx, h.companyID, uuid.New(), day(2024, time.March, 1), day(2024, time.March, 31)) {
			assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
		}
	})
}

func TestReportService_VerifyAndRebuild(t *testing.T) {
	h := newHarness(t)
	cash := h.account("1000", ledger.AccountTypeAsset)
	revenue := h.account("4000", ledger.AccountTypeRevenue)
	h.book(day(2024, time.March, 1), debit(cash, "75"), credit(revenue, "75"))

	v, err := h.reports.VerifyBalance(h.ctx, h.companyID, day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, v.Healthy())
	assertDecimal(t, "75", v.TotalDebits)

	divergences, err := h.engine.VerifyCachedBalances(h.ctx, h.companyID)
	require.NoError(t, err)
	assert.Empty(t, divergences)

	// corrupt the cache behind the engine's back
	require.NoError(t, h.store.AccountRepository().SetBalance(h.ctx, cash, amount("70")))

	v, err = h.reports.VerifyBalance(h.ctx, h.companyID, day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, v.Balanced, "the ledger itself still balances")
	assert.False(t, v.Healthy())
	require.Len(t, v.Divergences, 1)
	assert.Equal(t, "1000", v.Divergences[0].AccountCode)
	assertDecimal(t, "-5", v.Divergences[0].Difference)

	divergences, err = h.engine.VerifyCachedBalances(h.ctx, h.companyID)
	assert.ErrorIs(t, err, ledger.ErrBalanceDivergence)
	assert.Len(t, divergences, 1)

	fixed, err := h.engine.RebuildBalances(h.ctx, h.companyID)
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assertDecimal(t, "75", fixed[0].Recomputed)
	assertDecimal(t, "75", h.balance(cash))

	fixed, err = h.engine.RebuildBalances(h.ctx, h.companyID)
	require.NoError(t, err)
	assert.Empty(t, fixed, "a second rebuild finds nothing")

	balance, err := h.engine.AccountBalance(h.ctx, h.companyID, cash, day(2024, time.February, 28))
	require.NoError(t, err)
	assertDecimal(t, "0", balance)
}

func TestReportService_IncomeStatement(t *testing.T) {
	h := newHarness(t)
	cash := h.account("1000", ledger.AccountTypeAsset)
	sales := h.account("4000", ledger.AccountTypeRevenue)
	fees := h.account("4100", ledger.AccountTypeRevenue)
	rent := h.account("5000", ledger.AccountTypeExpense)

	h.book(day(2024, time.May, 1), debit(cash, "900"), credit(sales, "900"))
	h.book(day(2024, time.May, 2), debit(cash, "100"), credit(fees, "100"))
	h.book(day(2024, time.May, 3), debit(rent, "1200"), credit(cash, "1200"))

	stmt, err := h.reports.IncomeStatement(h.ctx, h.companyID, day(2024, time.May, 1), day(2024, time.May, 31))
	require.NoError(t, err)
	require.Len(t, stmt.Revenue, 2)
	assert.Equal(t, "4000", stmt.Revenue[0].AccountCode)
	require.Len(t, stmt.Expenses, 1)
	assertDecimal(t, "1000", stmt.TotalRevenue)
	assertDecimal(t, "1200", stmt.TotalExpense)
	assertDecimal(t, "-200", stmt.NetIncome)
}

// TestReportService_RandomEntriesBalance books random balanced entries and
// checks the ledger-wide invariants hold for every one of them.
func TestReportService_RandomEntriesBalance(t *testing.T) {
	h := newHarness(t)
	f := gofakeit.New(42)

	types := ledger.AllAccountTypes()
	accounts := make([]uuid.UUID, 0, 8)
	for i := range 8 {
		accounts = append(accounts, h.account(strconv.Itoa(1000+i*100), types[i%len(types)]))
	}

	for range 40 {
		n := f.IntRange(2, 5)
		lines := make([]appledger.LineInput, 0, n)
		total := decimal.Zero
		for range n - 1 {
			amt := decimal.NewFromFloat(f.Price(0.01, 5000)).Round(2)
			if amt.IsZero() {
				amt = decimal.NewFromInt(1)
			}
			total = total.Add(amt)
			lines = append(lines, appledger.LineInput{
				AccountID: accounts[f.IntRange(0, len(accounts)-1)],
				Debit:     amt,
				Memo:      f.Word(),
			})
		}
		lines = append(lines, appledger.LineInput{AccountID: accounts[f.IntRange(0, len(accounts)-1)], Credit: total})
		on := f.DateRange(day(2024, time.January, 1), day(2024, time.December, 31))
		h.book(on, lines...)
	}

	tb, err := h.reports.GenerateTrialBalance(h.ctx, h.companyID, day(2024, time.January, 1), day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced())

	v, err := h.reports.VerifyBalance(h.ctx, h.companyID, day(2024, time.December, 31))
	require.NoError(t, err)
	assert.True(t, v.Healthy())

	// debit-normal balances equal credit-normal balances
	debitSide, creditSide := decimal.Zero, decimal.Zero
	for _, id := range accounts {
		acc, err := h.accounts.GetAccount(h.ctx, h.companyID, id)
		require.NoError(t, err)
		if acc.NormalSide == string(ledger.SideDebit) {
			debitSide = debitSide.Add(acc.Balance)
		} else {
			creditSide = creditSide.Add(acc.Balance)
		}
	}
	assert.True(t, debitSide.Equal(creditSide), "debit side %s, credit side %s", debitSide, creditSide)
}
