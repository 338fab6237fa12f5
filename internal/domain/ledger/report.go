package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrialBalanceStatus is the outcome of a trial balance
type TrialBalanceStatus string

const (
	TrialBalanceStatusBalanced   TrialBalanceStatus = "BALANCED"
	TrialBalanceStatusUnbalanced TrialBalanceStatus = "UNBALANCED"
)

// TrialBalanceRow is the activity of one account over the report range.
// Net is signed by the account's normal side.
type TrialBalanceRow struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType AccountType     `json:"account_type"`
	NormalSide  Side            `json:"normal_side"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Net         decimal.Decimal `json:"net"`
}

// TrialBalance lists every account with ledger activity in [From, To]
type TrialBalance struct {
	CompanyID   uuid.UUID          `json:"company_id"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Rows        []TrialBalanceRow  `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Status      TrialBalanceStatus `json:"status"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// SetTotals sums the rows and derives the status
func (tb *TrialBalance) SetTotals() {
	tb.TotalDebit = decimal.Zero
	tb.TotalCredit = decimal.Zero
	for _, r := range tb.Rows {
		tb.TotalDebit = tb.TotalDebit.Add(r.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(r.Credit)
	}
	if tb.TotalDebit.Equal(tb.TotalCredit) {
		tb.Status = TrialBalanceStatusBalanced
	} else {
		tb.Status = TrialBalanceStatusUnbalanced
	}
}

// IsBalanced reports whether total debits equal total credits
func (tb *TrialBalance) IsBalanced() bool {
	return tb.Status == TrialBalanceStatusBalanced
}

// GeneralLedgerEntry is one ledger line with the account's running balance
// after it, signed by the account's normal side.
type GeneralLedgerEntry struct {
	LedgerLine
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// BalanceDivergence is an account whose cached balance differs from the
// balance recomputed from the ledger.
type BalanceDivergence struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	Cached      decimal.Decimal `json:"cached"`
	Recomputed  decimal.Decimal `json:"recomputed"`
	Difference  decimal.Decimal `json:"difference"`
}

// BalanceVerification is the result of a ledger self-check
type BalanceVerification struct {
	CompanyID    uuid.UUID           `json:"company_id"`
	AsOf         time.Time           `json:"as_of"`
	TotalDebits  decimal.Decimal     `json:"total_debits"`
	TotalCredits decimal.Decimal     `json:"total_credits"`
	Difference   decimal.Decimal     `json:"difference"`
	Balanced     bool                `json:"balanced"`
	Divergences  []BalanceDivergence `json:"divergences,omitempty"`
	CheckedAt    time.Time           `json:"checked_at"`
}

// Healthy reports whether the ledger balances and the cache matches it
func (v *BalanceVerification) Healthy() bool {
	return v.Balanced && len(v.Divergences) == 0
}

// IncomeStatementLine is the net result of one revenue or expense account
type IncomeStatementLine struct {
	AccountID   uuid.UUID       `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType AccountType     `json:"account_type"`
	Amount      decimal.Decimal `json:"amount"`
}

// IncomeStatement summarises revenue and expense activity over a range
type IncomeStatement struct {
	CompanyID    uuid.UUID             `json:"company_id"`
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Revenue      []IncomeStatementLine `json:"revenue"`
	Expenses     []IncomeStatementLine `json:"expenses"`
	TotalRevenue decimal.Decimal       `json:"total_revenue"`
	TotalExpense decimal.Decimal       `json:"total_expense"`
	NetIncome    decimal.Decimal       `json:"net_income"`
}
