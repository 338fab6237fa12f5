package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ClosingBalance is the year-end balance of a revenue or expense account,
// signed by the account's normal side.
type ClosingBalance struct {
	Account Account
	Balance decimal.Decimal
}

// BuildClosingLines produces the lines that zero every revenue and expense
// balance into retainedEarnings. It also returns the net income moved.
// No lines are returned when there is nothing to close.
func BuildClosingLines(balances []ClosingBalance, retainedEarnings *Account) ([]JournalLine, decimal.Decimal, error) {
	if retainedEarnings == nil {
		return nil, decimal.Zero, ErrInvalidAccount.WithMessage("retained earnings account is required")
	}
	if retainedEarnings.Type != AccountTypeEquity {
		return nil, decimal.Zero, ErrInvalidAccount.WithMessage("retained earnings account %s must be EQUITY, got %s", retainedEarnings.Code, retainedEarnings.Type)
	}
	if !retainedEarnings.IsActive {
		return nil, decimal.Zero, ErrInactiveAccount.WithMessage("retained earnings account %s is inactive", retainedEarnings.Code)
	}

	sorted := make([]ClosingBalance, 0, len(balances))
	for _, b := range balances {
		if !b.Account.Type.IsTemporary() {
			return nil, decimal.Zero, ErrInvalidAccount.WithMessage("account %s of type %s is not closed at year end", b.Account.Code, b.Account.Type)
		}
		if !b.Balance.IsZero() {
			sorted = append(sorted, b)
		}
	}
	if len(sorted) == 0 {
		return nil, decimal.Zero, nil
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Account.Code < sorted[j].Account.Code })

	netIncome := decimal.Zero
	lines := make([]JournalLine, 0, len(sorted)+1)
	for _, b := range sorted {
		normal := b.Account.NormalSide()
		side := normal.Opposite()
		if b.Balance.IsNegative() {
			side = normal
		}
		lines = append(lines, NewLine(b.Account.ID, side, b.Balance.Abs(), "Year-end close of "+b.Account.Code))

		if b.Account.Type == AccountTypeRevenue {
			netIncome = netIncome.Add(b.Balance)
		} else {
			netIncome = netIncome.Sub(b.Balance)
		}
	}

	switch {
	case netIncome.IsPositive():
		lines = append(lines, NewCreditLine(retainedEarnings.ID, netIncome, "Net income to retained earnings"))
	case netIncome.IsNegative():
		lines = append(lines, NewDebitLine(retainedEarnings.ID, netIncome.Abs(), "Net loss to retained earnings"))
	}
	NumberLines(lines)
	return lines, netIncome, nil
}
