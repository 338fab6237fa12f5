package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxAmountScale is the number of fractional digits an amount may carry.
// It matches the decimal(18,4) storage columns.
const MaxAmountScale = 4

// MinLines is the minimum number of lines in a journal entry
const MinLines = 2

// JournalLine is one debit or credit leg of a transaction.
// Exactly one of Debit and Credit is non-zero.
type JournalLine struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	LineNo        int
	AccountID     uuid.UUID
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Memo          string
}

// NewDebitLine creates a debit line
func NewDebitLine(accountID uuid.UUID, amount decimal.Decimal, memo string) JournalLine {
	return JournalLine{
		ID:        uuid.New(),
		AccountID: accountID,
		Debit:     amount,
		Credit:    decimal.Zero,
		Memo:      memo,
	}
}

// NewCreditLine creates a credit line
func NewCreditLine(accountID uuid.UUID, amount decimal.Decimal, memo string) JournalLine {
	return JournalLine{
		ID:        uuid.New(),
		AccountID: accountID,
		Debit:     decimal.Zero,
		Credit:    amount,
		Memo:      memo,
	}
}

// NewLine creates a line on the given side
func NewLine(accountID uuid.UUID, side Side, amount decimal.Decimal, memo string) JournalLine {
	if side == SideCredit {
		return NewCreditLine(accountID, amount, memo)
	}
	return NewDebitLine(accountID, amount, memo)
}

// Side returns the side carrying the amount
func (l JournalLine) Side() Side {
	if l.Debit.IsZero() {
		return SideCredit
	}
	return SideDebit
}

// Amount returns the non-zero amount of the line
func (l JournalLine) Amount() decimal.Decimal {
	if l.Debit.IsZero() {
		return l.Credit
	}
	return l.Debit
}

// Swapped returns a fresh line with debit and credit exchanged
func (l JournalLine) Swapped() JournalLine {
	return JournalLine{
		ID:        uuid.New(),
		LineNo:    l.LineNo,
		AccountID: l.AccountID,
		Debit:     l.Credit,
		Credit:    l.Debit,
		Memo:      l.Memo,
	}
}

// CheckShape validates the line on its own: one account, exactly one
// positive side, and no more precision than storage keeps.
func (l JournalLine) CheckShape() error {
	if l.AccountID == uuid.Nil {
		return ErrInvalidLine.WithMessage("line %d: account is required", l.LineNo)
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return ErrInvalidLine.WithMessage("line %d: amounts cannot be negative", l.LineNo)
	}
	hasDebit := !l.Debit.IsZero()
	hasCredit := !l.Credit.IsZero()
	if hasDebit == hasCredit {
		if hasDebit {
			return ErrInvalidLine.WithMessage("line %d: cannot carry both a debit and a credit", l.LineNo)
		}
		return ErrInvalidLine.WithMessage("line %d: must carry either a debit or a credit", l.LineNo)
	}
	if amount := l.Amount(); !amount.Equal(amount.Round(MaxAmountScale)) {
		return ErrInvalidLine.WithMessage("line %d: amount %s has more than %d decimal places", l.LineNo, l.Amount(), MaxAmountScale)
	}
	return nil
}

// NumberLines assigns 1-based line numbers in slice order
func NumberLines(lines []JournalLine) {
	for i := range lines {
		lines[i].LineNo = i + 1
	}
}

// TotalDebits sums the debit side of lines
func TotalDebits(lines []JournalLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredits sums the credit side of lines
func TotalCredits(lines []JournalLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Credit)
	}
	return total
}

// AccountIDs returns the distinct accounts referenced by lines, in first-seen order
func AccountIDs(lines []JournalLine) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if !seen[l.AccountID] {
			seen[l.AccountID] = true
			ids = append(ids, l.AccountID)
		}
	}
	return ids
}

// ReverseLines returns a new line set with every debit and credit swapped
func ReverseLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, len(lines))
	for i, l := range lines {
		out[i] = l.Swapped()
	}
	return out
}
