package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AccountLookup loads accounts for validation
type AccountLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Account, error)
}

// EntryValidator enforces the double-entry rules on a proposed line set.
// It never mutates state and may be called speculatively.
type EntryValidator struct {
	accounts AccountLookup
}

// NewEntryValidator creates a validator backed by the given account lookup
func NewEntryValidator(accounts AccountLookup) *EntryValidator {
	return &EntryValidator{accounts: accounts}
}

// Validate checks shape and balance of lines, then that every referenced
// account exists, is active and belongs to companyID.
func (v *EntryValidator) Validate(ctx context.Context, companyID uuid.UUID, lines []JournalLine) error {
	if err := ValidateLineSet(lines); err != nil {
		return err
	}

	ids := AccountIDs(lines)
	accounts, err := v.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	byID := make(map[uuid.UUID]*Account, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}

	for _, l := range lines {
		acc, ok := byID[l.AccountID]
		// an account of another company is reported as unknown so that
		// account IDs do not leak across companies
		if !ok || !acc.BelongsTo(companyID) {
			return ErrUnknownAccount.WithMessage("line %d: account %s does not exist", l.LineNo, l.AccountID)
		}
		if !acc.IsActive {
			return ErrInactiveAccount.WithMessage("line %d: account %s (%s) is inactive", l.LineNo, acc.Code, acc.Name)
		}
	}
	return nil
}

// ValidateLineSet runs the checks that need no account data: line count,
// per-line shape and the debit/credit balance.
func ValidateLineSet(lines []JournalLine) error {
	if len(lines) < MinLines {
		return ErrInvalidLine.WithMessage("a journal entry needs at least %d lines, got %d", MinLines, len(lines))
	}
	for _, l := range lines {
		if err := l.CheckShape(); err != nil {
			return err
		}
	}
	debits, credits := TotalDebits(lines), TotalCredits(lines)
	if !debits.Equal(credits) {
		return ErrUnbalancedEntry.WithMessage("total debits %s do not equal total credits %s", debits.StringFixed(MaxAmountScale), credits.StringFixed(MaxAmountScale))
	}
	return nil
}
