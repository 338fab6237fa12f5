package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccountLookup struct {
	accounts map[uuid.UUID]Account
	err      error
}

func (s *stubAccountLookup) FindByIDs(_ context.Context, ids []uuid.UUID) ([]Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidateLineSet(t *testing.T) {
	cash, sales := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		lines   []JournalLine
		wantErr error
	}{
		{
			name:  "balanced entry",
			lines: []JournalLine{NewDebitLine(cash, amt("1000.00"), ""), NewCreditLine(sales, amt("1000.00"), "")},
		},
		{
			name:    "fewer than two lines",
			lines:   []JournalLine{NewDebitLine(cash, amt("1000.00"), "")},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "unbalanced entry",
			lines:   []JournalLine{NewDebitLine(cash, amt("1000.00"), ""), NewCreditLine(sales, amt("900.00"), "")},
			wantErr: ErrUnbalancedEntry,
		},
		{
			name: "both sides set",
			lines: []JournalLine{
				{AccountID: cash, Debit: amt("10"), Credit: amt("10")},
				NewCreditLine(sales, amt("0"), ""),
			},
			wantErr: ErrInvalidLine,
		},
		{
			name: "neither side set",
			lines: []JournalLine{
				{AccountID: cash, Debit: decimal.Zero, Credit: decimal.Zero},
				NewCreditLine(sales, amt("10"), ""),
			},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "negative amount",
			lines:   []JournalLine{NewDebitLine(cash, amt("-10"), ""), NewCreditLine(sales, amt("-10"), "")},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "missing account",
			lines:   []JournalLine{NewDebitLine(uuid.Nil, amt("10"), ""), NewCreditLine(sales, amt("10"), "")},
			wantErr: ErrInvalidLine,
		},
		{
			name:    "too many decimal places",
			lines:   []JournalLine{NewDebitLine(cash, amt("10.00001"), ""), NewCreditLine(sales, amt("10.00001"), "")},
			wantErr: ErrInvalidLine,
		},
		{
			name:  "trailing zeros beyond scale are fine",
			lines: []JournalLine{NewDebitLine(cash, amt("10.000000"), ""), NewCreditLine(sales, amt("10"), "")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLineSet(tt.lines)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestEntryValidator_Validate(t *testing.T) {
	companyID := uuid.New()
	cash, err := NewAccount(companyID, "1000", "Cash", AccountTypeAsset, nil)
	require.NoError(t, err)
	sales, err := NewAccount(companyID, "4000", "Sales Revenue", AccountTypeRevenue, nil)
	require.NoError(t, err)
	dormant, err := NewAccount(companyID, "1900", "Dormant", AccountTypeAsset, nil)
	require.NoError(t, err)
	require.NoError(t, dormant.Deactivate())
	foreign, err := NewAccount(uuid.New(), "1000", "Other Cash", AccountTypeAsset, nil)
	require.NoError(t, err)

	lookup := &stubAccountLookup{accounts: map[uuid.UUID]Account{
		cash.ID:    *cash,
		sales.ID:   *sales,
		dormant.ID: *dormant,
		foreign.ID: *foreign,
	}}
	v := NewEntryValidator(lookup)
	ctx := context.Background()

	t.Run("accepts valid entry", func(t *testing.T) {
		err := v.Validate(ctx, companyID, []JournalLine{
			NewDebitLine(cash.ID, amt("1000.00"), ""),
			NewCreditLine(sales.ID, amt("1000.00"), ""),
		})
		assert.NoError(t, err)
	})

	t.Run("unknown account", func(t *testing.T) {
		err := v.Validate(ctx, companyID, []JournalLine{
			NewDebitLine(uuid.New(), amt("5"), ""),
			NewCreditLine(sales.ID, amt("5"), ""),
		})
		assert.ErrorIs(t, err, ErrUnknownAccount)
	})

	t.Run("inactive account", func(t *testing.T) {
		err := v.Validate(ctx, companyID, []JournalLine{
			NewDebitLine(dormant.ID, amt("5"), ""),
			NewCreditLine(sales.ID, amt("5"), ""),
		})
		assert.ErrorIs(t, err, ErrInactiveAccount)
	})

	t.Run("account of another company", func(t *testing.T) {
		err := v.Validate(ctx, companyID, []JournalLine{
			NewDebitLine(foreign.ID, amt("5"), ""),
			NewCreditLine(sales.ID, amt("5"), ""),
		})
		assert.ErrorIs(t, err, ErrUnknownAccount)
	})

	t.Run("balance is checked before accounts", func(t *testing.T) {
		err := v.Validate(ctx, companyID, []JournalLine{
			NewDebitLine(uuid.New(), amt("1000.00"), ""),
			NewCreditLine(sales.ID, amt("900.00"), ""),
		})
		assert.ErrorIs(t, err, ErrUnbalancedEntry)
	})

	t.Run("lookup failure is wrapped", func(t *testing.T) {
		boom := errors.New("db down")
		err := NewEntryValidator(&stubAccountLookup{err: boom}).Validate(ctx, companyID, []JournalLine{
			NewDebitLine(cash.ID, amt("5"), ""),
			NewCreditLine(sales.ID, amt("5"), ""),
		})
		assert.ErrorIs(t, err, boom)
		assert.False(t, IsValidationError(err))
	})
}

// randomBalancedLines builds n debit lines and splits their total across m credit lines.
func randomBalancedLines(f *gofakeit.Faker, accounts []uuid.UUID) []JournalLine {
	debitCount := f.IntRange(1, 5)
	creditCount := f.IntRange(1, 5)

	lines := make([]JournalLine, 0, debitCount+creditCount)
	total := int64(0)
	for i := 0; i < debitCount; i++ {
		cents := int64(f.IntRange(1, 10_000_000))
		total += cents
		lines = append(lines, NewDebitLine(accounts[f.IntRange(0, len(accounts)-1)], decimal.New(cents, -2), f.Word()))
	}

	remaining := total
	for i := 0; i < creditCount; i++ {
		cents := remaining
		if i < creditCount-1 && remaining > int64(creditCount-i) {
			cents = int64(f.IntRange(1, int(remaining)-(creditCount-i-1)))
		}
		if cents <= 0 {
			break
		}
		remaining -= cents
		lines = append(lines, NewCreditLine(accounts[f.IntRange(0, len(accounts)-1)], decimal.New(cents, -2), f.Word()))
	}
	NumberLines(lines)
	return lines
}

func TestValidateLineSet_GeneratedEntriesBalance(t *testing.T) {
	f := gofakeit.New(20240131)
	accounts := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	for i := 0; i < 500; i++ {
		lines := randomBalancedLines(f, accounts)

		require.NoError(t, ValidateLineSet(lines), "iteration %d", i)
		assert.True(t, TotalDebits(lines).Equal(TotalCredits(lines)))

		// nudging any single line by one cent must break the balance
		idx := f.IntRange(0, len(lines)-1)
		broken := append([]JournalLine(nil), lines...)
		if broken[idx].Side() == SideDebit {
			broken[idx].Debit = broken[idx].Debit.Add(amt("0.01"))
		} else {
			broken[idx].Credit = broken[idx].Credit.Add(amt("0.01"))
		}
		assert.ErrorIs(t, ValidateLineSet(broken), ErrUnbalancedEntry, "iteration %d", i)

		// reversing keeps the entry balanced with sides swapped
		reversed := ReverseLines(lines)
		require.NoError(t, ValidateLineSet(reversed))
		assert.True(t, TotalDebits(reversed).Equal(TotalCredits(lines)))
	}
}
