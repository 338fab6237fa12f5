package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_Category(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{ErrUnbalancedEntry, CategoryValidation},
		{ErrInvalidLine, CategoryValidation},
		{ErrUnknownAccount, CategoryValidation},
		{ErrInactiveAccount, CategoryValidation},
		{ErrInvalidState, CategoryState},
		{ErrAlreadyPosted, CategoryState},
		{ErrPostingConflict, CategoryState},
		{ErrPeriodClosed, CategoryPeriod},
		{ErrPeriodsStillOpen, CategoryPeriod},
		{ErrBalanceDivergence, CategoryConsistency},
		{ErrLedgerUnbalanced, CategoryConsistency},
		{ErrTransactionNotFound, CategoryNotFound},
		{errors.New("io"), CategoryUnknown},
		{nil, CategoryUnknown},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestCategoryOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("post: %w", ErrPeriodClosed.WithMessage("fiscal period 2024-01 is closed"))
	assert.True(t, IsPeriodError(err))
	assert.ErrorIs(t, err, ErrPeriodClosed)
	assert.False(t, IsStateError(err))
}
