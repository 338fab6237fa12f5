package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	detailed := ErrInvalidState.WithMessage("cannot approve transaction in %s status", "POSTED")

	assert.ErrorIs(t, detailed, ErrInvalidState)
	assert.NotErrorIs(t, detailed, ErrNotFound)
	assert.Equal(t, "cannot approve transaction in POSTED status", detailed.Error())

	wrapped := fmt.Errorf("approve: %w", detailed)
	assert.ErrorIs(t, wrapped, ErrInvalidState)
	assert.Equal(t, "INVALID_STATE", CodeOf(wrapped))
}

func TestDomainError_WithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrConcurrencyConflict.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestCodeOf_NonDomainError(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestFilter_OffsetAndLimit(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		offset int
		limit  int
	}{
		{"defaults", DefaultFilter(), 0, 20},
		{"third page", Filter{Page: 3, PageSize: 10}, 20, 10},
		{"zero values", Filter{}, 0, 20},
		{"oversized page", Filter{Page: 2, PageSize: 10_000}, MaxPageSize, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.offset, tt.filter.Offset())
			assert.Equal(t, tt.limit, tt.filter.Limit())
		})
	}
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2, 3}, 21, Filter{Page: 3, PageSize: 10})
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 3, p.Page)
	assert.Len(t, p.Items, 3)

	empty := NewPaginated[int](nil, 0, Filter{})
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, 1, empty.Page)
	assert.NotNil(t, empty.Items)
}

func TestCompanyAggregateRoot_Events(t *testing.T) {
	companyID := uuid.New()
	root := NewCompanyAggregateRoot(companyID)
	assert.Equal(t, 1, root.Version)
	assert.True(t, root.BelongsTo(companyID))
	assert.False(t, root.BelongsTo(uuid.New()))

	header := NewEventHeader("Thing", "Widget", root.ID, companyID)
	root.AddDomainEvent(&header)
	root.IncrementVersion()

	assert.Equal(t, 2, root.Version)
	require.Len(t, root.GetDomainEvents(), 1)
	assert.Equal(t, "Thing", root.GetDomainEvents()[0].EventType())
	assert.Equal(t, companyID, root.GetDomainEvents()[0].CompanyID())

	root.ClearDomainEvents()
	assert.Empty(t, root.GetDomainEvents())
}
