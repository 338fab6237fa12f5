package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSequenceGenerator_Next(t *testing.T) {
	ctx := context.Background()
	gen := NewGormSequenceGenerator(newSQLiteDB(t))
	companyID := uuid.New()

	for want := int64(1); want <= 3; want++ {
		got, err := gen.Next(ctx, companyID, "GENERAL-202401")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("keys and companies are independent", func(t *testing.T) {
		got, err := gen.Next(ctx, companyID, "GENERAL-202402")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = gen.Next(ctx, uuid.New(), "GENERAL-202401")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := gen.Next(ctx, companyID, "")
		assert.ErrorIs(t, err, ledger.ErrInvalidInput)
	})
}

func TestGormSequenceGenerator_Concurrent(t *testing.T) {
	ctx := context.Background()
	gen := NewGormSequenceGenerator(newSQLiteDB(t))
	companyID := uuid.New()

	const workers = 20
	values := make(chan int64, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := gen.Next(ctx, companyID, "ADJUSTING-202406")
			assert.NoError(t, err)
			values <- v
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool, workers)
	for v := range values {
		assert.False(t, seen[v], "value %d handed out twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers)
}

func TestGormSequenceGenerator_SQL(t *testing.T) {
	db, mock := newMockDB(t)
	gen := NewGormSequenceGenerator(db)
	companyID := uuid.New()

	mock.ExpectQuery(`INSERT INTO ledger_sequences .* ON CONFLICT \(company_id, seq_key\) DO UPDATE .* RETURNING value`).
		WithArgs(companyID, "GENERAL-202401", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(42))

	got, err := gen.Next(context.Background(), companyID, "GENERAL-202401")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
