package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// nextSequenceSQL increments the counter in one statement, so concurrent
// callers serialize on the row instead of racing a read-then-write.
const nextSequenceSQL = `INSERT INTO ledger_sequences (company_id, seq_key, value, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (company_id, seq_key) DO UPDATE
SET value = ledger_sequences.value + 1, updated_at = excluded.updated_at
RETURNING value`

// GormSequenceGenerator implements ledger.SequenceGenerator on the
// ledger_sequences table
type GormSequenceGenerator struct {
	db *gorm.DB
}

// NewGormSequenceGenerator creates a new GormSequenceGenerator
func NewGormSequenceGenerator(db *gorm.DB) *GormSequenceGenerator {
	return &GormSequenceGenerator{db: db}
}

// Next returns the next value of the (company, key) counter, starting at 1
func (g *GormSequenceGenerator) Next(ctx context.Context, companyID uuid.UUID, key string) (int64, error) {
	if key == "" {
		return 0, ledger.ErrInvalidInput.WithMessage("sequence key is required")
	}
	var value int64
	if err := g.db.WithContext(ctx).Raw(nextSequenceSQL, companyID, key, time.Now().UTC()).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to allocate sequence %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("sequence %s returned no value", key)
	}
	return value, nil
}

var _ ledger.SequenceGenerator = (*GormSequenceGenerator)(nil)
