package models

import (
	"time"

	"github.com/google/uuid"
)

// SequenceModel stores the last value handed out for a (company, key) counter.
// Rows are only ever incremented.
type SequenceModel struct {
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Key       string    `gorm:"column:seq_key;type:varchar(64);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceModel) TableName() string {
	return "ledger_sequences"
}

// All returns every ledger model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&AccountModel{},
		&TransactionModel{},
		&JournalLineModel{},
		&FiscalPeriodModel{},
		&FiscalYearModel{},
		&SequenceModel{},
	}
}
