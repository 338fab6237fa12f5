package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Amount is a monetary column. Postgres stores it as decimal(18,4). sqlite
// has no exact numeric type and computes on NUMERIC columns as REAL, so
// there the value is kept as its decimal text and never used in SQL
// arithmetic.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d for storage
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// GormDBDataType returns the column type for the connected dialect
func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if IsSQLite(db) {
		return "text"
	}
	return "decimal(18,4)"
}

// IsSQLite reports whether db talks to sqlite
func IsSQLite(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == "sqlite"
}
