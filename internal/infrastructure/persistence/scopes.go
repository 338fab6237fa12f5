package persistence

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyScope restricts a query to rows owned by companyID. Every ledger
// table carries company_id, so all company-level reads go through it.
func CompanyScope(companyID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}

// PageScope orders by the whitelisted sort of spec and applies the page
// window of filter
func PageScope(spec SortSpec, filter shared.Filter) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, clause := range spec.Clauses(filter.OrderBy, filter.OrderDir) {
			db = db.Order(clause)
		}
		return db.Offset(filter.Offset()).Limit(filter.Limit())
	}
}
