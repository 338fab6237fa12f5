package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFiscalPeriodRepository implements ledger.FiscalPeriodRepository using GORM
type GormFiscalPeriodRepository struct {
	db *gorm.DB
}

// NewGormFiscalPeriodRepository creates a new GormFiscalPeriodRepository
func NewGormFiscalPeriodRepository(db *gorm.DB) *GormFiscalPeriodRepository {
	return &GormFiscalPeriodRepository{db: db}
}

// FindPeriod finds one period, or nil when it was never recorded
func (r *GormFiscalPeriodRepository) FindPeriod(ctx context.Context, companyID uuid.UUID, key ledger.PeriodKey) (*ledger.FiscalPeriod, error) {
	var model models.FiscalPeriodModel
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND fiscal_year = ? AND fiscal_month = ?", companyID, key.Year, key.Month).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPeriodsByYear lists the recorded periods of a year ordered by month
func (r *GormFiscalPeriodRepository) FindPeriodsByYear(ctx context.Context, companyID uuid.UUID, year int) ([]ledger.FiscalPeriod, error) {
	var rows []models.FiscalPeriodModel
	if err := r.db.WithContext(ctx).
		Scopes(CompanyScope(companyID)).
		Where("fiscal_year = ?", year).
		Order("fiscal_month ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.FiscalPeriod, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// CreatePeriod inserts a period. A concurrent insert of the same period
// surfaces as a concurrency conflict.
func (r *GormFiscalPeriodRepository) CreatePeriod(ctx context.Context, period *ledger.FiscalPeriod) error {
	if err := r.db.WithContext(ctx).Create(models.FiscalPeriodModelFromDomain(period)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict.WithMessage("period %s already recorded", period.Key()).WithCause(err)
		}
		return err
	}
	return nil
}

// SavePeriodWithLock updates a period with optimistic locking
func (r *GormFiscalPeriodRepository) SavePeriodWithLock(ctx context.Context, period *ledger.FiscalPeriod) error {
	result := r.db.WithContext(ctx).
		Model(&models.FiscalPeriodModel{}).
		Where("id = ? AND version = ?", period.ID, period.Version-1).
		Updates(map[string]any{
			"status":     period.Status,
			"closed_at":  period.ClosedAt,
			"closed_by":  period.ClosedBy,
			"version":    period.Version,
			"updated_at": period.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("period %s was modified by another process", period.Key())
	}
	return nil
}

// FindYear finds the fiscal year record, or nil when it was never recorded
func (r *GormFiscalPeriodRepository) FindYear(ctx context.Context, companyID uuid.UUID, year int) (*ledger.FiscalYear, error) {
	var model models.FiscalYearModel
	err := r.db.WithContext(ctx).Where("company_id = ? AND year = ?", companyID, year).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CreateYear inserts a fiscal year record
func (r *GormFiscalPeriodRepository) CreateYear(ctx context.Context, year *ledger.FiscalYear) error {
	if err := r.db.WithContext(ctx).Create(models.FiscalYearModelFromDomain(year)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict.WithMessage("fiscal year %d already recorded", year.Year).WithCause(err)
		}
		return err
	}
	return nil
}

// SaveYearWithLock updates a fiscal year with optimistic locking
func (r *GormFiscalPeriodRepository) SaveYearWithLock(ctx context.Context, year *ledger.FiscalYear) error {
	result := r.db.WithContext(ctx).
		Model(&models.FiscalYearModel{}).
		Where("id = ? AND version = ?", year.ID, year.Version-1).
		Updates(map[string]any{
			"status":                       year.Status,
			"closed_at":                    year.ClosedAt,
			"closed_by":                    year.ClosedBy,
			"closing_transaction_id":       year.ClosingTransactionID,
			"retained_earnings_account_id": year.RetainedEarningsAccountID,
			"version":                      year.Version,
			"updated_at":                   year.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("fiscal year %d was modified by another process", year.Year)
	}
	return nil
}

var _ ledger.FiscalPeriodRepository = (*GormFiscalPeriodRepository)(nil)
