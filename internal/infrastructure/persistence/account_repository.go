package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) first(ctx context.Context, notFound string, query any, args ...any) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrAccountNotFound.WithMessage("%s", notFound)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an account by ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return r.first(ctx, fmt.Sprintf("account %s not found", id), "id = ?", id)
}

// FindByIDForCompany finds an account by ID within a company
func (r *GormAccountRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*ledger.Account, error) {
	return r.first(ctx, fmt.Sprintf("account %s not found", id), "company_id = ? AND id = ?", companyID, id)
}

// FindByCode finds an account by its code within a company
func (r *GormAccountRepository) FindByCode(ctx context.Context, companyID uuid.UUID, code string) (*ledger.Account, error) {
	return r.first(ctx, fmt.Sprintf("account %q not found", code), "company_id = ? AND code = ?", companyID, code)
}

// FindByIDs loads the accounts that exist among ids
func (r *GormAccountRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]ledger.Account, error) {
	if len(ids) == 0 {
		return []ledger.Account{}, nil
	}
	var rows []models.AccountModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAccounts(rows), nil
}

// FindAllForCompany lists accounts matching filter with the total count
func (r *GormAccountRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter ledger.AccountFilter) ([]ledger.Account, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AccountModel{}).Scopes(CompanyScope(companyID))
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AccountModel
	if err := query.Scopes(PageScope(AccountSort, filter.Filter)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toAccounts(rows), total, nil
}

// Create inserts a new account
func (r *GormAccountRepository) Create(ctx context.Context, account *ledger.Account) error {
	if err := r.db.WithContext(ctx).Create(models.AccountModelFromDomain(account)).Error; err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateAccountCode.WithMessage("account code %q already exists", account.Code).WithCause(err)
		}
		return err
	}
	return nil
}

// SaveWithLock updates descriptive fields when the stored version is the one
// the account was loaded with. The cached balance is never written here.
func (r *GormAccountRepository) SaveWithLock(ctx context.Context, account *ledger.Account) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ? AND version = ?", account.ID, account.Version-1).
		Updates(map[string]any{
			"name":        account.Name,
			"description": account.Description,
			"parent_id":   account.ParentID,
			"is_active":   account.IsActive,
			"version":     account.Version,
			"updated_at":  account.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("account %s was modified by another process", account.Code)
	}
	return nil
}

// ApplyBalanceDelta atomically adds delta to the cached balance
func (r *GormAccountRepository) ApplyBalanceDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	if models.IsSQLite(r.db) {
		return r.applyBalanceDeltaExact(ctx, id, delta)
	}
	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
	}
	return nil
}

// applyBalanceDeltaExact adds delta in Go and writes the sum back only if
// the stored text is unchanged. sqlite would add in float64.
func (r *GormAccountRepository) applyBalanceDeltaExact(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	var stored []string
	if err := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ?", id).
		Pluck("balance", &stored).Error; err != nil {
		return err
	}
	if len(stored) == 0 {
		return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
	}
	current, err := decimal.NewFromString(stored[0])
	if err != nil {
		return fmt.Errorf("account %s holds invalid balance %q: %w", id, stored[0], err)
	}

	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ? AND balance = ?", id, stored[0]).
		UpdateColumn("balance", models.NewAmount(current.Add(delta)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("balance of account %s changed concurrently", id)
	}
	return nil
}

// SetBalance overwrites the cached balance
func (r *GormAccountRepository) SetBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ?", id).
		UpdateColumn("balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
	}
	return nil
}

// Delete removes an account
func (r *GormAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AccountModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrAccountNotFound.WithMessage("account %s not found", id)
	}
	return nil
}

func toAccounts(rows []models.AccountModel) []ledger.Account {
	out := make([]ledger.Account, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
