package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTransactionRepository implements ledger.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func (r *GormTransactionRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no ASC")
	})
}

func (r *GormTransactionRepository) first(ctx context.Context, notFound string, query any, args ...any) (*ledger.Transaction, error) {
	var model models.TransactionModel
	if err := r.withLines(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTransactionNotFound.WithMessage("%s", notFound)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a transaction with its lines
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return r.first(ctx, fmt.Sprintf("transaction %s not found", id), "id = ?", id)
}

// FindByIDForCompany finds a transaction with its lines within a company
func (r *GormTransactionRepository) FindByIDForCompany(ctx context.Context, companyID, id uuid.UUID) (*ledger.Transaction, error) {
	return r.first(ctx, fmt.Sprintf("transaction %s not found", id), "company_id = ? AND id = ?", companyID, id)
}

// FindByNumber finds a transaction by number within a company
func (r *GormTransactionRepository) FindByNumber(ctx context.Context, companyID uuid.UUID, number string) (*ledger.Transaction, error) {
	return r.first(ctx, fmt.Sprintf("transaction %q not found", number), "company_id = ? AND number = ?", companyID, number)
}

// FindAllForCompany lists transactions without their lines
func (r *GormTransactionRepository) FindAllForCompany(ctx context.Context, companyID uuid.UUID, filter ledger.TransactionFilter) ([]ledger.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TransactionModel{}).Scopes(CompanyScope(companyID))
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.From != nil {
		query = query.Where("accounting_date >= ?", ledger.NormalizeDate(*filter.From))
	}
	if filter.To != nil {
		query = query.Where("accounting_date <= ?", ledger.NormalizeDate(*filter.To))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("number LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.TransactionModel
	if err := query.Scopes(PageScope(TransactionSort, filter.Filter)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]ledger.Transaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a transaction and its lines
func (r *GormTransactionRepository) Create(ctx context.Context, txn *ledger.Transaction) error {
	model := models.TransactionModelFromDomain(txn)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrInvalidInput.WithMessage("transaction number %s already exists", txn.Number).WithCause(err)
		}
		return err
	}
	return nil
}

// SaveWithLock writes the status fields when the stored version matches
func (r *GormTransactionRepository) SaveWithLock(ctx context.Context, txn *ledger.Transaction) error {
	result := r.db.WithContext(ctx).
		Model(&models.TransactionModel{}).
		Where("id = ? AND version = ?", txn.ID, txn.Version-1).
		Updates(map[string]any{
			"status":         txn.Status,
			"approved_by":    txn.ApprovedBy,
			"approved_at":    txn.ApprovedAt,
			"posted_by":      txn.PostedBy,
			"posted_at":      txn.PostedAt,
			"cancelled_by":   txn.CancelledBy,
			"cancelled_at":   txn.CancelledAt,
			"cancel_reason":  txn.CancelReason,
			"reference_id":   txn.ReferenceID,
			"reversed_by_id": txn.ReversedByID,
			"version":        txn.Version,
			"updated_at":     txn.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("transaction %s was modified by another process", txn.Number)
	}
	return nil
}

// CountLinesForAccount counts journal lines referencing an account in any status
func (r *GormTransactionRepository) CountLinesForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.JournalLineModel{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}

type ledgerLineRow struct {
	TransactionID     uuid.UUID
	TransactionNumber string
	TransactionType   ledger.TransactionType
	Description       string
	AccountingDate    time.Time
	PostedAt          time.Time
	LineNo            int
	AccountID         uuid.UUID
	Debit             decimal.Decimal
	Credit            decimal.Decimal
	Memo              string
}

// FindLedgerLines returns ledger-effective lines of one account in posting order
func (r *GormTransactionRepository) FindLedgerLines(ctx context.Context, q ledger.LedgerLineQuery) ([]ledger.LedgerLine, error) {
	query := r.db.WithContext(ctx).
		Table("journal_lines AS l").
		Select(`t.id AS transaction_id, t.number AS transaction_number, t.type AS transaction_type,
			t.description, t.accounting_date, t.posted_at, l.line_no, l.account_id, l.debit, l.credit, l.memo`).
		Joins("JOIN transactions AS t ON t.id = l.transaction_id").
		Where("t.company_id = ? AND l.account_id = ? AND t.posted_at IS NOT NULL", q.CompanyID, q.AccountID)
	query = dateRange(query, "t.accounting_date", q.From, q.To)
	query = query.Order("t.accounting_date ASC, t.posted_at ASC, t.number ASC, l.line_no ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var rows []ledgerLineRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.LedgerLine, len(rows))
	for i, row := range rows {
		out[i] = ledger.LedgerLine{
			TransactionID:     row.TransactionID,
			TransactionNumber: row.TransactionNumber,
			TransactionType:   row.TransactionType,
			Description:       row.Description,
			AccountingDate:    ledger.NormalizeDate(row.AccountingDate),
			PostedAt:          row.PostedAt.UTC(),
			LineNo:            row.LineNo,
			AccountID:         row.AccountID,
			Debit:             row.Debit,
			Credit:            row.Credit,
			Memo:              row.Memo,
		}
	}
	return out, nil
}

type activityRow struct {
	AccountID uuid.UUID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// SumLedgerActivity aggregates ledger-effective lines per account
func (r *GormTransactionRepository) SumLedgerActivity(ctx context.Context, q ledger.ActivityQuery) ([]ledger.AccountActivity, error) {
	query := r.db.WithContext(ctx).
		Table("journal_lines AS l").
		Joins("JOIN transactions AS t ON t.id = l.transaction_id").
		Where("t.company_id = ? AND t.posted_at IS NOT NULL", q.CompanyID)
	if len(q.AccountIDs) > 0 {
		query = query.Where("l.account_id IN ?", q.AccountIDs)
	}
	if q.ExcludeClosing {
		query = query.Where("t.type <> ?", ledger.TransactionTypeClosing)
	}
	query = dateRange(query, "t.accounting_date", q.From, q.To)

	var rows []activityRow
	if models.IsSQLite(r.db) {
		// sqlite SUM is floating point; add the exact line amounts here
		if err := query.Select("l.account_id, l.debit, l.credit").Scan(&rows).Error; err != nil {
			return nil, err
		}
		return sumActivity(rows), nil
	}

	err := query.Select("l.account_id, COALESCE(SUM(l.debit), 0) AS debit, COALESCE(SUM(l.credit), 0) AS credit").
		Group("l.account_id").
		Order("l.account_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ledger.AccountActivity, len(rows))
	for i, row := range rows {
		out[i] = ledger.AccountActivity{AccountID: row.AccountID, Debit: row.Debit, Credit: row.Credit}
	}
	return out, nil
}

// sumActivity totals line rows per account, ordered by account id
func sumActivity(rows []activityRow) []ledger.AccountActivity {
	byAccount := make(map[uuid.UUID]*ledger.AccountActivity)
	for _, row := range rows {
		a, ok := byAccount[row.AccountID]
		if !ok {
			a = &ledger.AccountActivity{AccountID: row.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
			byAccount[row.AccountID] = a
		}
		a.Debit = a.Debit.Add(row.Debit)
		a.Credit = a.Credit.Add(row.Credit)
	}
	out := make([]ledger.AccountActivity, 0, len(byAccount))
	for _, a := range byAccount {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b ledger.AccountActivity) int {
		return strings.Compare(a.AccountID.String(), b.AccountID.String())
	})
	return out
}

func dateRange(query *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where(column+" >= ?", ledger.NormalizeDate(*from))
	}
	if to != nil {
		query = query.Where(column+" <= ?", ledger.NormalizeDate(*to))
	}
	return query
}

var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
