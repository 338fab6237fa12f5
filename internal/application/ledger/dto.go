package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Account DTOs =====================

// CreateAccountRequest adds an account to a company's chart
type CreateAccountRequest struct {
	CompanyID   uuid.UUID  `json:"company_id" validate:"required"`
	Code        string     `json:"code" validate:"required,max=32"`
	Name        string     `json:"name" validate:"required,max=200"`
	Type        string     `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Description string     `json:"description,omitempty" validate:"max=500"`
}

// UpdateAccountRequest changes descriptive fields of an account
type UpdateAccountRequest struct {
	CompanyID   uuid.UUID `json:"company_id" validate:"required"`
	AccountID   uuid.UUID `json:"account_id" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description,omitempty" validate:"max=500"`
}

// MoveAccountRequest re-parents an account. A nil ParentID makes it a root.
type MoveAccountRequest struct {
	CompanyID uuid.UUID  `json:"company_id" validate:"required"`
	AccountID uuid.UUID  `json:"account_id" validate:"required"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
}

// AccountListFilter narrows account listings
type AccountListFilter struct {
	Type       string     `json:"type,omitempty" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	ActiveOnly bool       `json:"active_only,omitempty"`
	Search     string     `json:"search,omitempty"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=500"`
}

// AccountResponse is an account as returned to callers
type AccountResponse struct {
	ID          uuid.UUID       `json:"id"`
	CompanyID   uuid.UUID       `json:"company_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	NormalSide  string          `json:"normal_side"`
	ParentID    *uuid.UUID      `json:"parent_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ToAccountResponse converts a domain account
func ToAccountResponse(a *ledger.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID,
		CompanyID:   a.CompanyID,
		Code:        a.Code,
		Name:        a.Name,
		Type:        string(a.Type),
		NormalSide:  string(a.NormalSide()),
		ParentID:    a.ParentID,
		Description: a.Description,
		Balance:     a.Balance,
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Version:     a.Version,
	}
}

// ===================== Transaction DTOs =====================

// LineInput is one proposed journal line. Exactly one of Debit and Credit
// must be non-zero; the domain enforces it.
type LineInput struct {
	AccountID uuid.UUID       `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty" validate:"max=500"`
}

// CreateTransactionRequest creates a DRAFT transaction
type CreateTransactionRequest struct {
	CompanyID      uuid.UUID   `json:"company_id" validate:"required"`
	Type           string      `json:"type,omitempty" validate:"omitempty,oneof=GENERAL ADJUSTING"`
	AccountingDate time.Time   `json:"accounting_date" validate:"required"`
	Description    string      `json:"description,omitempty" validate:"max=500"`
	Lines          []LineInput `json:"lines" validate:"dive"`
	CreatedBy      uuid.UUID   `json:"created_by" validate:"required"`
	// IdempotencyKey makes retries of the same request return the first result
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=128"`
}

// ApproveTransactionRequest approves a DRAFT transaction
type ApproveTransactionRequest struct {
	CompanyID     uuid.UUID `json:"company_id" validate:"required"`
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	ApprovedBy    uuid.UUID `json:"approved_by" validate:"required"`
}

// PostTransactionRequest posts an APPROVED transaction
type PostTransactionRequest struct {
	CompanyID     uuid.UUID `json:"company_id" validate:"required"`
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	PostedBy      uuid.UUID `json:"posted_by" validate:"required"`
}

// CancelTransactionRequest cancels a transaction. A POSTED transaction is
// reversed; ReversalDate defaults to its accounting date.
type CancelTransactionRequest struct {
	CompanyID     uuid.UUID  `json:"company_id" validate:"required"`
	TransactionID uuid.UUID  `json:"transaction_id" validate:"required"`
	CancelledBy   uuid.UUID  `json:"cancelled_by" validate:"required"`
	Reason        string     `json:"reason" validate:"required,max=500"`
	ReversalDate  *time.Time `json:"reversal_date,omitempty"`
}

// AdjustingEntryRequest replaces a transaction with corrected lines.
// Reversal and replacement are both dated at AccountingDate.
type AdjustingEntryRequest struct {
	CompanyID      uuid.UUID   `json:"company_id" validate:"required"`
	OriginalID     uuid.UUID   `json:"original_id" validate:"required"`
	AccountingDate time.Time   `json:"accounting_date" validate:"required"`
	Description    string      `json:"description,omitempty" validate:"max=500"`
	Reason         string      `json:"reason" validate:"required,max=500"`
	Lines          []LineInput `json:"lines" validate:"dive"`
	CreatedBy      uuid.UUID   `json:"created_by" validate:"required"`
	// ApprovedBy defaults to CreatedBy, which fails when segregation of duties is required
	ApprovedBy *uuid.UUID `json:"approved_by,omitempty"`
}

// TransactionListFilter narrows transaction listings
type TransactionListFilter struct {
	Status   string     `json:"status,omitempty" validate:"omitempty,oneof=DRAFT APPROVED POSTED CANCELLED"`
	Type     string     `json:"type,omitempty" validate:"omitempty,oneof=GENERAL ADJUSTING REVERSAL CLOSING"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Page     int        `json:"page" validate:"gte=0"`
	PageSize int        `json:"page_size" validate:"gte=0,lte=500"`
}

// LineResponse is a journal line as returned to callers
type LineResponse struct {
	LineNo    int             `json:"line_no"`
	AccountID uuid.UUID       `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty"`
}

// TransactionResponse is a transaction as returned to callers
type TransactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	CompanyID      uuid.UUID       `json:"company_id"`
	Number         string          `json:"number"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	AccountingDate time.Time       `json:"accounting_date"`
	Description    string          `json:"description,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Lines          []LineResponse  `json:"lines,omitempty"`
	CreatedBy      uuid.UUID       `json:"created_by"`
	ApprovedBy     *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	PostedBy       *uuid.UUID      `json:"posted_by,omitempty"`
	PostedAt       *time.Time      `json:"posted_at,omitempty"`
	CancelledBy    *uuid.UUID      `json:"cancelled_by,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	ReferenceID    *uuid.UUID      `json:"reference_id,omitempty"`
	ReversedByID   *uuid.UUID      `json:"reversed_by_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// ToTransactionResponse converts a domain transaction
func ToTransactionResponse(t *ledger.Transaction) TransactionResponse {
	lines := make([]LineResponse, 0, len(t.Lines))
	for _, l := range t.Lines {
		lines = append(lines, LineResponse{
			LineNo:    l.LineNo,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		})
	}
	return TransactionResponse{
		ID:             t.ID,
		CompanyID:      t.CompanyID,
		Number:         t.Number,
		Type:           string(t.Type),
		Status:         string(t.Status),
		AccountingDate: t.AccountingDate,
		Description:    t.Description,
		Amount:         t.Amount(),
		Lines:          lines,
		CreatedBy:      t.CreatedBy,
		ApprovedBy:     t.ApprovedBy,
		ApprovedAt:     t.ApprovedAt,
		PostedBy:       t.PostedBy,
		PostedAt:       t.PostedAt,
		CancelledBy:    t.CancelledBy,
		CancelledAt:    t.CancelledAt,
		CancelReason:   t.CancelReason,
		ReferenceID:    t.ReferenceID,
		ReversedByID:   t.ReversedByID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Version:        t.Version,
	}
}

// CancelResult reports the outcome of a cancellation. Reversal is set when
// the cancelled transaction had been posted.
type CancelResult struct {
	Transaction TransactionResponse  `json:"transaction"`
	Reversal    *TransactionResponse `json:"reversal,omitempty"`
}

// AdjustmentResult reports the transactions produced by an adjusting entry
type AdjustmentResult struct {
	Original    TransactionResponse  `json:"original"`
	Reversal    *TransactionResponse `json:"reversal,omitempty"`
	Replacement TransactionResponse  `json:"replacement"`
}

// ===================== Period DTOs =====================

// ClosePeriodRequest closes one fiscal month
type ClosePeriodRequest struct {
	CompanyID uuid.UUID `json:"company_id" validate:"required"`
	Year      int       `json:"year" validate:"required,gte=1900,lte=9999"`
	Month     int       `json:"month" validate:"required,gte=1,lte=12"`
	ClosedBy  uuid.UUID `json:"closed_by" validate:"required"`
}

// CloseFiscalYearRequest closes a fiscal year into a retained earnings account
type CloseFiscalYearRequest struct {
	CompanyID                 uuid.UUID `json:"company_id" validate:"required"`
	Year                      int       `json:"year" validate:"required,gte=1900,lte=9999"`
	RetainedEarningsAccountID uuid.UUID `json:"retained_earnings_account_id" validate:"required"`
	ClosedBy                  uuid.UUID `json:"closed_by" validate:"required"`
}

// FiscalPeriodResponse is the state of one fiscal period. Recorded is false
// for a period that was never written and is therefore implicitly open.
type FiscalPeriodResponse struct {
	CompanyID uuid.UUID  `json:"company_id"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	Status    string     `json:"status"`
	Recorded  bool       `json:"recorded"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *uuid.UUID `json:"closed_by,omitempty"`
}

func toPeriodResponse(companyID uuid.UUID, key ledger.PeriodKey, p *ledger.FiscalPeriod) FiscalPeriodResponse {
	if p == nil {
		return FiscalPeriodResponse{
			CompanyID: companyID,
			Year:      key.Year,
			Month:     key.Month,
			Status:    string(ledger.PeriodStatusOpen),
		}
	}
	return FiscalPeriodResponse{
		CompanyID: p.CompanyID,
		Year:      p.FiscalYear,
		Month:     p.FiscalMonth,
		Status:    string(p.Status),
		Recorded:  true,
		ClosedAt:  p.ClosedAt,
		ClosedBy:  p.ClosedBy,
	}
}

// FiscalYearResponse is the result of closing a fiscal year
type FiscalYearResponse struct {
	CompanyID                 uuid.UUID            `json:"company_id"`
	Year                      int                  `json:"year"`
	Status                    string               `json:"status"`
	ClosedAt                  *time.Time           `json:"closed_at,omitempty"`
	ClosedBy                  *uuid.UUID           `json:"closed_by,omitempty"`
	RetainedEarningsAccountID *uuid.UUID           `json:"retained_earnings_account_id,omitempty"`
	NetIncome                 decimal.Decimal      `json:"net_income"`
	ClosingTransaction        *TransactionResponse `json:"closing_transaction,omitempty"`
}

// pageOf converts listing parameters into a domain filter
func pageOf(page, pageSize int, search string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	f.Search = search
	return f
}
