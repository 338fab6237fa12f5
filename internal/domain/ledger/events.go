package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeAccountCreated       = "AccountCreated"
	EventTypeTransactionCreated   = "TransactionCreated"
	EventTypeTransactionApproved  = "TransactionApproved"
	EventTypeTransactionPosted    = "TransactionPosted"
	EventTypeTransactionCancelled = "TransactionCancelled"
	EventTypePeriodClosed         = "FiscalPeriodClosed"
	EventTypeFiscalYearClosed     = "FiscalYearClosed"

	aggregateTypeAccount     = "Account"
	aggregateTypeTransaction = "Transaction"
	aggregateTypePeriod      = "FiscalPeriod"
	aggregateTypeYear        = "FiscalYear"
)

// AccountCreatedEvent is raised when an account is added to the chart
type AccountCreatedEvent struct {
	shared.EventHeader
	AccountID   uuid.UUID   `json:"account_id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	AccountType AccountType `json:"account_type"`
}

// EventType returns the event type name
func (e *AccountCreatedEvent) EventType() string {
	return EventTypeAccountCreated
}

// NewAccountCreatedEvent creates a new AccountCreatedEvent
func NewAccountCreatedEvent(a *Account) *AccountCreatedEvent {
	return &AccountCreatedEvent{
		EventHeader: shared.NewEventHeader(EventTypeAccountCreated, aggregateTypeAccount, a.ID, a.CompanyID),
		AccountID:   a.ID,
		Code:        a.Code,
		Name:        a.Name,
		AccountType: a.Type,
	}
}

// TransactionCreatedEvent is raised when a DRAFT transaction is created
type TransactionCreatedEvent struct {
	shared.EventHeader
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Number         string          `json:"number"`
	Type           TransactionType `json:"type"`
	AccountingDate time.Time       `json:"accounting_date"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedBy      uuid.UUID       `json:"created_by"`
}

// EventType returns the event type name
func (e *TransactionCreatedEvent) EventType() string {
	return EventTypeTransactionCreated
}

// NewTransactionCreatedEvent creates a new TransactionCreatedEvent
func NewTransactionCreatedEvent(t *Transaction) *TransactionCreatedEvent {
	return &TransactionCreatedEvent{
		EventHeader:    shared.NewEventHeader(EventTypeTransactionCreated, aggregateTypeTransaction, t.ID, t.CompanyID),
		TransactionID:  t.ID,
		Number:         t.Number,
		Type:           t.Type,
		AccountingDate: t.AccountingDate,
		Amount:         TotalDebits(t.Lines),
		CreatedBy:      t.CreatedBy,
	}
}

// TransactionApprovedEvent is raised when a transaction is approved
type TransactionApprovedEvent struct {
	shared.EventHeader
	TransactionID uuid.UUID `json:"transaction_id"`
	Number        string    `json:"number"`
	ApprovedBy    uuid.UUID `json:"approved_by"`
}

// EventType returns the event type name
func (e *TransactionApprovedEvent) EventType() string {
	return EventTypeTransactionApproved
}

// NewTransactionApprovedEvent creates a new TransactionApprovedEvent
func NewTransactionApprovedEvent(t *Transaction) *TransactionApprovedEvent {
	var approvedBy uuid.UUID
	if t.ApprovedBy != nil {
		approvedBy = *t.ApprovedBy
	}
	return &TransactionApprovedEvent{
		EventHeader:   shared.NewEventHeader(EventTypeTransactionApproved, aggregateTypeTransaction, t.ID, t.CompanyID),
		TransactionID: t.ID,
		Number:        t.Number,
		ApprovedBy:    approvedBy,
	}
}

// TransactionPostedEvent is raised when a transaction becomes part of the ledger
type TransactionPostedEvent struct {
	shared.EventHeader
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Number         string          `json:"number"`
	Type           TransactionType `json:"type"`
	AccountingDate time.Time       `json:"accounting_date"`
	Amount         decimal.Decimal `json:"amount"`
	PostedAt       time.Time       `json:"posted_at"`
	ReferenceID    *uuid.UUID      `json:"reference_id,omitempty"`
}

// EventType returns the event type name
func (e *TransactionPostedEvent) EventType() string {
	return EventTypeTransactionPosted
}

// NewTransactionPostedEvent creates a new TransactionPostedEvent
func NewTransactionPostedEvent(t *Transaction) *TransactionPostedEvent {
	postedAt := time.Now().UTC()
	if t.PostedAt != nil {
		postedAt = *t.PostedAt
	}
	return &TransactionPostedEvent{
		EventHeader:    shared.NewEventHeader(EventTypeTransactionPosted, aggregateTypeTransaction, t.ID, t.CompanyID),
		TransactionID:  t.ID,
		Number:         t.Number,
		Type:           t.Type,
		AccountingDate: t.AccountingDate,
		Amount:         TotalDebits(t.Lines),
		PostedAt:       postedAt,
		ReferenceID:    t.ReferenceID,
	}
}

// TransactionCancelledEvent is raised when a transaction is cancelled
type TransactionCancelledEvent struct {
	shared.EventHeader
	TransactionID uuid.UUID  `json:"transaction_id"`
	Number        string     `json:"number"`
	Reason        string     `json:"reason"`
	ReversedByID  *uuid.UUID `json:"reversed_by_id,omitempty"`
}

// EventType returns the event type name
func (e *TransactionCancelledEvent) EventType() string {
	return EventTypeTransactionCancelled
}

// NewTransactionCancelledEvent creates a new TransactionCancelledEvent
func NewTransactionCancelledEvent(t *Transaction) *TransactionCancelledEvent {
	return &TransactionCancelledEvent{
		EventHeader:   shared.NewEventHeader(EventTypeTransactionCancelled, aggregateTypeTransaction, t.ID, t.CompanyID),
		TransactionID: t.ID,
		Number:        t.Number,
		Reason:        t.CancelReason,
		ReversedByID:  t.ReversedByID,
	}
}

// PeriodClosedEvent is raised when a fiscal period is closed
type PeriodClosedEvent struct {
	shared.EventHeader
	FiscalYear  int `json:"fiscal_year"`
	FiscalMonth int `json:"fiscal_month"`
}

// EventType returns the event type name
func (e *PeriodClosedEvent) EventType() string {
	return EventTypePeriodClosed
}

// NewPeriodClosedEvent creates a new PeriodClosedEvent
func NewPeriodClosedEvent(p *FiscalPeriod) *PeriodClosedEvent {
	return &PeriodClosedEvent{
		EventHeader: shared.NewEventHeader(EventTypePeriodClosed, aggregateTypePeriod, p.ID, p.CompanyID),
		FiscalYear:  p.FiscalYear,
		FiscalMonth: p.FiscalMonth,
	}
}

// FiscalYearClosedEvent is raised when a fiscal year is closed
type FiscalYearClosedEvent struct {
	shared.EventHeader
	FiscalYear           int        `json:"fiscal_year"`
	ClosingTransactionID *uuid.UUID `json:"closing_transaction_id,omitempty"`
}

// EventType returns the event type name
func (e *FiscalYearClosedEvent) EventType() string {
	return EventTypeFiscalYearClosed
}

// NewFiscalYearClosedEvent creates a new FiscalYearClosedEvent
func NewFiscalYearClosedEvent(y *FiscalYear) *FiscalYearClosedEvent {
	return &FiscalYearClosedEvent{
		EventHeader:          shared.NewEventHeader(EventTypeFiscalYearClosed, aggregateTypeYear, y.ID, y.CompanyID),
		FiscalYear:           y.Year,
		ClosingTransactionID: y.ClosingTransactionID,
	}
}
