package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the closed set of transaction kinds
type TransactionType string

const (
	TransactionTypeGeneral   TransactionType = "GENERAL"
	TransactionTypeAdjusting TransactionType = "ADJUSTING"
	TransactionTypeReversal  TransactionType = "REVERSAL"
	TransactionTypeClosing   TransactionType = "CLOSING"
)

// IsValid checks if the type is a known value
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeGeneral, TransactionTypeAdjusting, TransactionTypeReversal, TransactionTypeClosing:
		return true
	}
	return false
}

// IsSystemGenerated reports whether only the ledger itself creates this type
func (t TransactionType) IsSystemGenerated() bool {
	return t == TransactionTypeReversal || t == TransactionTypeClosing
}

// String returns the string representation
func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType parses a case-insensitive transaction type
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidInput.WithMessage("unknown transaction type %q", s)
	}
	return t, nil
}

// TransactionStatus is the lifecycle state of a transaction
type TransactionStatus string

const (
	TransactionStatusDraft     TransactionStatus = "DRAFT"
	TransactionStatusApproved  TransactionStatus = "APPROVED"
	TransactionStatusPosted    TransactionStatus = "POSTED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusDraft, TransactionStatusApproved, TransactionStatusPosted, TransactionStatusCancelled:
		return true
	}
	return false
}

// CanApprove returns true if the transaction can be approved
func (s TransactionStatus) CanApprove() bool {
	return s == TransactionStatusDraft
}

// CanPost returns true if the transaction can be posted
func (s TransactionStatus) CanPost() bool {
	return s == TransactionStatusApproved
}

// CanCancel returns true if the transaction can be cancelled.
// POSTED transactions are cancelled through a reversal.
func (s TransactionStatus) CanCancel() bool {
	return s == TransactionStatusDraft || s == TransactionStatusApproved || s == TransactionStatusPosted
}

// IsTerminal returns true if no further transition is possible
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCancelled
}

// String returns the string representation
func (s TransactionStatus) String() string {
	return string(s)
}

// Transaction is a journal entry and the aggregate root of its lines.
// Lines are immutable once the transaction is posted.
type Transaction struct {
	shared.CompanyAggregateRoot
	Number         string
	AccountingDate time.Time
	Type           TransactionType
	Status         TransactionStatus
	Description    string
	Lines          []JournalLine
	CreatedBy      uuid.UUID
	ApprovedBy     *uuid.UUID
	ApprovedAt     *time.Time
	PostedBy       *uuid.UUID
	PostedAt       *time.Time
	CancelledBy    *uuid.UUID
	CancelledAt    *time.Time
	CancelReason   string
	// ReferenceID points at the transaction this one reverses or adjusts
	ReferenceID *uuid.UUID
	// ReversedByID is set when a posted transaction was cancelled through a reversal
	ReversedByID *uuid.UUID
}

// NewTransaction creates a DRAFT transaction. Lines are numbered in order and
// checked for shape and balance; account checks belong to EntryValidator.
func NewTransaction(
	companyID uuid.UUID,
	number string,
	txnType TransactionType,
	accountingDate time.Time,
	description string,
	lines []JournalLine,
	createdBy uuid.UUID,
) (*Transaction, error) {
	return NewTransactionWithID(uuid.New(), companyID, number, txnType, accountingDate, description, lines, createdBy)
}

// NewTransactionWithID is NewTransaction with a caller-chosen ID. Idempotent
// creation needs the ID before the transaction exists.
func NewTransactionWithID(
	id uuid.UUID,
	companyID uuid.UUID,
	number string,
	txnType TransactionType,
	accountingDate time.Time,
	description string,
	lines []JournalLine,
	createdBy uuid.UUID,
) (*Transaction, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidInput.WithMessage("transaction ID cannot be empty")
	}
	if companyID == uuid.Nil {
		return nil, ErrInvalidInput.WithMessage("company ID cannot be empty")
	}
	if strings.TrimSpace(number) == "" {
		return nil, ErrInvalidInput.WithMessage("transaction number cannot be empty")
	}
	if !txnType.IsValid() {
		return nil, ErrInvalidInput.WithMessage("unknown transaction type %q", txnType)
	}
	if accountingDate.IsZero() {
		return nil, ErrInvalidInput.WithMessage("accounting date is required")
	}
	if createdBy == uuid.Nil {
		return nil, ErrInvalidInput.WithMessage("creator is required")
	}
	if len(description) > 500 {
		return nil, ErrInvalidInput.WithMessage("description cannot exceed 500 characters")
	}

	t := &Transaction{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Number:               number,
		AccountingDate:       NormalizeDate(accountingDate),
		Type:                 txnType,
		Status:               TransactionStatusDraft,
		Description:          description,
		CreatedBy:            createdBy,
	}
	t.ID = id
	t.Lines = make([]JournalLine, len(lines))
	for i, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.TransactionID = t.ID
		l.LineNo = i + 1
		t.Lines[i] = l
	}
	if err := ValidateLineSet(t.Lines); err != nil {
		return nil, err
	}

	t.AddDomainEvent(NewTransactionCreatedEvent(t))
	return t, nil
}

// Period returns the fiscal period the transaction posts into
func (t *Transaction) Period() PeriodKey {
	if t.Type == TransactionTypeClosing {
		return ClosingPeriodOf(t.AccountingDate.Year())
	}
	return PeriodOf(t.AccountingDate)
}

// Amount returns the total debit (equal to the total credit)
func (t *Transaction) Amount() decimal.Decimal {
	return TotalDebits(t.Lines)
}

// AccountIDs returns the distinct accounts touched by the transaction
func (t *Transaction) AccountIDs() []uuid.UUID {
	return AccountIDs(t.Lines)
}

// IsLedgerEffective reports whether the transaction's lines are part of the
// ledger. A posted transaction stays effective after a reversal cancels it;
// the reversal nets it to zero.
func (t *Transaction) IsLedgerEffective() bool {
	return t.PostedAt != nil
}

// Approve moves a DRAFT transaction to APPROVED.
// With requireSegregation the approver must not be the creator.
func (t *Transaction) Approve(approverID uuid.UUID, requireSegregation bool) error {
	if !t.Status.CanApprove() {
		return ErrInvalidState.WithMessage("cannot approve transaction %s in %s status", t.Number, t.Status)
	}
	if approverID == uuid.Nil {
		return ErrInvalidInput.WithMessage("approver is required")
	}
	if requireSegregation && approverID == t.CreatedBy {
		return ErrSegregationOfDuties.WithMessage("transaction %s cannot be approved by its creator", t.Number)
	}
	now := time.Now().UTC()
	t.Status = TransactionStatusApproved
	t.ApprovedBy = &approverID
	t.ApprovedAt = &now
	t.IncrementVersion()

	t.AddDomainEvent(NewTransactionApprovedEvent(t))
	return nil
}

// CheckPostable verifies the transaction is APPROVED
func (t *Transaction) CheckPostable() error {
	switch {
	case t.Status == TransactionStatusPosted:
		return ErrAlreadyPosted.WithMessage("transaction %s is already posted", t.Number)
	case !t.Status.CanPost():
		return ErrInvalidState.WithMessage("cannot post transaction %s in %s status", t.Number, t.Status)
	}
	return nil
}

// MarkPosted moves an APPROVED transaction to POSTED. Callers apply the
// balance effect in the same unit of work.
func (t *Transaction) MarkPosted(postedBy uuid.UUID, at time.Time) error {
	if err := t.CheckPostable(); err != nil {
		return err
	}
	at = at.UTC()
	t.Status = TransactionStatusPosted
	t.PostedBy = &postedBy
	t.PostedAt = &at
	t.IncrementVersion()

	t.AddDomainEvent(NewTransactionPostedEvent(t))
	return nil
}

// Cancel cancels a DRAFT or APPROVED transaction. It has no ledger effect.
func (t *Transaction) Cancel(cancelledBy uuid.UUID, reason string) error {
	if t.Status == TransactionStatusPosted {
		return ErrInvalidState.WithMessage("posted transaction %s must be cancelled through a reversal", t.Number)
	}
	if !t.Status.CanCancel() {
		return ErrInvalidState.WithMessage("cannot cancel transaction %s in %s status", t.Number, t.Status)
	}
	t.markCancelled(cancelledBy, reason)
	return nil
}

// CancelWithReversal cancels a POSTED transaction and links it to the
// posted reversal that nets its effect.
func (t *Transaction) CancelWithReversal(reversal *Transaction, cancelledBy uuid.UUID, reason string) error {
	if t.Status != TransactionStatusPosted {
		return ErrInvalidState.WithMessage("only posted transactions are reversed, %s is %s", t.Number, t.Status)
	}
	if reversal == nil || reversal.Status != TransactionStatusPosted || reversal.ReferenceID == nil || *reversal.ReferenceID != t.ID {
		return ErrInvalidState.WithMessage("transaction %s needs a posted reversal referencing it", t.Number)
	}
	id := reversal.ID
	t.ReversedByID = &id
	t.markCancelled(cancelledBy, reason)
	return nil
}

func (t *Transaction) markCancelled(cancelledBy uuid.UUID, reason string) {
	now := time.Now().UTC()
	t.Status = TransactionStatusCancelled
	t.CancelledBy = &cancelledBy
	t.CancelledAt = &now
	t.CancelReason = reason
	t.IncrementVersion()

	t.AddDomainEvent(NewTransactionCancelledEvent(t))
}

// CheckReversible reports whether a reversal may net t out. A closing entry
// belongs to its closed fiscal year and is never reversed.
func (t *Transaction) CheckReversible() error {
	if t.Status != TransactionStatusPosted {
		return ErrInvalidState.WithMessage("cannot reverse transaction %s in %s status", t.Number, t.Status)
	}
	if t.Type == TransactionTypeClosing {
		return ErrInvalidState.WithMessage("closing transaction %s of a closed fiscal year cannot be reversed", t.Number)
	}
	return nil
}

// NewReversal builds the DRAFT compensating transaction for a posted one:
// same accounts, debit and credit swapped, referencing the original.
func (t *Transaction) NewReversal(number string, accountingDate time.Time, createdBy uuid.UUID) (*Transaction, error) {
	if err := t.CheckReversible(); err != nil {
		return nil, err
	}
	rev, err := NewTransaction(
		t.CompanyID,
		number,
		TransactionTypeReversal,
		accountingDate,
		"Reversal of "+t.Number,
		ReverseLines(t.Lines),
		createdBy,
	)
	if err != nil {
		return nil, err
	}
	id := t.ID
	rev.ReferenceID = &id
	return rev, nil
}

// SetReference records the transaction this one adjusts
func (t *Transaction) SetReference(originalID uuid.UUID) {
	id := originalID
	t.ReferenceID = &id
}
