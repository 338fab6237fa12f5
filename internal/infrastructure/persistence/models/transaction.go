package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
)

// TransactionModel is the persistence model for the Transaction aggregate root
type TransactionModel struct {
	AggregateModel
	CompanyID      uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_transactions_company_number,priority:1"`
	Number         string                   `gorm:"type:varchar(50);not null;uniqueIndex:idx_transactions_company_number,priority:2"`
	AccountingDate time.Time                `gorm:"type:date;not null;index"`
	Type           ledger.TransactionType   `gorm:"type:varchar(20);not null"`
	Status         ledger.TransactionStatus `gorm:"type:varchar(20);not null;index"`
	Description    string                   `gorm:"type:varchar(500)"`
	CreatedBy      uuid.UUID                `gorm:"type:uuid;not null"`
	ApprovedBy     *uuid.UUID               `gorm:"type:uuid"`
	ApprovedAt     *time.Time
	PostedBy       *uuid.UUID `gorm:"type:uuid"`
	PostedAt       *time.Time `gorm:"index"`
	CancelledBy    *uuid.UUID `gorm:"type:uuid"`
	CancelledAt    *time.Time
	CancelReason   string             `gorm:"type:varchar(500)"`
	ReferenceID    *uuid.UUID         `gorm:"type:uuid;index"`
	ReversedByID   *uuid.UUID         `gorm:"type:uuid"`
	Lines          []JournalLineModel `gorm:"foreignKey:TransactionID;references:ID"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}

// ToDomain converts the persistence model to a domain Transaction.
// Lines are included only when they were preloaded.
func (m *TransactionModel) ToDomain() *ledger.Transaction {
	t := &ledger.Transaction{
		CompanyAggregateRoot: m.toRoot(m.CompanyID),
		Number:               m.Number,
		AccountingDate:       ledger.NormalizeDate(m.AccountingDate),
		Type:                 m.Type,
		Status:               m.Status,
		Description:          m.Description,
		CreatedBy:            m.CreatedBy,
		ApprovedBy:           m.ApprovedBy,
		ApprovedAt:           m.ApprovedAt,
		PostedBy:             m.PostedBy,
		PostedAt:             m.PostedAt,
		CancelledBy:          m.CancelledBy,
		CancelledAt:          m.CancelledAt,
		CancelReason:         m.CancelReason,
		ReferenceID:          m.ReferenceID,
		ReversedByID:         m.ReversedByID,
	}
	if len(m.Lines) > 0 {
		t.Lines = make([]ledger.JournalLine, len(m.Lines))
		for i := range m.Lines {
			t.Lines[i] = m.Lines[i].ToDomain()
		}
	}
	return t
}

// FromDomain populates the persistence model, lines included, from a domain Transaction
func (m *TransactionModel) FromDomain(t *ledger.Transaction) {
	m.CompanyID = m.fromRoot(t.CompanyAggregateRoot)
	m.Number = t.Number
	m.AccountingDate = ledger.NormalizeDate(t.AccountingDate)
	m.Type = t.Type
	m.Status = t.Status
	m.Description = t.Description
	m.CreatedBy = t.CreatedBy
	m.ApprovedBy = t.ApprovedBy
	m.ApprovedAt = t.ApprovedAt
	m.PostedBy = t.PostedBy
	m.PostedAt = t.PostedAt
	m.CancelledBy = t.CancelledBy
	m.CancelledAt = t.CancelledAt
	m.CancelReason = t.CancelReason
	m.ReferenceID = t.ReferenceID
	m.ReversedByID = t.ReversedByID
	m.Lines = make([]JournalLineModel, len(t.Lines))
	for i, l := range t.Lines {
		m.Lines[i] = JournalLineModelFromDomain(t.CompanyID, l)
	}
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction
func TransactionModelFromDomain(t *ledger.Transaction) *TransactionModel {
	m := &TransactionModel{}
	m.FromDomain(t)
	return m
}

// JournalLineModel is the persistence model for a journal line. Lines are
// written once with their transaction and never updated.
type JournalLineModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CompanyID     uuid.UUID       `gorm:"type:uuid;not null"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_journal_lines_txn_line,priority:1"`
	LineNo        int             `gorm:"not null;uniqueIndex:idx_journal_lines_txn_line,priority:2"`
	AccountID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Debit         Amount          `gorm:"not null;default:0"`
	Credit        Amount          `gorm:"not null;default:0"`
	Memo          string          `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_lines"
}

// ToDomain converts the persistence model to a domain JournalLine
func (m *JournalLineModel) ToDomain() ledger.JournalLine {
	return ledger.JournalLine{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		LineNo:        m.LineNo,
		AccountID:     m.AccountID,
		Debit:         m.Debit.Decimal,
		Credit:        m.Credit.Decimal,
		Memo:          m.Memo,
	}
}

// JournalLineModelFromDomain creates a persistence model for a line of companyID
func JournalLineModelFromDomain(companyID uuid.UUID, l ledger.JournalLine) JournalLineModel {
	return JournalLineModel{
		ID:            l.ID,
		CompanyID:     companyID,
		TransactionID: l.TransactionID,
		LineNo:        l.LineNo,
		AccountID:     l.AccountID,
		Debit:         NewAmount(l.Debit),
		Credit:        NewAmount(l.Credit),
		Memo:          l.Memo,
	}
}
