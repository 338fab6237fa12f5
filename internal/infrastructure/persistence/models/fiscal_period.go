package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
)

// FiscalPeriodModel is the persistence model for a fiscal period
type FiscalPeriodModel struct {
	AggregateModel
	CompanyID   uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_fiscal_periods_company_period,priority:1"`
	FiscalYear  int                 `gorm:"not null;uniqueIndex:idx_fiscal_periods_company_period,priority:2"`
	FiscalMonth int                 `gorm:"not null;uniqueIndex:idx_fiscal_periods_company_period,priority:3"`
	Status      ledger.PeriodStatus `gorm:"type:varchar(10);not null;default:'OPEN'"`
	ClosedAt    *time.Time
	ClosedBy    *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (FiscalPeriodModel) TableName() string {
	return "fiscal_periods"
}

// ToDomain converts the persistence model to a domain FiscalPeriod
func (m *FiscalPeriodModel) ToDomain() *ledger.FiscalPeriod {
	return &ledger.FiscalPeriod{
		CompanyAggregateRoot: m.toRoot(m.CompanyID),
		FiscalYear:           m.FiscalYear,
		FiscalMonth:          m.FiscalMonth,
		Status:               m.Status,
		ClosedAt:             m.ClosedAt,
		ClosedBy:             m.ClosedBy,
	}
}

// FiscalPeriodModelFromDomain creates a persistence model from a domain FiscalPeriod
func FiscalPeriodModelFromDomain(p *ledger.FiscalPeriod) *FiscalPeriodModel {
	m := &FiscalPeriodModel{
		FiscalYear:  p.FiscalYear,
		FiscalMonth: p.FiscalMonth,
		Status:      p.Status,
		ClosedAt:    p.ClosedAt,
		ClosedBy:    p.ClosedBy,
	}
	m.CompanyID = m.fromRoot(p.CompanyAggregateRoot)
	return m
}

// FiscalYearModel is the persistence model for a fiscal year
type FiscalYearModel struct {
	AggregateModel
	CompanyID                 uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_fiscal_years_company_year,priority:1"`
	Year                      int                 `gorm:"not null;uniqueIndex:idx_fiscal_years_company_year,priority:2"`
	Status                    ledger.PeriodStatus `gorm:"type:varchar(10);not null;default:'OPEN'"`
	ClosedAt                  *time.Time
	ClosedBy                  *uuid.UUID `gorm:"type:uuid"`
	ClosingTransactionID      *uuid.UUID `gorm:"type:uuid"`
	RetainedEarningsAccountID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (FiscalYearModel) TableName() string {
	return "fiscal_years"
}

// ToDomain converts the persistence model to a domain FiscalYear
func (m *FiscalYearModel) ToDomain() *ledger.FiscalYear {
	return &ledger.FiscalYear{
		CompanyAggregateRoot:      m.toRoot(m.CompanyID),
		Year:                      m.Year,
		Status:                    m.Status,
		ClosedAt:                  m.ClosedAt,
		ClosedBy:                  m.ClosedBy,
		ClosingTransactionID:      m.ClosingTransactionID,
		RetainedEarningsAccountID: m.RetainedEarningsAccountID,
	}
}

// FiscalYearModelFromDomain creates a persistence model from a domain FiscalYear
func FiscalYearModelFromDomain(y *ledger.FiscalYear) *FiscalYearModel {
	m := &FiscalYearModel{
		Year:                      y.Year,
		Status:                    y.Status,
		ClosedAt:                  y.ClosedAt,
		ClosedBy:                  y.ClosedBy,
		ClosingTransactionID:      y.ClosingTransactionID,
		RetainedEarningsAccountID: y.RetainedEarningsAccountID,
	}
	m.CompanyID = m.fromRoot(y.CompanyAggregateRoot)
	return m
}
