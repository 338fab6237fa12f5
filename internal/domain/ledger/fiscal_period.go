package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// PeriodStatus is the open/closed state of a fiscal period or year
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

// IsValid checks if the status is a known value
func (s PeriodStatus) IsValid() bool {
	return s == PeriodStatusOpen || s == PeriodStatusClosed
}

// String returns the string representation
func (s PeriodStatus) String() string {
	return string(s)
}

const (
	// MonthsPerYear is the number of regular fiscal periods in a year
	MonthsPerYear = 12
	// ClosingMonth is the year-end closing period. It only accepts CLOSING
	// transactions and is dated on the last day of the fiscal year.
	ClosingMonth = 13

	minFiscalYear = 1900
	maxFiscalYear = 9999
)

// PeriodKey identifies a fiscal period within a company
type PeriodKey struct {
	Year  int
	Month int
}

// PeriodOf returns the regular period an accounting date falls into.
// Fiscal years follow the calendar year.
func PeriodOf(date time.Time) PeriodKey {
	return PeriodKey{Year: date.Year(), Month: int(date.Month())}
}

// ClosingPeriodOf returns the closing period of a fiscal year
func ClosingPeriodOf(year int) PeriodKey {
	return PeriodKey{Year: year, Month: ClosingMonth}
}

// String formats the key as YYYY-MM
func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// Validate checks the key is a representable period
func (k PeriodKey) Validate() error {
	if k.Year < minFiscalYear || k.Year > maxFiscalYear {
		return ErrInvalidPeriod.WithMessage("fiscal year %d out of range", k.Year)
	}
	if k.Month < 1 || k.Month > ClosingMonth {
		return ErrInvalidPeriod.WithMessage("fiscal month %d out of range", k.Month)
	}
	return nil
}

// IsClosingPeriod reports whether the key is the year-end closing period
func (k PeriodKey) IsClosingPeriod() bool {
	return k.Month == ClosingMonth
}

// StartDate returns the first accounting date of the period
func (k PeriodKey) StartDate() time.Time {
	if k.IsClosingPeriod() {
		return YearEnd(k.Year)
	}
	return time.Date(k.Year, time.Month(k.Month), 1, 0, 0, 0, 0, time.UTC)
}

// EndDate returns the last accounting date of the period
func (k PeriodKey) EndDate() time.Time {
	if k.IsClosingPeriod() {
		return YearEnd(k.Year)
	}
	return k.StartDate().AddDate(0, 1, -1)
}

// YearStart returns January 1st of year
func YearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// YearEnd returns December 31st of year
func YearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// NormalizeDate truncates t to a UTC calendar date
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FiscalPeriod is one accounting month of a company.
// A period that has never been recorded is treated as open.
type FiscalPeriod struct {
	shared.CompanyAggregateRoot
	FiscalYear  int
	FiscalMonth int
	Status      PeriodStatus
	ClosedAt    *time.Time
	ClosedBy    *uuid.UUID
}

// NewFiscalPeriod creates an open fiscal period
func NewFiscalPeriod(companyID uuid.UUID, key PeriodKey) (*FiscalPeriod, error) {
	if companyID == uuid.Nil {
		return nil, ErrInvalidPeriod.WithMessage("company ID cannot be empty")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &FiscalPeriod{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		FiscalYear:           key.Year,
		FiscalMonth:          key.Month,
		Status:               PeriodStatusOpen,
	}, nil
}

// Key returns the period key
func (p *FiscalPeriod) Key() PeriodKey {
	return PeriodKey{Year: p.FiscalYear, Month: p.FiscalMonth}
}

// IsOpen reports whether postings may be dated in this period
func (p *FiscalPeriod) IsOpen() bool {
	return p.Status == PeriodStatusOpen
}

// Close closes the period. Closing is irreversible.
func (p *FiscalPeriod) Close(closedBy uuid.UUID) error {
	if !p.IsOpen() {
		return ErrPeriodClosed.WithMessage("fiscal period %s is already closed", p.Key())
	}
	now := time.Now().UTC()
	p.Status = PeriodStatusClosed
	p.ClosedAt = &now
	p.ClosedBy = &closedBy
	p.IncrementVersion()

	p.AddDomainEvent(NewPeriodClosedEvent(p))
	return nil
}

// FiscalYear records the closing of a whole year
type FiscalYear struct {
	shared.CompanyAggregateRoot
	Year                      int
	Status                    PeriodStatus
	ClosedAt                  *time.Time
	ClosedBy                  *uuid.UUID
	ClosingTransactionID      *uuid.UUID
	RetainedEarningsAccountID *uuid.UUID
}

// NewFiscalYear creates an open fiscal year record
func NewFiscalYear(companyID uuid.UUID, year int) (*FiscalYear, error) {
	if companyID == uuid.Nil {
		return nil, ErrInvalidPeriod.WithMessage("company ID cannot be empty")
	}
	if err := (PeriodKey{Year: year, Month: 1}).Validate(); err != nil {
		return nil, err
	}
	return &FiscalYear{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		Year:                 year,
		Status:               PeriodStatusOpen,
	}, nil
}

// IsOpen reports whether the year still accepts its closing entry
func (y *FiscalYear) IsOpen() bool {
	return y.Status == PeriodStatusOpen
}

// Close marks the year closed. closingTxnID is nil when the year had no
// revenue or expense balances to move.
func (y *FiscalYear) Close(closedBy, retainedEarningsID uuid.UUID, closingTxnID *uuid.UUID) error {
	if !y.IsOpen() {
		return ErrFiscalYearClosed.WithMessage("fiscal year %d is already closed", y.Year)
	}
	now := time.Now().UTC()
	y.Status = PeriodStatusClosed
	y.ClosedAt = &now
	y.ClosedBy = &closedBy
	y.RetainedEarningsAccountID = &retainedEarningsID
	y.ClosingTransactionID = closingTxnID
	y.IncrementVersion()

	y.AddDomainEvent(NewFiscalYearClosedEvent(y))
	return nil
}

// OpenMonths returns the regular months of year that are not closed in
// periods. Months missing from periods count as open.
func OpenMonths(periods []FiscalPeriod) []int {
	closed := make(map[int]bool, len(periods))
	for _, p := range periods {
		if p.FiscalMonth >= 1 && p.FiscalMonth <= MonthsPerYear && !p.IsOpen() {
			closed[p.FiscalMonth] = true
		}
	}
	open := make([]int, 0)
	for m := 1; m <= MonthsPerYear; m++ {
		if !closed[m] {
			open = append(open, m)
		}
	}
	return open
}
