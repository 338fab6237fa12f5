package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// FiscalPeriodRepository implements ledger.FiscalPeriodRepository on a Store
type FiscalPeriodRepository struct {
	store  *Store
	locked bool
}

// FindPeriod finds one period, or nil when it was never recorded
func (r *FiscalPeriodRepository) FindPeriod(_ context.Context, companyID uuid.UUID, key ledger.PeriodKey) (*ledger.FiscalPeriod, error) {
	var out *ledger.FiscalPeriod
	err := r.store.view(r.locked, func(d *state) error {
		if p, ok := d.periods[periodID{companyID, key}]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

// FindPeriodsByYear lists the recorded periods of a year ordered by month
func (r *FiscalPeriodRepository) FindPeriodsByYear(_ context.Context, companyID uuid.UUID, year int) ([]ledger.FiscalPeriod, error) {
	out := make([]ledger.FiscalPeriod, 0)
	err := r.store.view(r.locked, func(d *state) error {
		for id, p := range d.periods {
			if id.companyID == companyID && id.key.Year == year {
				out = append(out, p)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b ledger.FiscalPeriod) int { return cmp.Compare(a.FiscalMonth, b.FiscalMonth) })
	return out, err
}

// CreatePeriod inserts a period
func (r *FiscalPeriodRepository) CreatePeriod(_ context.Context, period *ledger.FiscalPeriod) error {
	return r.store.view(r.locked, func(d *state) error {
		id := periodID{period.CompanyID, period.Key()}
		if _, ok := d.periods[id]; ok {
			return shared.ErrConcurrencyConflict.WithMessage("period %s already recorded", period.Key())
		}
		p := *period
		p.ClearDomainEvents()
		d.periods[id] = p
		return nil
	})
}

// SavePeriodWithLock updates a period with a version compare-and-set
func (r *FiscalPeriodRepository) SavePeriodWithLock(_ context.Context, period *ledger.FiscalPeriod) error {
	return r.store.view(r.locked, func(d *state) error {
		id := periodID{period.CompanyID, period.Key()}
		stored, ok := d.periods[id]
		if !ok || stored.ID != period.ID || stored.Version != period.Version-1 {
			return shared.ErrConcurrencyConflict.WithMessage("period %s was modified by another process", period.Key())
		}
		p := *period
		p.ClearDomainEvents()
		d.periods[id] = p
		return nil
	})
}

// FindYear finds the fiscal year record, or nil when it was never recorded
func (r *FiscalPeriodRepository) FindYear(_ context.Context, companyID uuid.UUID, year int) (*ledger.FiscalYear, error) {
	var out *ledger.FiscalYear
	err := r.store.view(r.locked, func(d *state) error {
		if y, ok := d.years[yearID{companyID, year}]; ok {
			out = &y
		}
		return nil
	})
	return out, err
}

// CreateYear inserts a fiscal year record
func (r *FiscalPeriodRepository) CreateYear(_ context.Context, year *ledger.FiscalYear) error {
	return r.store.view(r.locked, func(d *state) error {
		id := yearID{year.CompanyID, year.Year}
		if _, ok := d.years[id]; ok {
			return shared.ErrConcurrencyConflict.WithMessage("fiscal year %d already recorded", year.Year)
		}
		y := *year
		y.ClearDomainEvents()
		d.years[id] = y
		return nil
	})
}

// SaveYearWithLock updates a fiscal year with a version compare-and-set
func (r *FiscalPeriodRepository) SaveYearWithLock(_ context.Context, year *ledger.FiscalYear) error {
	return r.store.view(r.locked, func(d *state) error {
		id := yearID{year.CompanyID, year.Year}
		stored, ok := d.years[id]
		if !ok || stored.ID != year.ID || stored.Version != year.Version-1 {
			return shared.ErrConcurrencyConflict.WithMessage("fiscal year %d was modified by another process", year.Year)
		}
		y := *year
		y.ClearDomainEvents()
		d.years[id] = y
		return nil
	})
}

// SequenceGenerator implements ledger.SequenceGenerator on a Store
type SequenceGenerator struct {
	store  *Store
	locked bool
}

// Next returns the next value of the (company, key) counter, starting at 1
func (g *SequenceGenerator) Next(_ context.Context, companyID uuid.UUID, key string) (int64, error) {
	if key == "" {
		return 0, ledger.ErrInvalidInput.WithMessage("sequence key is required")
	}
	var next int64
	err := g.store.view(g.locked, func(d *state) error {
		id := sequenceID{companyID, key}
		d.sequences[id]++
		next = d.sequences[id]
		return nil
	})
	return next, err
}

var (
	_ ledger.FiscalPeriodRepository = (*FiscalPeriodRepository)(nil)
	_ ledger.SequenceGenerator      = (*SequenceGenerator)(nil)
)
