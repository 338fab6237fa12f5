package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ensurePeriodOpen is the posting gate. An unrecorded period is materialised
// as OPEN. The closing period of a year is open until the year is closed.
func ensurePeriodOpen(ctx context.Context, periods ledger.FiscalPeriodRepository, companyID uuid.UUID, key ledger.PeriodKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	year, err := periods.FindYear(ctx, companyID, key.Year)
	if err != nil {
		return fmt.Errorf("load fiscal year: %w", err)
	}
	if year != nil && !year.IsOpen() {
		return ledger.ErrPeriodClosed.WithMessage("fiscal year %d is closed", key.Year)
	}

	period, err := periods.FindPeriod(ctx, companyID, key)
	if err != nil {
		return fmt.Errorf("load fiscal period: %w", err)
	}
	if period == nil {
		period, err = ledger.NewFiscalPeriod(companyID, key)
		if err != nil {
			return err
		}
		if err := periods.CreatePeriod(ctx, period); err != nil {
			return fmt.Errorf("create fiscal period %s: %w", key, err)
		}
		return nil
	}
	if !period.IsOpen() {
		return ledger.ErrPeriodClosed.WithMessage("fiscal period %s is closed", key)
	}
	return nil
}

// PeriodService manages fiscal period and year state and gates postings by date
type PeriodService struct {
	scope          TransactionScope
	periods        ledger.FiscalPeriodRepository
	engine         *LedgerEngine
	locker         Locker
	logger         *zap.Logger
	metrics        *telemetry.LedgerMetrics
	eventPublisher shared.EventPublisher
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(
	scope TransactionScope,
	periods ledger.FiscalPeriodRepository,
	engine *LedgerEngine,
	locker Locker,
	logger *zap.Logger,
) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{
		scope:   scope,
		periods: periods,
		engine:  engine,
		locker:  locker,
		logger:  logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PeriodService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the ledger metrics (optional)
func (s *PeriodService) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// EnsureOpen fails with ErrPeriodClosed unless postings dated in key are allowed
func (s *PeriodService) EnsureOpen(ctx context.Context, companyID uuid.UUID, key ledger.PeriodKey) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return ensurePeriodOpen(ctx, repos.Periods(), companyID, key)
	})
}

// GetPeriod returns the state of one period; unrecorded periods are OPEN
func (s *PeriodService) GetPeriod(ctx context.Context, companyID uuid.UUID, year, month int) (*FiscalPeriodResponse, error) {
	key := ledger.PeriodKey{Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	p, err := s.periods.FindPeriod(ctx, companyID, key)
	if err != nil {
		return nil, fmt.Errorf("load fiscal period: %w", err)
	}
	resp := toPeriodResponse(companyID, key, p)
	if key.IsClosingPeriod() {
		if err := s.applyYearStatus(ctx, companyID, &resp); err != nil {
			return nil, err
		}
	}
	return &resp, nil
}

// ListPeriods returns months 1 to 12 and the closing period of year
func (s *PeriodService) ListPeriods(ctx context.Context, companyID uuid.UUID, year int) ([]FiscalPeriodResponse, error) {
	if err := (ledger.PeriodKey{Year: year, Month: 1}).Validate(); err != nil {
		return nil, err
	}
	recorded, err := s.periods.FindPeriodsByYear(ctx, companyID, year)
	if err != nil {
		return nil, fmt.Errorf("list fiscal periods: %w", err)
	}
	byMonth := make(map[int]*ledger.FiscalPeriod, len(recorded))
	for i := range recorded {
		byMonth[recorded[i].FiscalMonth] = &recorded[i]
	}
	out := make([]FiscalPeriodResponse, 0, ledger.ClosingMonth)
	for m := 1; m <= ledger.ClosingMonth; m++ {
		out = append(out, toPeriodResponse(companyID, ledger.PeriodKey{Year: year, Month: m}, byMonth[m]))
	}
	if err := s.applyYearStatus(ctx, companyID, &out[len(out)-1]); err != nil {
		return nil, err
	}
	return out, nil
}

// applyYearStatus reports the closing period as closed once its year is
func (s *PeriodService) applyYearStatus(ctx context.Context, companyID uuid.UUID, resp *FiscalPeriodResponse) error {
	y, err := s.periods.FindYear(ctx, companyID, resp.Year)
	if err != nil {
		return fmt.Errorf("load fiscal year: %w", err)
	}
	if y != nil && !y.IsOpen() {
		resp.Status = string(ledger.PeriodStatusClosed)
		resp.ClosedAt = y.ClosedAt
		resp.ClosedBy = y.ClosedBy
	}
	return nil
}

// OpenPeriod records a period as OPEN. It is idempotent for an open period;
// a closed period cannot be reopened.
func (s *PeriodService) OpenPeriod(ctx context.Context, companyID uuid.UUID, year, month int) (*FiscalPeriodResponse, error) {
	key := ledger.PeriodKey{Year: year, Month: month}
	if key.IsClosingPeriod() {
		return nil, ledger.ErrInvalidPeriod.WithMessage("the closing period of %d is managed by year-end closing", year)
	}
	if err := s.EnsureOpen(ctx, companyID, key); err != nil {
		return nil, err
	}
	return s.GetPeriod(ctx, companyID, year, month)
}

// ClosePeriod closes one month. It holds the period lock, so no posting
// dated in the month can interleave with the status flip.
func (s *PeriodService) ClosePeriod(ctx context.Context, req ClosePeriodRequest) (*FiscalPeriodResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "period", "close")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	key := ledger.PeriodKey{Year: req.Year, Month: req.Month}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrPeriod, key.String(),
	)

	var period *ledger.FiscalPeriod
	err := s.locker.WithLock(ctx, PeriodLockKey(req.CompanyID, key), func(ctx context.Context) error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			p, err := repos.Periods().FindPeriod(ctx, req.CompanyID, key)
			if err != nil {
				return fmt.Errorf("load fiscal period: %w", err)
			}
			isNew := p == nil
			if isNew {
				if p, err = ledger.NewFiscalPeriod(req.CompanyID, key); err != nil {
					return err
				}
			}
			if err := p.Close(req.ClosedBy); err != nil {
				return err
			}
			if isNew {
				err = repos.Periods().CreatePeriod(ctx, p)
			} else {
				err = repos.Periods().SavePeriodWithLock(ctx, p)
			}
			if err != nil {
				return fmt.Errorf("save fiscal period %s: %w", key, err)
			}
			period = p
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordPeriodClosed(ctx)
	s.logger.Info("Fiscal period closed",
		zap.String("company_id", req.CompanyID.String()),
		zap.String("period", key.String()),
		zap.String("closed_by", req.ClosedBy.String()),
	)
	s.publish(ctx, period.GetDomainEvents())
	period.ClearDomainEvents()

	resp := toPeriodResponse(req.CompanyID, key, period)
	return &resp, nil
}

// CloseFiscalYear closes a year whose twelve months are all CLOSED. Every
// non-zero REVENUE and EXPENSE balance as of December 31 is moved into the
// retained earnings account by a CLOSING transaction posted into the closing
// period, then the year is marked closed. A year without such balances
// closes without a transaction.
func (s *PeriodService) CloseFiscalYear(ctx context.Context, req CloseFiscalYearRequest) (*FiscalYearResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "period", "close_fiscal_year")
	defer span.End()
	start := time.Now()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	closingKey := ledger.ClosingPeriodOf(req.Year)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrPeriod, closingKey.String(),
	)

	var (
		fy        *ledger.FiscalYear
		closing   *ledger.Transaction
		netIncome decimal.Decimal
	)
	err := s.locker.WithLock(ctx, YearLockKey(req.CompanyID, req.Year), func(ctx context.Context) error {
		return s.locker.WithLock(ctx, PeriodLockKey(req.CompanyID, closingKey), func(ctx context.Context) error {
			return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
				var err error
				fy, closing, netIncome, err = s.closeYear(ctx, repos, req)
				return err
			})
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordYearClosed(ctx)
	fields := []zap.Field{
		zap.String("company_id", req.CompanyID.String()),
		zap.Int("year", req.Year),
		zap.String("net_income", netIncome.String()),
	}
	resp := &FiscalYearResponse{
		CompanyID:                 fy.CompanyID,
		Year:                      fy.Year,
		Status:                    string(fy.Status),
		ClosedAt:                  fy.ClosedAt,
		ClosedBy:                  fy.ClosedBy,
		RetainedEarningsAccountID: fy.RetainedEarningsAccountID,
		NetIncome:                 netIncome,
	}
	if closing != nil {
		fields = append(fields, zap.String("closing_transaction", closing.Number))
		s.metrics.RecordPosted(ctx, string(closing.Type), time.Since(start))
		s.publish(ctx, closing.GetDomainEvents())
		closing.ClearDomainEvents()
		tr := ToTransactionResponse(closing)
		resp.ClosingTransaction = &tr
	}
	s.logger.Info("Fiscal year closed", fields...)
	s.publish(ctx, fy.GetDomainEvents())
	fy.ClearDomainEvents()
	return resp, nil
}

func (s *PeriodService) closeYear(ctx context.Context, repos TransactionalRepositories, req CloseFiscalYearRequest) (*ledger.FiscalYear, *ledger.Transaction, decimal.Decimal, error) {
	fy, err := repos.Periods().FindYear(ctx, req.CompanyID, req.Year)
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("load fiscal year: %w", err)
	}
	isNew := fy == nil
	if isNew {
		if fy, err = ledger.NewFiscalYear(req.CompanyID, req.Year); err != nil {
			return nil, nil, decimal.Zero, err
		}
	}
	if !fy.IsOpen() {
		return nil, nil, decimal.Zero, ledger.ErrFiscalYearClosed.WithMessage("fiscal year %d is already closed", req.Year)
	}

	periods, err := repos.Periods().FindPeriodsByYear(ctx, req.CompanyID, req.Year)
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("list fiscal periods: %w", err)
	}
	if open := ledger.OpenMonths(periods); len(open) > 0 {
		return nil, nil, decimal.Zero, ledger.ErrPeriodsStillOpen.WithMessage("fiscal year %d has open months %v", req.Year, open)
	}

	retained, err := repos.Accounts().FindByIDForCompany(ctx, req.CompanyID, req.RetainedEarningsAccountID)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	balances, err := temporaryBalances(ctx, repos, req.CompanyID, req.Year)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	lines, netIncome, err := ledger.BuildClosingLines(balances, retained)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}

	var closing *ledger.Transaction
	if len(lines) > 0 {
		yearEnd := ledger.YearEnd(req.Year)
		number, err := nextNumber(ctx, repos.Sequences(), req.CompanyID, ledger.TransactionTypeClosing, yearEnd)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		closing, err = ledger.NewTransaction(req.CompanyID, number, ledger.TransactionTypeClosing, yearEnd,
			fmt.Sprintf("Year-end closing %d", req.Year), lines, req.ClosedBy)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		if err := closing.Approve(req.ClosedBy, false); err != nil {
			return nil, nil, decimal.Zero, err
		}
		if err := repos.Transactions().Create(ctx, closing); err != nil {
			return nil, nil, decimal.Zero, fmt.Errorf("create closing transaction: %w", err)
		}
		if err := s.engine.Apply(ctx, repos, closing, req.ClosedBy, time.Now()); err != nil {
			return nil, nil, decimal.Zero, err
		}
	}

	var closingID *uuid.UUID
	if closing != nil {
		id := closing.ID
		closingID = &id
	}
	if err := fy.Close(req.ClosedBy, retained.ID, closingID); err != nil {
		return nil, nil, decimal.Zero, err
	}
	if isNew {
		err = repos.Periods().CreateYear(ctx, fy)
	} else {
		err = repos.Periods().SaveYearWithLock(ctx, fy)
	}
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("save fiscal year %d: %w", req.Year, err)
	}
	return fy, closing, netIncome, nil
}

// temporaryBalances returns the REVENUE and EXPENSE activity dated within
// year. Earlier years are left out so that they close into their own
// retained earnings whatever order the years are closed in.
func temporaryBalances(ctx context.Context, repos TransactionalRepositories, companyID uuid.UUID, year int) ([]ledger.ClosingBalance, error) {
	from, to := ledger.YearStart(year), ledger.YearEnd(year)
	activity, err := repos.Transactions().SumLedgerActivity(ctx, ledger.ActivityQuery{CompanyID: companyID, From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("sum ledger activity: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(activity))
	for _, a := range activity {
		ids = append(ids, a.AccountID)
	}
	accounts, err := repos.Accounts().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	byID := make(map[uuid.UUID]ledger.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}

	var out []ledger.ClosingBalance
	for _, a := range activity {
		acc, ok := byID[a.AccountID]
		if !ok || !acc.Type.IsTemporary() {
			continue
		}
		out = append(out, ledger.ClosingBalance{
			Account: acc,
			Balance: acc.NormalSide().Signed(a.Debit, a.Credit),
		})
	}
	return out, nil
}

func (s *PeriodService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish period events", zap.Error(err))
	}
}
