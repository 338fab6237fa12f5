package ledger

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportService answers read-only queries over the ledger-effective log
type ReportService struct {
	accounts     ledger.AccountRepository
	transactions ledger.TransactionRepository
	engine       *LedgerEngine
	pageSize     int
	logger       *zap.Logger
	metrics      *telemetry.LedgerMetrics
}

// NewReportService creates a new ReportService
func NewReportService(
	accounts ledger.AccountRepository,
	transactions ledger.TransactionRepository,
	engine *LedgerEngine,
	options Options,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		accounts:     accounts,
		transactions: transactions,
		engine:       engine,
		pageSize:     options.withDefaults().LedgerPageSize,
		logger:       logger,
	}
}

// SetMetrics sets the ledger metrics (optional)
func (s *ReportService) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

func checkRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = ledger.NormalizeDate(from), ledger.NormalizeDate(to)
	if from.IsZero() || to.IsZero() {
		return from, to, ledger.ErrInvalidInput.WithMessage("report range needs both dates")
	}
	if to.Before(from) {
		return from, to, ledger.ErrInvalidInput.WithMessage("report range ends before it starts")
	}
	return from, to, nil
}

// GenerateTrialBalance lists every account with ledger activity dated in
// [from, to], ordered by code. Total debits equal total credits for any
// range; an unbalanced report is logged and counted as a consistency error.
func (s *ReportService) GenerateTrialBalance(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*ledger.TrialBalance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "trial_balance")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String())

	from, to, err := checkRange(from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	activity, err := s.transactions.SumLedgerActivity(ctx, ledger.ActivityQuery{CompanyID: companyID, From: &from, To: &to})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("sum ledger activity: %w", err)
	}
	byID, err := s.accountsOf(ctx, activity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	tb := &ledger.TrialBalance{
		CompanyID:   companyID,
		From:        from,
		To:          to,
		Rows:        make([]ledger.TrialBalanceRow, 0, len(activity)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, a := range activity {
		acc, ok := byID[a.AccountID]
		if !ok {
			return nil, ledger.ErrUnknownAccount.WithMessage("ledger references missing account %s", a.AccountID)
		}
		tb.Rows = append(tb.Rows, ledger.TrialBalanceRow{
			AccountID:   acc.ID,
			AccountCode: acc.Code,
			AccountName: acc.Name,
			AccountType: acc.Type,
			NormalSide:  acc.NormalSide(),
			Debit:       a.Debit,
			Credit:      a.Credit,
			Net:         acc.NormalSide().Signed(a.Debit, a.Credit),
		})
	}
	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].AccountCode < tb.Rows[j].AccountCode })
	tb.SetTotals()

	if !tb.IsBalanced() {
		s.logger.Error("Trial balance does not balance",
			zap.String("company_id", companyID.String()),
			zap.String("total_debit", tb.TotalDebit.String()),
			zap.String("total_credit", tb.TotalCredit.String()),
		)
		s.metrics.RecordConsistencyError(ctx, "trial_balance")
	}
	return tb, nil
}

func (s *ReportService) accountsOf(ctx context.Context, activity []ledger.AccountActivity) (map[uuid.UUID]ledger.Account, error) {
	ids := make([]uuid.UUID, 0, len(activity))
	for _, a := range activity {
		ids = append(ids, a.AccountID)
	}
	accounts, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	byID := make(map[uuid.UUID]ledger.Account, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = acc
	}
	return byID, nil
}

// OpeningBalance is the account's balance from all ledger lines dated
// before from.
func (s *ReportService) OpeningBalance(ctx context.Context, companyID, accountID uuid.UUID, from time.Time) (decimal.Decimal, error) {
	return s.engine.AccountBalance(ctx, companyID, accountID, ledger.NormalizeDate(from).AddDate(0, 0, -1))
}

// GeneralLedger returns the ledger lines of one account dated in [from, to]
// in date order, each with the running balance after it. The sequence is
// lazy: lines are fetched page by page while the caller ranges over it, and
// every range starts again from the opening balance. Iteration stops at the
// first error, which is yielded with a zero entry.
func (s *ReportService) GeneralLedger(ctx context.Context, companyID, accountID uuid.UUID, from, to time.Time) iter.Seq2[ledger.GeneralLedgerEntry, error] {
	return func(yield func(ledger.GeneralLedgerEntry, error) bool) {
		from, to, err := checkRange(from, to)
		if err != nil {
			yield(ledger.GeneralLedgerEntry{}, err)
			return
		}
		acc, err := s.accounts.FindByIDForCompany(ctx, companyID, accountID)
		if err != nil {
			yield(ledger.GeneralLedgerEntry{}, err)
			return
		}
		running, err := s.OpeningBalance(ctx, companyID, accountID, from)
		if err != nil {
			yield(ledger.GeneralLedgerEntry{}, err)
			return
		}

		side := acc.NormalSide()
		for offset := 0; ; offset += s.pageSize {
			page, err := s.transactions.FindLedgerLines(ctx, ledger.LedgerLineQuery{
				CompanyID: companyID,
				AccountID: accountID,
				From:      &from,
				To:        &to,
				Limit:     s.pageSize,
				Offset:    offset,
			})
			if err != nil {
				yield(ledger.GeneralLedgerEntry{}, fmt.Errorf("load ledger lines: %w", err))
				return
			}
			for _, line := range page {
				running = running.Add(side.Signed(line.Debit, line.Credit))
				if !yield(ledger.GeneralLedgerEntry{LedgerLine: line, RunningBalance: running}, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
		}
	}
}

// VerifyBalance recomputes total debits and credits of every ledger line
// dated on or before asOf and compares the cached balances with the log.
// It reports problems in the result and never blocks other operations.
func (s *ReportService) VerifyBalance(ctx context.Context, companyID uuid.UUID, asOf time.Time) (*ledger.BalanceVerification, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "verify_balance")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String())

	asOf = ledger.NormalizeDate(asOf)
	activity, err := s.transactions.SumLedgerActivity(ctx, ledger.ActivityQuery{CompanyID: companyID, To: &asOf})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("sum ledger activity: %w", err)
	}

	v := &ledger.BalanceVerification{
		CompanyID:    companyID,
		AsOf:         asOf,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for _, a := range activity {
		v.TotalDebits = v.TotalDebits.Add(a.Debit)
		v.TotalCredits = v.TotalCredits.Add(a.Credit)
	}
	v.Difference = v.TotalDebits.Sub(v.TotalCredits)
	v.Balanced = v.Difference.IsZero()

	v.Divergences, err = s.engine.divergences(ctx, companyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	v.CheckedAt = time.Now().UTC()

	if !v.Balanced {
		s.logger.Error("Ledger does not balance",
			zap.String("company_id", companyID.String()),
			zap.Time("as_of", asOf),
			zap.String("difference", v.Difference.String()),
		)
		s.metrics.RecordConsistencyError(ctx, "ledger_balance")
	}
	telemetry.SetAttributes(span, "ledger.healthy", v.Healthy())
	return v, nil
}

// IncomeStatement sums revenue and expense activity dated in [from, to]
func (s *ReportService) IncomeStatement(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*ledger.IncomeStatement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "income_statement")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String())

	from, to, err := checkRange(from, to)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	// closing entries would zero every revenue and expense line of a closed year
	activity, err := s.transactions.SumLedgerActivity(ctx, ledger.ActivityQuery{CompanyID: companyID, From: &from, To: &to, ExcludeClosing: true})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("sum ledger activity: %w", err)
	}
	byID, err := s.accountsOf(ctx, activity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stmt := &ledger.IncomeStatement{
		CompanyID:    companyID,
		From:         from,
		To:           to,
		Revenue:      []ledger.IncomeStatementLine{},
		Expenses:     []ledger.IncomeStatementLine{},
		TotalRevenue: decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, a := range activity {
		acc, ok := byID[a.AccountID]
		if !ok || !acc.Type.IsTemporary() {
			continue
		}
		line := ledger.IncomeStatementLine{
			AccountID:   acc.ID,
			AccountCode: acc.Code,
			AccountName: acc.Name,
			AccountType: acc.Type,
			Amount:      acc.NormalSide().Signed(a.Debit, a.Credit),
		}
		if acc.Type == ledger.AccountTypeRevenue {
			stmt.Revenue = append(stmt.Revenue, line)
			stmt.TotalRevenue = stmt.TotalRevenue.Add(line.Amount)
		} else {
			stmt.Expenses = append(stmt.Expenses, line)
			stmt.TotalExpense = stmt.TotalExpense.Add(line.Amount)
		}
	}
	byCode := func(l []ledger.IncomeStatementLine) {
		sort.Slice(l, func(i, j int) bool { return l[i].AccountCode < l[j].AccountCode })
	}
	byCode(stmt.Revenue)
	byCode(stmt.Expenses)
	stmt.NetIncome = stmt.TotalRevenue.Sub(stmt.TotalExpense)
	return stmt, nil
}
