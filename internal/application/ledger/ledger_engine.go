package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// accountPageSize bounds the page used when walking a whole chart of accounts
const accountPageSize = 500

// LedgerEngine is the only code path that moves cached account balances.
// Apply and Reverse run inside a caller's unit of work; the remaining
// methods derive balances from the ledger log.
type LedgerEngine struct {
	scope        TransactionScope
	accounts     ledger.AccountRepository
	transactions ledger.TransactionRepository
	logger       *zap.Logger
	metrics      *telemetry.LedgerMetrics
}

// NewLedgerEngine creates a new LedgerEngine
func NewLedgerEngine(
	scope TransactionScope,
	accounts ledger.AccountRepository,
	transactions ledger.TransactionRepository,
	logger *zap.Logger,
) *LedgerEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerEngine{
		scope:        scope,
		accounts:     accounts,
		transactions: transactions,
		logger:       logger,
	}
}

// SetMetrics sets the ledger metrics (optional)
func (e *LedgerEngine) SetMetrics(m *telemetry.LedgerMetrics) {
	e.metrics = m
}

// Apply posts txn within repos: it checks the status and the period gate,
// applies one balance delta per touched account in account ID order, marks
// txn POSTED and writes it with a version compare-and-set. Any error leaves
// the unit of work to be rolled back.
func (e *LedgerEngine) Apply(ctx context.Context, repos TransactionalRepositories, txn *ledger.Transaction, postedBy uuid.UUID, at time.Time) error {
	if err := txn.CheckPostable(); err != nil {
		return err
	}
	if err := ensurePeriodOpen(ctx, repos.Periods(), txn.CompanyID, txn.Period()); err != nil {
		return err
	}

	deltas, err := balanceDeltas(ctx, repos.Accounts(), txn)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	// a fixed order keeps concurrent posters touching the same rows from deadlocking
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	for _, id := range ids {
		if deltas[id].IsZero() {
			continue
		}
		if err := repos.Accounts().ApplyBalanceDelta(ctx, id, deltas[id]); err != nil {
			return fmt.Errorf("apply balance delta to account %s: %w", id, err)
		}
	}

	if err := txn.MarkPosted(postedBy, at); err != nil {
		return err
	}
	if err := repos.Transactions().SaveWithLock(ctx, txn); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return ledger.ErrPostingConflict.WithMessage("transaction %s was changed while posting", txn.Number).WithCause(err)
		}
		return fmt.Errorf("save posted transaction: %w", err)
	}
	return nil
}

// balanceDeltas sums the signed effect of txn's lines per account. Every
// account must exist in the transaction's company and, unless the ledger
// generated txn, still be active.
func balanceDeltas(ctx context.Context, accounts ledger.AccountRepository, txn *ledger.Transaction) (map[uuid.UUID]decimal.Decimal, error) {
	found, err := accounts.FindByIDs(ctx, txn.AccountIDs())
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	byID := make(map[uuid.UUID]*ledger.Account, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	deltas := make(map[uuid.UUID]decimal.Decimal, len(byID))
	for _, line := range txn.Lines {
		acc, ok := byID[line.AccountID]
		if !ok || !acc.BelongsTo(txn.CompanyID) {
			return nil, ledger.ErrUnknownAccount.WithMessage("line %d: account %s does not exist", line.LineNo, line.AccountID)
		}
		if !acc.IsActive && !txn.Type.IsSystemGenerated() {
			return nil, ledger.ErrInactiveAccount.WithMessage("line %d: account %s (%s) is inactive", line.LineNo, acc.Code, acc.Name)
		}
		deltas[acc.ID] = deltas[acc.ID].Add(acc.EffectOf(line))
	}
	return deltas, nil
}

// Reverse creates, approves and posts the compensating transaction of a
// POSTED original inside repos. The reversal is dated at date.
func (e *LedgerEngine) Reverse(ctx context.Context, repos TransactionalRepositories, original *ledger.Transaction, date time.Time, by uuid.UUID) (*ledger.Transaction, error) {
	if err := original.CheckReversible(); err != nil {
		return nil, err
	}
	number, err := nextNumber(ctx, repos.Sequences(), original.CompanyID, ledger.TransactionTypeReversal, date)
	if err != nil {
		return nil, err
	}
	reversal, err := original.NewReversal(number, date, by)
	if err != nil {
		return nil, err
	}
	// system generated, approved by the actor who requested the correction
	if err := reversal.Approve(by, false); err != nil {
		return nil, err
	}
	if err := repos.Transactions().Create(ctx, reversal); err != nil {
		return nil, fmt.Errorf("create reversal: %w", err)
	}
	if err := e.Apply(ctx, repos, reversal, by, time.Now()); err != nil {
		return nil, err
	}
	return reversal, nil
}

// AccountBalance recomputes an account's balance from ledger-effective lines
// dated on or before asOf, signed by the account's normal side.
func (e *LedgerEngine) AccountBalance(ctx context.Context, companyID, accountID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "account_balance")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String(), telemetry.SpanAttrAccountID, accountID.String())

	acc, err := e.accounts.FindByIDForCompany(ctx, companyID, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return decimal.Zero, err
	}
	to := ledger.NormalizeDate(asOf)
	activity, err := e.transactions.SumLedgerActivity(ctx, ledger.ActivityQuery{
		CompanyID:  companyID,
		AccountIDs: []uuid.UUID{accountID},
		To:         &to,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return decimal.Zero, fmt.Errorf("sum ledger activity: %w", err)
	}
	balance := decimal.Zero
	for _, a := range activity {
		if a.AccountID == accountID {
			balance = balance.Add(acc.NormalSide().Signed(a.Debit, a.Credit))
		}
	}
	return balance, nil
}

// recomputedBalances returns every account of the company with its balance
// recomputed from the whole ledger log.
func recomputedBalances(ctx context.Context, accounts ledger.AccountRepository, transactions ledger.TransactionRepository, companyID uuid.UUID) ([]ledger.Account, map[uuid.UUID]decimal.Decimal, error) {
	all, err := allAccounts(ctx, accounts, companyID)
	if err != nil {
		return nil, nil, err
	}
	activity, err := transactions.SumLedgerActivity(ctx, ledger.ActivityQuery{CompanyID: companyID})
	if err != nil {
		return nil, nil, fmt.Errorf("sum ledger activity: %w", err)
	}
	byAccount := make(map[uuid.UUID]ledger.AccountActivity, len(activity))
	for _, a := range activity {
		byAccount[a.AccountID] = a
	}
	balances := make(map[uuid.UUID]decimal.Decimal, len(all))
	for _, acc := range all {
		a := byAccount[acc.ID]
		balances[acc.ID] = acc.NormalSide().Signed(a.Debit, a.Credit)
	}
	return all, balances, nil
}

// RebuildBalances overwrites every cached balance of the company with the
// value recomputed from the ledger log, in one unit of work. It returns the
// accounts whose cache was wrong before the rebuild.
func (e *LedgerEngine) RebuildBalances(ctx context.Context, companyID uuid.UUID) ([]ledger.BalanceDivergence, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "rebuild_balances")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String())

	var fixed []ledger.BalanceDivergence
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		fixed = nil
		all, balances, err := recomputedBalances(ctx, repos.Accounts(), repos.Transactions(), companyID)
		if err != nil {
			return err
		}
		for _, acc := range all {
			recomputed := balances[acc.ID]
			if acc.Balance.Equal(recomputed) {
				continue
			}
			fixed = append(fixed, divergenceOf(acc, recomputed))
			if err := repos.Accounts().SetBalance(ctx, acc.ID, recomputed); err != nil {
				return fmt.Errorf("set balance of account %s: %w", acc.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	e.logger.Info("Rebuilt cached balances",
		zap.String("company_id", companyID.String()),
		zap.Int("corrected", len(fixed)),
	)
	return fixed, nil
}

// VerifyCachedBalances compares every cached balance with the ledger log.
// Divergences are logged, counted and returned with an ErrBalanceDivergence;
// nothing is corrected.
func (e *LedgerEngine) VerifyCachedBalances(ctx context.Context, companyID uuid.UUID) ([]ledger.BalanceDivergence, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "verify_cached_balances")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCompanyID, companyID.String())

	divergences, err := e.divergences(ctx, companyID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(divergences) == 0 {
		return nil, nil
	}
	err = ledger.ErrBalanceDivergence.WithMessage("%d account(s) have a cached balance that differs from the ledger", len(divergences))
	telemetry.RecordError(span, err)
	return divergences, err
}

func (e *LedgerEngine) divergences(ctx context.Context, companyID uuid.UUID) ([]ledger.BalanceDivergence, error) {
	all, balances, err := recomputedBalances(ctx, e.accounts, e.transactions, companyID)
	if err != nil {
		return nil, err
	}
	var out []ledger.BalanceDivergence
	for _, acc := range all {
		if recomputed := balances[acc.ID]; !acc.Balance.Equal(recomputed) {
			d := divergenceOf(acc, recomputed)
			out = append(out, d)
			e.logger.Error("Cached balance diverges from ledger",
				zap.String("company_id", companyID.String()),
				zap.String("account_id", acc.ID.String()),
				zap.String("account_code", acc.Code),
				zap.String("cached", d.Cached.String()),
				zap.String("recomputed", d.Recomputed.String()),
			)
			e.metrics.RecordConsistencyError(ctx, "cached_balance")
		}
	}
	return out, nil
}

func divergenceOf(acc ledger.Account, recomputed decimal.Decimal) ledger.BalanceDivergence {
	return ledger.BalanceDivergence{
		AccountID:   acc.ID,
		AccountCode: acc.Code,
		Cached:      acc.Balance,
		Recomputed:  recomputed,
		Difference:  acc.Balance.Sub(recomputed),
	}
}

// allAccounts walks every page of a company's chart of accounts
func allAccounts(ctx context.Context, repo ledger.AccountRepository, companyID uuid.UUID) ([]ledger.Account, error) {
	var out []ledger.Account
	for page := 1; ; page++ {
		filter := ledger.AccountFilter{Filter: shared.Filter{Page: page, PageSize: accountPageSize, OrderBy: "code", OrderDir: "asc"}}
		batch, total, err := repo.FindAllForCompany(ctx, companyID, filter)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		out = append(out, batch...)
		if len(batch) < accountPageSize || int64(len(out)) >= total {
			return out, nil
		}
	}
}

// nextNumber allocates the next transaction number for type and date
func nextNumber(ctx context.Context, seq ledger.SequenceGenerator, companyID uuid.UUID, txnType ledger.TransactionType, date time.Time) (string, error) {
	n, err := seq.Next(ctx, companyID, ledger.SequenceKey(txnType, date))
	if err != nil {
		return "", fmt.Errorf("allocate transaction number: %w", err)
	}
	return ledger.FormatTransactionNumber(txnType, date, n), nil
}
