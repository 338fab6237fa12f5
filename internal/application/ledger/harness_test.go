package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/lock"
	"github.com/erp/ledger/internal/infrastructure/persistence/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// recorder collects every published event
type recorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *recorder) Handle(_ context.Context, e shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) EventTypes() []string { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// harness wires the ledger services over the in-memory store
type harness struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	engine    *appledger.LedgerEngine
	accounts  *appledger.AccountService
	txns      *appledger.TransactionService
	periods   *appledger.PeriodService
	reports   *appledger.ReportService
	events    *recorder
	companyID uuid.UUID
	clerk     uuid.UUID
	approver  uuid.UUID
}

type harnessOption func(*appledger.Options)

func withSegregation() harnessOption {
	return func(o *appledger.Options) { o.RequireSegregationOfDuties = true }
}

func withPageSize(n int) harnessOption {
	return func(o *appledger.Options) { o.LedgerPageSize = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var options appledger.Options
	for _, opt := range opts {
		opt(&options)
	}
	logger := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	store := memory.NewStore()
	accounts := store.AccountRepository()
	transactions := store.TransactionRepository()
	locker := lock.NewMemoryLocker()

	engine := appledger.NewLedgerEngine(store, accounts, transactions, logger)
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		store:     store,
		engine:    engine,
		accounts:  appledger.NewAccountService(accounts, transactions, logger),
		txns:      appledger.NewTransactionService(store, accounts, transactions, engine, locker, options, logger),
		periods:   appledger.NewPeriodService(store, store.FiscalPeriodRepository(), engine, locker, logger),
		reports:   appledger.NewReportService(accounts, transactions, engine, options, logger),
		events:    &recorder{},
		companyID: uuid.New(),
		clerk:     uuid.New(),
		approver:  uuid.New(),
	}

	bus := event.NewInMemoryEventBus(logger)
	bus.Subscribe(h.events)
	h.accounts.SetEventPublisher(bus)
	h.txns.SetEventPublisher(bus)
	h.periods.SetEventPublisher(bus)

	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = idem.Close() })
	h.txns.SetIdempotencyStore(idem)
	return h
}

func (h *harness) account(code string, accountType ledger.AccountType) uuid.UUID {
	h.t.Helper()
	resp, err := h.accounts.CreateAccount(h.ctx, appledger.CreateAccountRequest{
		CompanyID: h.companyID,
		Code:      code,
		Name:      "Account " + code,
		Type:      string(accountType),
	})
	require.NoError(h.t, err)
	return resp.ID
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func debit(accountID uuid.UUID, amt string) appledger.LineInput {
	return appledger.LineInput{AccountID: accountID, Debit: amount(amt)}
}

func credit(accountID uuid.UUID, amt string) appledger.LineInput {
	return appledger.LineInput{AccountID: accountID, Credit: amount(amt)}
}

func (h *harness) create(on time.Time, lines ...appledger.LineInput) *appledger.TransactionResponse {
	h.t.Helper()
	resp, err := h.txns.Create(h.ctx, appledger.CreateTransactionRequest{
		CompanyID:      h.companyID,
		AccountingDate: on,
		Description:    "test entry",
		Lines:          lines,
		CreatedBy:      h.clerk,
	})
	require.NoError(h.t, err)
	return resp
}

func (h *harness) approve(id uuid.UUID) {
	h.t.Helper()
	_, err := h.txns.Approve(h.ctx, appledger.ApproveTransactionRequest{
		CompanyID:     h.companyID,
		TransactionID: id,
		ApprovedBy:    h.approver,
	})
	require.NoError(h.t, err)
}

func (h *harness) post(id uuid.UUID) (*appledger.TransactionResponse, error) {
	return h.txns.Post(h.ctx, appledger.PostTransactionRequest{
		CompanyID:     h.companyID,
		TransactionID: id,
		PostedBy:      h.approver,
	})
}

// book creates, approves and posts a transaction
func (h *harness) book(on time.Time, lines ...appledger.LineInput) *appledger.TransactionResponse {
	h.t.Helper()
	txn := h.create(on, lines...)
	h.approve(txn.ID)
	posted, err := h.post(txn.ID)
	require.NoError(h.t, err)
	return posted
}

func (h *harness) balance(accountID uuid.UUID) decimal.Decimal {
	h.t.Helper()
	resp, err := h.accounts.GetAccount(h.ctx, h.companyID, accountID)
	require.NoError(h.t, err)
	return resp.Balance
}

func (h *harness) closePeriod(year, month int) error {
	_, err := h.periods.ClosePeriod(h.ctx, appledger.ClosePeriodRequest{
		CompanyID: h.companyID,
		Year:      year,
		Month:     month,
		ClosedBy:  h.approver,
	})
	return err
}

func (h *harness) closeMonths(year int) {
	h.t.Helper()
	for m := 1; m <= 12; m++ {
		require.NoError(h.t, h.closePeriod(year, m))
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, amount(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}
