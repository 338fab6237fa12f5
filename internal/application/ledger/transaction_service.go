package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionService runs the transaction lifecycle. It is the only writer
// of transaction status.
type TransactionService struct {
	scope          TransactionScope
	accounts       ledger.AccountRepository
	transactions   ledger.TransactionRepository
	validator      *ledger.EntryValidator
	engine         *LedgerEngine
	locker         Locker
	options        Options
	logger         *zap.Logger
	metrics        *telemetry.LedgerMetrics
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	scope TransactionScope,
	accounts ledger.AccountRepository,
	transactions ledger.TransactionRepository,
	engine *LedgerEngine,
	locker Locker,
	options Options,
	logger *zap.Logger,
) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{
		scope:        scope,
		accounts:     accounts,
		transactions: transactions,
		validator:    ledger.NewEntryValidator(accounts),
		engine:       engine,
		locker:       locker,
		options:      options.withDefaults(),
		logger:       logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *TransactionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore enables idempotent creation (optional)
func (s *TransactionService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetMetrics sets the ledger metrics (optional)
func (s *TransactionService) SetMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

func toLines(inputs []LineInput) []ledger.JournalLine {
	lines := make([]ledger.JournalLine, 0, len(inputs))
	for _, in := range inputs {
		lines = append(lines, ledger.JournalLine{
			ID:        uuid.New(),
			AccountID: in.AccountID,
			Debit:     in.Debit,
			Credit:    in.Credit,
			Memo:      in.Memo,
		})
	}
	ledger.NumberLines(lines)
	return lines
}

// Create validates the lines and stores a DRAFT transaction with a freshly
// allocated number. Nothing is written when validation fails.
func (s *TransactionService) Create(ctx context.Context, req CreateTransactionRequest) (*TransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "create")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	txnType := ledger.TransactionTypeGeneral
	if req.Type != "" {
		txnType = ledger.TransactionType(req.Type)
	}
	lines := toLines(req.Lines)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrTransactionType, string(txnType),
		telemetry.SpanAttrLineCount, len(lines),
	)

	if err := s.validator.Validate(ctx, req.CompanyID, lines); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	id := uuid.New()
	if req.IdempotencyKey != "" && s.idempotency != nil {
		existing, claimed, err := s.claim(ctx, req.CompanyID, req.IdempotencyKey, id)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if !claimed {
			resp := ToTransactionResponse(existing)
			return &resp, nil
		}
	}

	var txn *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		number, err := nextNumber(ctx, repos.Sequences(), req.CompanyID, txnType, req.AccountingDate)
		if err != nil {
			return err
		}
		txn, err = ledger.NewTransactionWithID(id, req.CompanyID, number, txnType, req.AccountingDate, req.Description, lines, req.CreatedBy)
		if err != nil {
			return err
		}
		if err := repos.Transactions().Create(ctx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if req.IdempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyKey(req.CompanyID, req.IdempotencyKey)); relErr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.String("key", req.IdempotencyKey), zap.Error(relErr))
			}
		}
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrTransactionNumber, txn.Number)
	s.logger.Info("Transaction created",
		zap.String("company_id", txn.CompanyID.String()),
		zap.String("number", txn.Number),
		zap.String("amount", txn.Amount().String()),
	)
	s.publishEvents(ctx, txn)
	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// claim binds the idempotency key to id. When another request owns the key
// it returns the transaction that request created, or ErrDuplicateRequest
// while that request is still running.
func (s *TransactionService) claim(ctx context.Context, companyID uuid.UUID, key string, id uuid.UUID) (*ledger.Transaction, bool, error) {
	owner, claimed, err := s.idempotency.Claim(ctx, idempotencyKey(companyID, key), id.String(), s.options.IdempotencyTTL)
	if err != nil {
		return nil, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return nil, true, nil
	}
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency key %q holds invalid value: %w", key, err)
	}
	existing, err := s.transactions.FindByIDForCompany(ctx, companyID, ownerID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return nil, false, ledger.ErrDuplicateRequest.WithMessage("request %q is still being processed", key)
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Approve moves a DRAFT transaction to APPROVED
func (s *TransactionService) Approve(ctx context.Context, req ApproveTransactionRequest) (*TransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "approve")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
	)

	var txn *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		txn, err = repos.Transactions().FindByIDForCompany(ctx, req.CompanyID, req.TransactionID)
		if err != nil {
			return err
		}
		if err := txn.Approve(req.ApprovedBy, s.options.RequireSegregationOfDuties); err != nil {
			return err
		}
		return saveStatus(ctx, repos, txn)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Transaction approved",
		zap.String("number", txn.Number),
		zap.String("approved_by", req.ApprovedBy.String()),
	)
	s.publishEvents(ctx, txn)
	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// Post applies an APPROVED transaction to the ledger. The period lock is
// held for the whole unit of work so closing the period cannot interleave.
// A repeated post fails with ErrAlreadyPosted and applies nothing.
func (s *TransactionService) Post(ctx context.Context, req PostTransactionRequest) (*TransactionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "post")
	defer span.End()
	start := time.Now()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
	)

	current, err := s.transactions.FindByIDForCompany(ctx, req.CompanyID, req.TransactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	period := current.Period()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTransactionNumber, current.Number,
		telemetry.SpanAttrPeriod, period.String(),
		telemetry.SpanAttrAmount, current.Amount().String(),
	)

	var txn *ledger.Transaction
	err = s.locker.WithLock(ctx, PeriodLockKey(req.CompanyID, period), func(ctx context.Context) error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			// re-read under the lock; the copy read above may be stale
			var err error
			txn, err = repos.Transactions().FindByIDForCompany(ctx, req.CompanyID, req.TransactionID)
			if err != nil {
				return err
			}
			return s.engine.Apply(ctx, repos, txn, req.PostedBy, time.Now())
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordPostingFailure(ctx, failureReason(err))
		s.logger.Warn("Posting rejected",
			zap.String("number", current.Number),
			zap.String("period", period.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordPosted(ctx, string(txn.Type), time.Since(start))
	s.logger.Info("Transaction posted",
		zap.String("company_id", txn.CompanyID.String()),
		zap.String("number", txn.Number),
		zap.String("period", period.String()),
		zap.String("amount", txn.Amount().String()),
	)
	telemetry.SetOK(span)
	s.publishEvents(ctx, txn)
	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// Cancel cancels a DRAFT or APPROVED transaction directly. A POSTED one is
// reversed by a posted REVERSAL transaction and then marked CANCELLED and
// linked to it, all in one unit of work.
func (s *TransactionService) Cancel(ctx context.Context, req CancelTransactionRequest) (*CancelResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "cancel")
	defer span.End()
	start := time.Now()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrTransactionID, req.TransactionID.String(),
	)

	current, err := s.transactions.FindByIDForCompany(ctx, req.CompanyID, req.TransactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var original, reversal *ledger.Transaction
	if current.Status != ledger.TransactionStatusPosted {
		err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			original, err = repos.Transactions().FindByIDForCompany(ctx, req.CompanyID, req.TransactionID)
			if err != nil {
				return err
			}
			if original.Status == ledger.TransactionStatusPosted {
				return ledger.ErrPostingConflict.WithMessage("transaction %s was posted concurrently", original.Number)
			}
			if err := original.Cancel(req.CancelledBy, req.Reason); err != nil {
				return err
			}
			return saveStatus(ctx, repos, original)
		})
	} else {
		if err := current.CheckReversible(); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		reversalDate := current.AccountingDate
		if req.ReversalDate != nil {
			reversalDate = ledger.NormalizeDate(*req.ReversalDate)
		}
		period := ledger.PeriodOf(reversalDate)
		telemetry.SetAttributes(span, telemetry.SpanAttrPeriod, period.String())

		err = s.locker.WithLock(ctx, PeriodLockKey(req.CompanyID, period), func(ctx context.Context) error {
			return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
				var err error
				original, reversal, err = s.reverseAndCancel(ctx, repos, req.CompanyID, req.TransactionID, reversalDate, req.CancelledBy, req.Reason)
				return err
			})
		})
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &CancelResult{Transaction: ToTransactionResponse(original)}
	fields := []zap.Field{zap.String("number", original.Number), zap.String("reason", req.Reason)}
	if reversal != nil {
		fields = append(fields, zap.String("reversal", reversal.Number))
		s.metrics.RecordPosted(ctx, string(reversal.Type), time.Since(start))
		s.publishEvents(ctx, reversal)
		rr := ToTransactionResponse(reversal)
		result.Reversal = &rr
	}
	s.logger.Info("Transaction cancelled", fields...)
	s.publishEvents(ctx, original)
	return result, nil
}

// reverseAndCancel posts the reversal of a POSTED transaction and cancels it.
// It must run inside a unit of work holding the reversal period's lock.
func (s *TransactionService) reverseAndCancel(
	ctx context.Context,
	repos TransactionalRepositories,
	companyID, transactionID uuid.UUID,
	reversalDate time.Time,
	by uuid.UUID,
	reason string,
) (*ledger.Transaction, *ledger.Transaction, error) {
	original, err := repos.Transactions().FindByIDForCompany(ctx, companyID, transactionID)
	if err != nil {
		return nil, nil, err
	}
	reversal, err := s.engine.Reverse(ctx, repos, original, reversalDate, by)
	if err != nil {
		return nil, nil, err
	}
	if err := original.CancelWithReversal(reversal, by, reason); err != nil {
		return nil, nil, err
	}
	if err := saveStatus(ctx, repos, original); err != nil {
		return nil, nil, err
	}
	return original, reversal, nil
}

// CreateAdjustingEntry corrects a transaction. The original is cancelled
// (reversed first when POSTED) and a replacement ADJUSTING transaction with
// the corrected lines is created, approved and posted, referencing the
// original. Reversal and replacement are dated at the adjusting date and the
// whole correction commits or fails as one unit.
func (s *TransactionService) CreateAdjustingEntry(ctx context.Context, req AdjustingEntryRequest) (*AdjustmentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transaction", "adjust")
	defer span.End()
	start := time.Now()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	lines := toLines(req.Lines)
	date := ledger.NormalizeDate(req.AccountingDate)
	period := ledger.PeriodOf(date)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
		telemetry.SpanAttrTransactionID, req.OriginalID.String(),
		telemetry.SpanAttrPeriod, period.String(),
		telemetry.SpanAttrLineCount, len(lines),
	)

	if err := s.validator.Validate(ctx, req.CompanyID, lines); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	approver := req.CreatedBy
	if req.ApprovedBy != nil {
		approver = *req.ApprovedBy
	}

	var original, reversal, replacement *ledger.Transaction
	err := s.locker.WithLock(ctx, PeriodLockKey(req.CompanyID, period), func(ctx context.Context) error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			original, err = repos.Transactions().FindByIDForCompany(ctx, req.CompanyID, req.OriginalID)
			if err != nil {
				return err
			}
			switch {
			case original.Status == ledger.TransactionStatusPosted:
				original, reversal, err = s.reverseAndCancel(ctx, repos, req.CompanyID, req.OriginalID, date, req.CreatedBy, req.Reason)
				if err != nil {
					return err
				}
			case original.Status.CanCancel():
				if err := original.Cancel(req.CreatedBy, req.Reason); err != nil {
					return err
				}
				if err := saveStatus(ctx, repos, original); err != nil {
					return err
				}
			default:
				return ledger.ErrInvalidState.WithMessage("cannot adjust transaction %s in %s status", original.Number, original.Status)
			}

			number, err := nextNumber(ctx, repos.Sequences(), req.CompanyID, ledger.TransactionTypeAdjusting, date)
			if err != nil {
				return err
			}
			description := req.Description
			if description == "" {
				description = "Adjustment of " + original.Number
			}
			replacement, err = ledger.NewTransaction(req.CompanyID, number, ledger.TransactionTypeAdjusting, date, description, lines, req.CreatedBy)
			if err != nil {
				return err
			}
			replacement.SetReference(original.ID)
			if err := replacement.Approve(approver, s.options.RequireSegregationOfDuties); err != nil {
				return err
			}
			if err := repos.Transactions().Create(ctx, replacement); err != nil {
				return fmt.Errorf("create adjusting transaction: %w", err)
			}
			return s.engine.Apply(ctx, repos, replacement, req.CreatedBy, time.Now())
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordPostingFailure(ctx, failureReason(err))
		return nil, err
	}

	s.metrics.RecordPosted(ctx, string(replacement.Type), time.Since(start))
	result := &AdjustmentResult{
		Original:    ToTransactionResponse(original),
		Replacement: ToTransactionResponse(replacement),
	}
	if reversal != nil {
		s.metrics.RecordPosted(ctx, string(reversal.Type), time.Since(start))
		s.publishEvents(ctx, reversal)
		rr := ToTransactionResponse(reversal)
		result.Reversal = &rr
	}
	s.logger.Info("Adjusting entry posted",
		zap.String("original", original.Number),
		zap.String("replacement", replacement.Number),
		zap.String("period", period.String()),
	)
	s.publishEvents(ctx, original)
	s.publishEvents(ctx, replacement)
	return result, nil
}

// Get returns a transaction with its lines
func (s *TransactionService) Get(ctx context.Context, companyID, transactionID uuid.UUID) (*TransactionResponse, error) {
	txn, err := s.transactions.FindByIDForCompany(ctx, companyID, transactionID)
	if err != nil {
		return nil, err
	}
	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// GetByNumber returns a transaction by its number
func (s *TransactionService) GetByNumber(ctx context.Context, companyID uuid.UUID, number string) (*TransactionResponse, error) {
	txn, err := s.transactions.FindByNumber(ctx, companyID, number)
	if err != nil {
		return nil, err
	}
	resp := ToTransactionResponse(txn)
	return &resp, nil
}

// List returns a page of transactions without their lines
func (s *TransactionService) List(ctx context.Context, companyID uuid.UUID, filter TransactionListFilter) (*shared.Paginated[TransactionResponse], error) {
	if err := validateRequest(filter); err != nil {
		return nil, err
	}
	f := ledger.TransactionFilter{
		Filter: pageOf(filter.Page, filter.PageSize, ""),
		From:   filter.From,
		To:     filter.To,
	}
	f.OrderBy, f.OrderDir = "accounting_date", "desc"
	if filter.Status != "" {
		st := ledger.TransactionStatus(filter.Status)
		f.Status = &st
	}
	if filter.Type != "" {
		tt := ledger.TransactionType(filter.Type)
		f.Type = &tt
	}

	txns, total, err := s.transactions.FindAllForCompany(ctx, companyID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	items := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, ToTransactionResponse(&txns[i]))
	}
	page := shared.NewPaginated(items, total, f.Filter)
	return &page, nil
}

// saveStatus writes a status change, turning a lost compare-and-set into a
// ledger concurrency error.
func saveStatus(ctx context.Context, repos TransactionalRepositories, txn *ledger.Transaction) error {
	if err := repos.Transactions().SaveWithLock(ctx, txn); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return ledger.ErrConcurrencyConflict.WithMessage("transaction %s was modified concurrently", txn.Number).WithCause(err)
		}
		return fmt.Errorf("save transaction %s: %w", txn.Number, err)
	}
	return nil
}

// failureReason labels a posting failure for metrics
func failureReason(err error) string {
	if code := shared.CodeOf(err); code != "" {
		return code
	}
	return "INTERNAL"
}

// publishEvents publishes and clears the pending events of txn.
// Publish failures are logged; the ledger change is already committed.
func (s *TransactionService) publishEvents(ctx context.Context, txn *ledger.Transaction) {
	events := txn.GetDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish transaction events",
			zap.String("number", txn.Number),
			zap.Error(err),
		)
	}
	txn.ClearDomainEvents()
}
