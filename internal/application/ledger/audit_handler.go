package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditHandler writes one structured log record per ledger event
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	return &AuditHandler{logger: logger.Named("audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeAccountCreated,
		ledger.EventTypeTransactionCreated,
		ledger.EventTypeTransactionApproved,
		ledger.EventTypeTransactionPosted,
		ledger.EventTypeTransactionCancelled,
		ledger.EventTypePeriodClosed,
		ledger.EventTypeFiscalYearClosed,
	}
}

// Handle logs the event with the fields an auditor needs
func (h *AuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("company_id", event.CompanyID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *ledger.AccountCreatedEvent:
		fields = append(fields, zap.String("code", e.Code), zap.String("account_type", string(e.AccountType)))
	case *ledger.TransactionCreatedEvent:
		fields = append(fields,
			zap.String("number", e.Number),
			zap.String("amount", e.Amount.String()),
			zap.String("created_by", e.CreatedBy.String()),
		)
	case *ledger.TransactionApprovedEvent:
		fields = append(fields, zap.String("number", e.Number), zap.String("approved_by", e.ApprovedBy.String()))
	case *ledger.TransactionPostedEvent:
		fields = append(fields,
			zap.String("number", e.Number),
			zap.String("type", string(e.Type)),
			zap.String("amount", e.Amount.String()),
			zap.Time("accounting_date", e.AccountingDate),
		)
		if e.ReferenceID != nil {
			fields = append(fields, zap.String("reference_id", e.ReferenceID.String()))
		}
	case *ledger.TransactionCancelledEvent:
		fields = append(fields, zap.String("number", e.Number), zap.String("reason", e.Reason))
		if e.ReversedByID != nil {
			fields = append(fields, zap.String("reversed_by_id", e.ReversedByID.String()))
		}
	case *ledger.PeriodClosedEvent:
		fields = append(fields, zap.Int("fiscal_year", e.FiscalYear), zap.Int("fiscal_month", e.FiscalMonth))
	case *ledger.FiscalYearClosedEvent:
		fields = append(fields, zap.Int("fiscal_year", e.FiscalYear))
	}

	h.logger.Info("ledger event", fields...)
	return nil
}
