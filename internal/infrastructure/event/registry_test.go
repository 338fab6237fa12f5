package event

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

type mockHandler struct {
	eventTypes []string
}

func (h *mockHandler) Handle(context.Context, shared.DomainEvent) error { return nil }
func (h *mockHandler) EventTypes() []string                             { return h.eventTypes }

func TestHandlerRegistry_Register(t *testing.T) {
	registry := NewHandlerRegistry()
	posted := &mockHandler{}
	registry.Register(posted, ledger.EventTypeTransactionPosted, ledger.EventTypeTransactionCancelled)
	registry.Register(posted, ledger.EventTypeTransactionPosted)

	assert.Equal(t, []shared.EventHandler{posted}, registry.GetHandlers(ledger.EventTypeTransactionPosted))
	assert.Len(t, registry.GetHandlers(ledger.EventTypeTransactionCancelled), 1)
	assert.Empty(t, registry.GetHandlers(ledger.EventTypePeriodClosed))
	assert.Equal(t, 1, registry.Len())
}

func TestHandlerRegistry_Wildcard(t *testing.T) {
	registry := NewHandlerRegistry()
	specific := &mockHandler{}
	all := &mockHandler{}
	registry.Register(specific, ledger.EventTypePeriodClosed)
	registry.Register(all)
	registry.Register(all, ledger.EventTypePeriodClosed)

	handlers := registry.GetHandlers(ledger.EventTypePeriodClosed)
	assert.Len(t, handlers, 2)
	assert.Same(t, specific, handlers[0])

	assert.Equal(t, []shared.EventHandler{all}, registry.GetHandlers(ledger.EventTypeAccountCreated))
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	a := &mockHandler{}
	b := &mockHandler{}
	registry.Register(a, ledger.EventTypeTransactionPosted)
	registry.Register(b, ledger.EventTypeTransactionPosted)
	registry.Register(a)

	registry.Unregister(a)

	assert.Equal(t, []shared.EventHandler{b}, registry.GetHandlers(ledger.EventTypeTransactionPosted))
	assert.Empty(t, registry.GetHandlers(ledger.EventTypeAccountCreated))
	assert.Equal(t, 1, registry.Len())

	registry.Unregister(b)
	assert.Zero(t, registry.Len())
}
