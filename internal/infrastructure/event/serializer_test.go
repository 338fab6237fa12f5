package event

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postedEvent(t *testing.T) *ledger.TransactionPostedEvent {
	t.Helper()
	txn, err := ledger.NewTransaction(uuid.New(), "GENERAL-202405-000001", ledger.TransactionTypeGeneral,
		time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "rent", []ledger.JournalLine{
			ledger.NewDebitLine(uuid.New(), decimal.RequireFromString("1200.50"), ""),
			ledger.NewCreditLine(uuid.New(), decimal.RequireFromString("1200.50"), ""),
		}, uuid.New())
	require.NoError(t, err)
	require.NoError(t, txn.Approve(uuid.New(), false))
	require.NoError(t, txn.MarkPosted(uuid.New(), time.Now()))
	events := txn.GetDomainEvents()
	return events[len(events)-1].(*ledger.TransactionPostedEvent)
}

func TestEventSerializer_RoundTrip(t *testing.T) {
	s := NewEventSerializer()
	original := postedEvent(t)

	data, err := s.Serialize(original)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, ledger.EventTypeTransactionPosted, env.EventType)
	assert.Equal(t, original.CompanyID(), env.CompanyID)

	decoded, err := s.Deserialize(data)
	require.NoError(t, err)
	posted, ok := decoded.(*ledger.TransactionPostedEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), posted.EventID())
	assert.Equal(t, original.Number, posted.Number)
	assert.True(t, original.Amount.Equal(posted.Amount))
}

func TestEventSerializer_UnknownType(t *testing.T) {
	_, err := NewEventSerializer().Deserialize([]byte(`{"event_type":"Nope","payload":{}}`))
	assert.ErrorContains(t, err, "unknown event type: Nope")

	_, err = NewEventSerializer().Deserialize([]byte(`not json`))
	assert.Error(t, err)
}

func TestEventSerializer_RegisteredTypes(t *testing.T) {
	types := NewEventSerializer().RegisteredTypes()
	assert.Len(t, types, 7)
	assert.Contains(t, types, ledger.EventTypeFiscalYearClosed)
	assert.IsIncreasing(t, types)
}

func TestJSONLineSink(t *testing.T) {
	var buf bytes.Buffer
	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(NewJSONLineSink(&buf, nil))

	require.NoError(t, bus.Publish(context.Background(), postedEvent(t), newPeriodClosed(t)))

	scanner := bufio.NewScanner(&buf)
	var types []string
	for scanner.Scan() {
		var env Envelope
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &env))
		types = append(types, env.EventType)
	}
	assert.Equal(t, []string{ledger.EventTypeTransactionPosted, ledger.EventTypePeriodClosed}, types)
}
