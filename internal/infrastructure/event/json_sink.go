package event

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// JSONLineSink writes every event it receives as one JSON envelope per
// line. ledgerctl subscribes it to stream the events of a command.
type JSONLineSink struct {
	mu         sync.Mutex
	w          io.Writer
	serializer *EventSerializer
}

// NewJSONLineSink creates a sink writing to w
func NewJSONLineSink(w io.Writer, serializer *EventSerializer) *JSONLineSink {
	if serializer == nil {
		serializer = NewEventSerializer()
	}
	return &JSONLineSink{w: w, serializer: serializer}
}

// Handle writes event as a JSON line
func (s *JSONLineSink) Handle(_ context.Context, event shared.DomainEvent) error {
	data, err := s.serializer.Serialize(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// EventTypes subscribes the sink to all events
func (s *JSONLineSink) EventTypes() []string {
	return nil
}

var _ shared.EventHandler = (*JSONLineSink)(nil)
