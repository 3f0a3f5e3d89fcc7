// Package events defines the informational events the ledger emits after a
// state change commits. Events exist for external indexing only; the ledger
// never consumes them.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Type names an event.
type Type string

const (
	SplitCreated    Type = "split-created"
	SplitApproved   Type = "split-approved"
	SplitUpdated    Type = "split-updated"
	PaymentMade     Type = "payment-made"
	PartialPayment  Type = "partial-payment"
	RefundRequested Type = "refund-requested"
	BillSettled     Type = "bill-settled"
)

// Event carries the identifiers an indexer needs. Zero fields are omitted
// from the wire encoding.
type Event struct {
	ID        string
	Type      Type
	BillID    string
	SplitID   int64
	PaymentID int64
	RefundID  int64
	Account   string
	Amount    int64
	Clock     int64
}

// Publisher delivers events somewhere outside the ledger.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, e Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Ledger event",
		"event_id", e.ID,
		"type", string(e.Type),
		"bill_id", e.BillID,
		"split_id", e.SplitID,
		"payment_id", e.PaymentID,
		"refund_id", e.RefundID,
		"account", e.Account,
		"amount", e.Amount,
		"clock", e.Clock,
	)
	return nil
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	var types []Type
	for _, e := range r.Events() {
		types = append(types, e.Type)
	}
	return types
}
