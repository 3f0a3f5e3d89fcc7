// Package ledger implements share apportionment and payment settlement for
// bills. A Ledger serializes every call, runs each one inside a single
// storage transaction and performs the token transfer last, so a rejected
// or failed call leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Deps are the capabilities a Ledger is built from.
type Deps struct {
	Bills  BillCatalog
	Groups GroupDirectory
	Tokens TokenTransferService
	// Clock defaults to UnixClock.
	Clock Clock
	// Events defaults to events.Discard.
	Events events.Publisher
}

// Options tune ledger behavior.
type Options struct {
	// EscrowAccount receives payments and funds refunds.
	EscrowAccount string
	// ResetApprovalsOnEdit clears the recorded votes of an unapproved split
	// when its shares are updated.
	ResetApprovalsOnEdit bool
}

// Ledger is the share apportionment and payment settlement service.
type Ledger struct {
	mu     sync.Mutex
	store  storage.Store
	bills  BillCatalog
	groups GroupDirectory
	tokens TokenTransferService
	clock  Clock
	events events.Publisher

	escrow               string
	resetApprovalsOnEdit bool
}

// New creates a Ledger over store.
func New(store storage.Store, deps Deps, opts Options) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if deps.Bills == nil || deps.Groups == nil || deps.Tokens == nil {
		return nil, errors.New("ledger: bill catalog, group directory and token service are required")
	}
	if opts.EscrowAccount == "" {
		return nil, errors.New("ledger: escrow account is required")
	}
	if deps.Clock == nil {
		deps.Clock = UnixClock
	}
	if deps.Events == nil {
		deps.Events = events.Discard
	}

	return &Ledger{
		store:                store,
		bills:                deps.Bills,
		groups:               deps.Groups,
		tokens:               deps.Tokens,
		clock:                deps.Clock,
		events:               deps.Events,
		escrow:               opts.EscrowAccount,
		resetApprovalsOnEdit: opts.ResetApprovalsOnEdit,
	}, nil
}

// EscrowAccount returns the account payments are transferred to.
func (l *Ledger) EscrowAccount() string { return l.escrow }

type transfer struct {
	amount   int64
	from, to string
}

// outcome collects what a call produced inside its transaction. Nothing in
// it takes effect outside the ledger until the transaction has committed.
type outcome struct {
	now         int64
	events      []events.Event
	transferred *transfer
	onCommit    []func()
}

func (o *outcome) emit(e events.Event) {
	e.ID = uuid.NewString()
	e.Clock = o.now
	o.events = append(o.events, e)
}

func (o *outcome) after(fn func()) {
	o.onCommit = append(o.onCommit, fn)
}

// run executes fn under the writer lock inside one transaction. If the
// commit fails after fn completed a transfer, the transfer is reversed.
func (l *Ledger) run(ctx context.Context, op string, fn func(tx storage.Tx, out *outcome) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	out := &outcome{now: l.clock.Now()}

	var fnErr error
	err := l.store.WithinTx(ctx, func(tx storage.Tx) error {
		fnErr = fn(tx, out)
		return fnErr
	})
	if err != nil && fnErr == nil && out.transferred != nil {
		l.reverse(ctx, op, out.transferred)
	}

	metrics.ObserveOperation(op, resultLabel(err), time.Since(start))
	if err != nil {
		if KindOf(err) == nil {
			slog.Error("Ledger operation failed", "operation", op, "error", err)
		} else {
			slog.Debug("Ledger operation rejected", "operation", op, "kind", KindName(err), "error", err)
		}
		return err
	}

	for _, fn := range out.onCommit {
		fn()
	}
	for _, e := range out.events {
		if perr := l.events.Publish(ctx, e); perr != nil {
			metrics.IncEventPublishError(string(e.Type))
			slog.Warn("Failed to publish event", "type", e.Type, "event_id", e.ID, "error", perr)
		}
	}
	return nil
}

func resultLabel(err error) string {
	if err == nil {
		return ""
	}
	return KindName(err)
}

func (l *Ledger) reverse(ctx context.Context, op string, t *transfer) {
	ctx = context.WithoutCancel(ctx)
	if err := l.tokens.Transfer(ctx, t.amount, t.to, t.from); err != nil {
		slog.Error("Compensating transfer failed",
			"operation", op, "amount", t.amount, "from", t.to, "to", t.from, "error", err)
		return
	}
	slog.Warn("Transfer reversed after commit failure",
		"operation", op, "amount", t.amount, "from", t.from, "to", t.to)
}

// transfer moves tokens and records the movement for compensation. It must
// be the last external effect of a call.
func (l *Ledger) transfer(ctx context.Context, out *outcome, amount int64, from, to string) error {
	if err := l.tokens.Transfer(ctx, amount, from, to); err != nil {
		return fmt.Errorf("%w: %d from %s to %s: %w", ErrTransferFailed, amount, from, to, err)
	}
	out.transferred = &transfer{amount: amount, from: from, to: to}
	return nil
}

// lookupErr classifies a collaborator error.
func lookupErr(err, notFound error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return fmt.Errorf("%w: %s: %w", ErrLookupFailed, id, err)
}

func (l *Ledger) bill(ctx context.Context, billID string) (*models.Bill, error) {
	bill, err := l.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, lookupErr(err, ErrBillNotFound, billID)
	}
	return bill, nil
}

func (l *Ledger) group(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := l.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, lookupErr(err, ErrGroupNotFound, groupID)
	}
	return group, nil
}

// billGroup resolves a bill and the group it belongs to.
func (l *Ledger) billGroup(ctx context.Context, billID string) (*models.Bill, *models.Group, error) {
	bill, err := l.bill(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	group, err := l.group(ctx, bill.GroupID)
	if err != nil {
		return nil, nil, err
	}
	return bill, group, nil
}

func settings(ctx context.Context, tx storage.Tx) (*models.Settings, error) {
	s, err := tx.Settings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotBootstrapped
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

func requireAdmin(s *models.Settings, caller string) error {
	if caller == "" || caller != s.Admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	return nil
}

// mapNotFound turns a storage not-found into the given ledger error.
func mapNotFound(err, notFound error, id any) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", notFound, id)
	}
	return err
}
