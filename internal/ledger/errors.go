package ledger

import "errors"

// Error kinds. Every error returned by Ledger that is not an internal
// storage failure wraps exactly one of these.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrStateConflict    = errors.New("state conflict")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrExternalFailure  = errors.New("external failure")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnauthorized, "unauthorized"},
	{ErrNotFound, "not_found"},
	{ErrValidation, "validation"},
	{ErrStateConflict, "state_conflict"},
	{ErrCapacityExceeded, "capacity_exceeded"},
	{ErrExternalFailure, "external_failure"},
}

// kindError is a specific ledger error that also matches its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Specific errors.
var (
	ErrNotBootstrapped = newError(ErrStateConflict, "ledger has not been bootstrapped")
	ErrNotMember       = newError(ErrUnauthorized, "caller is not a member of the bill's group")
	ErrNotAdmin        = newError(ErrUnauthorized, "caller is not the ledger administrator")
	ErrNotCreator      = newError(ErrUnauthorized, "only the split creator may update shares")

	ErrBillNotFound    = newError(ErrNotFound, "bill not found")
	ErrGroupNotFound   = newError(ErrNotFound, "group not found")
	ErrSplitNotFound   = newError(ErrNotFound, "split not found")
	ErrNoSplit         = newError(ErrNotFound, "no split for bill")
	ErrNoShare         = newError(ErrNotFound, "member has no share in split")
	ErrNoBalance       = newError(ErrNotFound, "bill balance not initialized")
	ErrNoPayments      = newError(ErrNotFound, "no payments by payer for bill")
	ErrPaymentNotFound = newError(ErrNotFound, "payment not found")

	ErrInvalidAmount        = newError(ErrValidation, "amount must be positive")
	ErrInvalidPercent       = newError(ErrValidation, "percentage must be between 0 and 100")
	ErrInvalidLimit         = newError(ErrValidation, "limit must be positive")
	ErrInvalidAccount       = newError(ErrValidation, "account must not be empty")
	ErrInvalidShares        = newError(ErrValidation, "invalid shares")
	ErrGroupMismatch        = newError(ErrValidation, "group does not match the split's group")
	ErrInsufficientCoverage = newError(ErrValidation, "net payment exceeds amount owed")
	ErrPartialExceeds       = newError(ErrValidation, "cumulative payments would exceed amount owed")
	ErrRefundExceedsPaid    = newError(ErrValidation, "refund exceeds amount paid")

	ErrSplitExists    = newError(ErrStateConflict, "split already exists for bill")
	ErrDuplicateVote  = newError(ErrStateConflict, "caller already approved split")
	ErrAlreadyPaid    = newError(ErrStateConflict, "payer already has a payment for bill")
	ErrBalanceExists  = newError(ErrStateConflict, "bill balance already initialized")
	ErrAlreadySettled = newError(ErrStateConflict, "bill already settled")

	ErrTooManyShares = newError(ErrCapacityExceeded, "too many shares for one bill")
	ErrHistoryFull   = newError(ErrCapacityExceeded, "payment history for bill is full")

	ErrLookupFailed   = newError(ErrExternalFailure, "collaborator lookup failed")
	ErrTransferFailed = newError(ErrExternalFailure, "token transfer failed")
)

// KindOf returns the kind err belongs to, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err
		}
	}
	return nil
}

// KindName returns a short label for the kind of err: "ok" for nil and
// "internal" for unclassified errors.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
