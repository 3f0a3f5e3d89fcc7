package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/storage"
)

// ledgerCode maps a ledger error kind to a Connect code.
func ledgerCode(err error) connect.Code {
	switch ledger.KindOf(err) {
	case ledger.ErrUnauthorized:
		return connect.CodePermissionDenied
	case ledger.ErrNotFound:
		return connect.CodeNotFound
	case ledger.ErrValidation:
		return connect.CodeInvalidArgument
	case ledger.ErrStateConflict:
		return connect.CodeFailedPrecondition
	case ledger.ErrCapacityExceeded:
		return connect.CodeResourceExhausted
	case ledger.ErrExternalFailure:
		return connect.CodeUnavailable
	}
	if errors.Is(err, storage.ErrNotFound) {
		return connect.CodeNotFound
	}
	return connect.CodeInternal
}

// toConnectError wraps err with the code for its kind. The error kind is
// also exposed in the middleware.ErrorKindHeader metadata header.
func toConnectError(err error) error {
	cerr := connect.NewError(ledgerCode(err), err)
	cerr.Meta().Set(middleware.ErrorKindHeader, ledger.KindName(err))
	return cerr
}
