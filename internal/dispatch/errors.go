package dispatch

import (
	"errors"
	"fmt"

	"github.com/fleetgate/fleetgate/internal/access"
)

// ErrorKind is the coarse classification an OperationError exposes.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidInput ErrorKind = "invalid_input"
	KindUnavailable  ErrorKind = "unavailable"
	KindInvariant    ErrorKind = "invariant"
)

// OperationError is the executor's failure type. Only kind and message
// cross the boundary; the raw store error never does.
type OperationError struct {
	Kind    ErrorKind
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("dispatch: %s: %s", e.Kind, e.Message)
}

// opErr builds an OperationError.
func opErr(kind ErrorKind, message string) *OperationError {
	return &OperationError{Kind: kind, Message: message}
}

// wrapStoreErr reclassifies a store failure. Access-control sentinels pass
// through untouched so gate outcomes keep their meaning; everything
// unrecognized is a collaborator failure, never a deny.
func wrapStoreErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, access.ErrUnauthenticated),
		errors.Is(err, access.ErrProfileMissing),
		errors.Is(err, access.ErrForbidden):
		return err
	case errors.Is(err, ErrNotFound):
		return opErr(KindNotFound, op+": no matching row")
	case errors.Is(err, ErrConflict):
		return opErr(KindConflict, op+": conflicting row")
	case errors.Is(err, ErrInvalidRef):
		return opErr(KindInvalidInput, op+": referenced row does not exist")
	case errors.Is(err, ErrInvalidInput):
		return opErr(KindInvalidInput, op+": invalid input")
	case errors.Is(err, access.ErrInvariant):
		return opErr(KindInvariant, op+": data integrity fault")
	default:
		return opErr(KindUnavailable, op+": store unavailable")
	}
}
