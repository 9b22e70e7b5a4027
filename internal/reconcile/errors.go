package reconcile

import (
	"errors"
	"fmt"
)

// Reason classifies a failed reconciliation.
type Reason string

const (
	ReasonNone                         Reason = ""
	ReasonMalformedSessionData         Reason = "malformed_session_data"
	ReasonRemoteOrderNotFound          Reason = "remote_order_not_found"
	ReasonRemoteOrderDetailUnavailable Reason = "remote_order_detail_unavailable"
	ReasonValidationFailed             Reason = "validation_failed"
	ReasonOrderCreationFailed          Reason = "order_creation_failed"
	ReasonInvoiceCreationFailed        Reason = "invoice_creation_failed"
	ReasonAlreadyInvoiced              Reason = "already_invoiced"
	ReasonPanic                        Reason = "panic"
)

// Error carries the reason and the state where a reconciliation stopped.
type Error struct {
	Reason Reason
	State  State
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at %s", e.Reason, e.State)
	}
	return fmt.Sprintf("%s at %s: %v", e.Reason, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(reason Reason, state State, err error) *Error {
	return &Error{Reason: reason, State: state, Err: err}
}

func failf(reason Reason, state State, format string, args ...any) *Error {
	return fail(reason, state, fmt.Errorf(format, args...))
}

// ReasonOf extracts the reconciliation reason from err, if any.
func ReasonOf(err error) Reason {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Reason
	}
	return ReasonNone
}

func failedResult(base Result, err *Error) Result {
	base.Success = false
	base.Reason = err.Reason
	base.State = err.State
	base.Message = err.Error()
	return base
}
