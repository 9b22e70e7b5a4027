package enums

import "fmt"

// InvoiceState tracks whether an invoice has been registered against its order.
type InvoiceState string

const (
	InvoiceStateOpen     InvoiceState = "open"
	InvoiceStatePaid     InvoiceState = "paid"
	InvoiceStateCanceled InvoiceState = "canceled"
)

var validInvoiceStates = []InvoiceState{
	InvoiceStateOpen,
	InvoiceStatePaid,
	InvoiceStateCanceled,
}

func (s InvoiceState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InvoiceState.
func (s InvoiceState) IsValid() bool {
	for _, candidate := range validInvoiceStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceState converts raw input into an InvoiceState.
func ParseInvoiceState(value string) (InvoiceState, error) {
	for _, candidate := range validInvoiceStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice state %q", value)
}

// CaptureCase records how the money behind an invoice was captured.
type CaptureCase string

const (
	CaptureOnline     CaptureCase = "online"
	CaptureOffline    CaptureCase = "offline"
	CaptureNotCapture CaptureCase = "not_capture"
)

// IsValid reports whether the value is a known CaptureCase.
func (c CaptureCase) IsValid() bool {
	switch c {
	case CaptureOnline, CaptureOffline, CaptureNotCapture:
		return true
	}
	return false
}

// PaymentTxnType labels a locally recorded payment transaction.
type PaymentTxnType string

const (
	PaymentTxnOrder   PaymentTxnType = "order"
	PaymentTxnCapture PaymentTxnType = "capture"
)

// IsValid reports whether the value is a known PaymentTxnType.
func (t PaymentTxnType) IsValid() bool {
	return t == PaymentTxnOrder || t == PaymentTxnCapture
}
