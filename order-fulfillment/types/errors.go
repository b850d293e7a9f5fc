package types

import "fmt"

// Application error types. Workflows and retry policies match on these strings.
const (
	ErrTypeOrderRejected           = "ORDER_REJECTED"
	ErrTypeOrderCancelled          = "ORDER_CANCELLED"
	ErrTypeOutOfStock              = "OUT_OF_STOCK"
	ErrTypeAddressValidationFailed = "ADDRESS_VALIDATION_FAILED"
	ErrTypePaymentDeclined         = "PAYMENT_DECLINED"
	ErrTypeShippingUnavailable     = "SHIPPING_UNAVAILABLE"
	ErrTypePermanent               = "PERMANENT_FAILURE"
	ErrTypeTransient               = "TRANSIENT_FAILURE"
)

// PermanentError is a remote failure that retrying will not fix
// (validation, conflict, insufficient funds, out of stock)
type PermanentError struct {
	Operation  string
	StatusCode int
	Code       string
	Msg        string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %s (status %d, code %s)", e.Operation, e.Msg, e.StatusCode, e.Code)
}

// TransientError is a remote failure that may succeed on retry
// (timeout, 5xx, carrier unavailable, connection refused)
type TransientError struct {
	Operation  string
	StatusCode int
	Code       string
	Msg        string
}

func (e *TransientError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Operation, e.Msg)
	}
	return fmt.Sprintf("%s: %s (status %d, code %s)", e.Operation, e.Msg, e.StatusCode, e.Code)
}
