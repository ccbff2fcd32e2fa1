package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCartRequest covers malformed carts: empty, unknown ticket
	// types, or non-positive quantities.
	ErrInvalidCartRequest = errors.New("invalid cart request")

	// ErrPaymentFailed is the sentinel wrapped by PaymentError.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrConcurrencyConflict means the inventory locks could not be taken
	// within the retry budget. The request is safe to retry.
	ErrConcurrencyConflict = errors.New("concurrent checkout in progress, retry")
)

// InsufficientAvailabilityError reports the first cart line that could not be
// satisfied, with the availability observed at rejection time.
type InsufficientAvailabilityError struct {
	TicketTypeID string
	Requested    int
	Available    int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf("ticket type %s: requested %d, only %d available", e.TicketTypeID, e.Requested, e.Available)
}

// PaymentError carries the gateway reference of a declined or failed charge.
type PaymentError struct {
	Reference string
	Reason    string
}

func (e *PaymentError) Error() string {
	if e.Reason == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Reason
}

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }
