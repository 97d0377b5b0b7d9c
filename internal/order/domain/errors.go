package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden rejects an actor lacking ownership or role.
	ErrForbidden = errors.New("actor is not allowed to perform this action")

	// ErrNoDraft means the dealer has no open cart.
	ErrNoDraft = errors.New("dealer has no draft order")

	// ErrEmptyOrder rejects submitting a draft with no lines.
	ErrEmptyOrder = errors.New("order has no lines")

	// ErrInvalidQuantity rejects non-positive requested quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrProductInactive rejects adding a unit no longer offered.
	ErrProductInactive = errors.New("product is not active")

	// ErrNoDestination blocks shipping an order without a resolved
	// destination.
	ErrNoDestination = errors.New("order has no shipping destination")

	ErrOrderNotFound = errors.New("order not found")
	ErrLineNotFound  = errors.New("order line not found")
)

// InvalidTransitionError signals a stale client or a lost race: the
// requested event does not apply to the order's current status.
type InvalidTransitionError struct {
	From  Status
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %q", e.Event, e.From)
}

// ShippingDocumentError aborts the ship transition: the provider call
// failed and the order stays in pending_payment.
type ShippingDocumentError struct {
	OrderID string
	Err     error
}

func (e *ShippingDocumentError) Error() string {
	return fmt.Sprintf("shipping document for order %s: %v", e.OrderID, e.Err)
}

func (e *ShippingDocumentError) Unwrap() error { return e.Err }
