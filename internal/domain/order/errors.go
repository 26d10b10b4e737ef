package order

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// Kind classifies a domain failure for translation at the boundary.
type Kind string

const (
	KindEmptyCart             Kind = "EMPTY_CART"
	KindNoItems               Kind = "NO_ITEMS"
	KindInvalidQuantity       Kind = "INVALID_QUANTITY"
	KindInvalidContact        Kind = "INVALID_CONTACT"
	KindInvalidShippingMethod Kind = "INVALID_SHIPPING_METHOD"
	KindInvalidPaymentMethod  Kind = "INVALID_PAYMENT_METHOD"
	KindInvalidPromotion      Kind = "INVALID_PROMOTION"
	KindVariantNotFound       Kind = "VARIANT_NOT_FOUND"
	KindInsufficientStock     Kind = "INSUFFICIENT_STOCK"
	KindNotFound              Kind = "NOT_FOUND"
	KindNotCancellable        Kind = "NOT_CANCELLABLE"
	KindInvalidTransition     Kind = "INVALID_TRANSITION"
	KindPaymentSetupFailed    Kind = "PAYMENT_SETUP_FAILED"
)

// Error is a domain failure carrying the HTTP status it should surface as.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel domain errors. Compare with errors.Is.
var (
	ErrEmptyCart             = &Error{Kind: KindEmptyCart, Status: http.StatusBadRequest, Message: "cart is empty"}
	ErrNoItems               = &Error{Kind: KindNoItems, Status: http.StatusBadRequest, Message: "items required"}
	ErrInvalidQuantity       = &Error{Kind: KindInvalidQuantity, Status: http.StatusUnprocessableEntity, Message: "quantity must be greater than 0"}
	ErrInvalidContact        = &Error{Kind: KindInvalidContact, Status: http.StatusBadRequest, Message: "contact name and email required"}
	ErrInvalidShippingMethod = &Error{Kind: KindInvalidShippingMethod, Status: http.StatusBadRequest, Message: "unknown shipping method"}
	ErrInvalidPaymentMethod  = &Error{Kind: KindInvalidPaymentMethod, Status: http.StatusBadRequest, Message: "unknown payment method"}
	ErrInvalidPromotion      = &Error{Kind: KindInvalidPromotion, Status: http.StatusUnprocessableEntity, Message: "invalid discount code"}
	ErrVariantNotFound       = &Error{Kind: KindVariantNotFound, Status: http.StatusUnprocessableEntity, Message: "variant not found"}
	ErrInsufficientStock     = &Error{Kind: KindInsufficientStock, Status: http.StatusConflict, Message: "insufficient stock"}
	ErrNotFound              = &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: "order not found"}
	ErrNotCancellable        = &Error{Kind: KindNotCancellable, Status: http.StatusConflict, Message: "order cannot be cancelled"}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition, Status: http.StatusConflict, Message: "invalid status transition"}
	ErrPaymentSetupFailed    = &Error{Kind: KindPaymentSetupFailed, Status: http.StatusBadGateway, Message: "payment setup failed"}
)

// ErrConflict is returned by Repository.Update when the stored version moved.
var ErrConflict = errors.New("order version conflict")

// VariantError reports a line item whose variant is missing or short on stock.
type VariantError struct {
	Kind      *Error
	VariantID string
	Available int
	Requested int
}

func (e *VariantError) Error() string {
	if e.Kind == ErrInsufficientStock {
		return fmt.Sprintf("insufficient stock for variant %s: available %d, requested %d",
			e.VariantID, e.Available, e.Requested)
	}
	return fmt.Sprintf("variant %s not found", e.VariantID)
}

func (e *VariantError) Unwrap() error {
	return e.Kind
}

// PaymentSetupError is returned when the gateway refused to open a session.
// The order was already committed and stays pending without a payment link.
type PaymentSetupError struct {
	OrderID string
	Err     error
}

func (e *PaymentSetupError) Error() string {
	return fmt.Sprintf("payment setup for order %s: %v", e.OrderID, e.Err)
}

// Unwrap exposes both the kind and the gateway cause.
func (e *PaymentSetupError) Unwrap() []error {
	return []error{ErrPaymentSetupFailed, e.Err}
}

// StatusCode returns the HTTP status for err, or 500 when err is not a
// domain error.
func StatusCode(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	return http.StatusInternalServerError
}

// KindOf returns the domain kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
