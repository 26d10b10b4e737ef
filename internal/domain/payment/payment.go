// Package payment defines the hosted payment gateway port used by the order
// lifecycle: session creation at checkout, session cancellation, and the
// asynchronous callback the gateway posts once the buyer has paid.
package payment

import (
	"context"
	"fmt"
)

// Item is a line shown on the hosted checkout page.
type Item struct {
	Name     string
	Quantity int
	// Price is the unit price in the smallest currency unit.
	Price int64
}

// Buyer carries the contact details forwarded to the gateway.
type Buyer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// SessionRequest opens a hosted checkout session for an order.
type SessionRequest struct {
	OrderID   string
	Amount    int64
	Items     []Item
	Buyer     Buyer
	ReturnURL string
	CancelURL string
}

// Session is the gateway's answer to SessionRequest.
type Session struct {
	CheckoutURL string
	// Code correlates later callbacks with the order.
	Code int64
}

// Gateway is the hosted payment session API.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	CancelSession(ctx context.Context, code int64, reason string) error
}

// SuccessCode is the callback status code the gateway uses for a paid session.
const SuccessCode = "00"

// Callback is an asynchronous payment notification from the gateway.
type Callback struct {
	Code        string
	Description string
	// OrderCode is zero when the payload carries no correlation code.
	OrderCode int64
	Amount    int64
	Reference string
	// Fields holds the signed data fields exactly as received.
	Fields    map[string]string
	Signature string
}

// Success reports whether the callback confirms a payment.
func (c Callback) Success() bool {
	return c.Code == SuccessCode
}

// Verifier checks the authenticity of a callback.
type Verifier interface {
	VerifyCallback(cb Callback) bool
}

// ChannelError is a business-level refusal returned by the gateway itself, as
// opposed to transport or decoding failures.
type ChannelError struct {
	Code        string
	Description string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("gateway rejected request: code %s: %s", e.Code, e.Description)
}
