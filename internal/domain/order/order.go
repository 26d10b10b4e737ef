package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how the buyer settles the order.
type PaymentMethod string

const (
	// PaymentCOD is cash collected by the courier on delivery.
	PaymentCOD PaymentMethod = "cod"
	// PaymentGateway is a hosted checkout session on the payment gateway.
	PaymentGateway PaymentMethod = "gateway"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentGateway
}

// PaymentStatus is the settlement state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	// PaymentFailed also marks a paid order that was cancelled and is owed a refund.
	PaymentFailed PaymentStatus = "failed"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// rank orders the forward fulfillment chain. Cancelled is off-chain.
var rank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// Valid reports whether s is a known fulfillment status.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok || s == StatusCancelled
}

// CanTransition reports whether a fulfillment change from s to next is allowed.
// The chain is monotone; cancelled is reachable only from pending or processing
// and is terminal.
func (s Status) CanTransition(next Status) bool {
	if next == StatusCancelled {
		return s == StatusPending || s == StatusProcessing
	}
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	return ok && to > from
}

// Customer is a contact block: the identity of a guest order, the delivery
// contact of an owned order, or a resolved notification recipient.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Snapshot freezes the catalog facts of a variant at purchase time.
type Snapshot struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
}

// LineItem is a purchased variant with its frozen snapshot.
type LineItem struct {
	VariantID string   `json:"variant_id"`
	Quantity  int      `json:"quantity"`
	Snapshot  Snapshot `json:"snapshot"`
}

// Amount returns the snapshot price times quantity.
func (li LineItem) Amount() decimal.Decimal {
	return li.Snapshot.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Totals holds the priced summary of an order.
// Total = Subtotal - Discount + ShippingFee.
type Totals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

// ComputeTotals prices the line items. The discount is clamped to the
// subtotal so the total never drops below the shipping fee.
func ComputeTotals(items []LineItem, discount, shippingFee decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.Amount())
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	discount = decimal.Min(discount, subtotal)
	return Totals{
		Subtotal:    subtotal,
		Discount:    discount,
		ShippingFee: shippingFee,
		Total:       subtotal.Sub(discount).Add(shippingFee),
	}
}

// GatewaySession links an order to a hosted payment session.
type GatewaySession struct {
	CheckoutURL string
	Code        int64
}

// Order is the durable record of a purchase.
type Order struct {
	ID string
	// UserID is empty for guest orders, whose identity is Contact.
	UserID         string
	Contact        *Customer
	Items          []LineItem
	Totals         Totals
	PaymentMethod  PaymentMethod
	PaymentStatus  PaymentStatus
	Status         Status
	DiscountCode   string
	ShippingMethod string
	Gateway        *GatewaySession
	// Version is bumped on every update and used for compare-and-set.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsGuest reports whether the order has no owning user.
func (o *Order) IsGuest() bool {
	return o.UserID == ""
}

// ShortCode is the case-insensitive suffix handed to guests for lookup.
func (o *Order) ShortCode() string {
	if len(o.ID) <= ShortCodeLen {
		return strings.ToUpper(o.ID)
	}
	return strings.ToUpper(o.ID[len(o.ID)-ShortCodeLen:])
}

// ShortCodeLen is the length of a guest lookup code.
const ShortCodeLen = 6

// PaymentCode returns the gateway correlation code, or zero when the order has
// no gateway session.
func (o *Order) PaymentCode() int64 {
	if o.Gateway == nil {
		return 0
	}
	return o.Gateway.Code
}

// Clone returns a deep copy safe to mutate.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.Contact != nil {
		cc := *o.Contact
		c.Contact = &cc
	}
	if o.Gateway != nil {
		gw := *o.Gateway
		c.Gateway = &gw
	}
	return &c
}

// Repository defines persistence operations for orders. Orders are never
// deleted.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByPaymentCode(ctx context.Context, code int64) (*Order, error)
	// Update stores o if its Version still matches the stored row and bumps
	// Version on success. It returns ErrConflict on a stale version.
	Update(ctx context.Context, o *Order) error
	// ListByUser and ListByEmail return newest first. ListByEmail only
	// matches guest orders.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListByEmail(ctx context.Context, email string) ([]Order, error)
}
