package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/cart"
	"github.com/thangnvgch211384/fshoemate/internal/domain/inventory"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
	"github.com/thangnvgch211384/fshoemate/internal/domain/user"
)

// Loyalty accrues points for an order.
type Loyalty interface {
	EarnPoints(ctx context.Context, userID, orderID string, revenue decimal.Decimal, reason string) error
}

// Notifier dispatches order emails. Rendering happens downstream.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, o *Order, to Customer) error
	// SendOrderReceived is the payment-pending variant of the confirmation.
	SendOrderReceived(ctx context.Context, o *Order, to Customer) error
	SendOrderCancellation(ctx context.Context, o *Order, to Customer) error
}

// UsageCounter records that a promotion code was used.
type UsageCounter interface {
	IncrementUses(ctx context.Context, code string) error
}

// Deps are the collaborators of Service.
type Deps struct {
	Orders     Repository
	Inventory  inventory.Store
	Carts      cart.Store
	Users      user.Store
	Promotions promotion.Validator
	Usage      UsageCounter
	Gateway    payment.Gateway
	Loyalty    Loyalty
	Notifier   Notifier
	// Verifier is optional. When nil, callbacks are applied unverified.
	Verifier payment.Verifier
	// Meter is optional.
	Meter metric.Meter
}

// Config holds checkout policy.
type Config struct {
	// ShippingFees maps a shipping method to its flat fee.
	ShippingFees          map[string]decimal.Decimal
	DefaultShippingMethod string
	// ReturnURL and CancelURL may contain {order_id}.
	ReturnURL string
	CancelURL string
	// StockConcurrency bounds parallel inventory calls per order.
	StockConcurrency int
	// MaxConflictRetries bounds compare-and-set retries on concurrent updates.
	MaxConflictRetries int
}

// Service runs the order lifecycle: checkout, payment reconciliation,
// cancellation, administrative status changes and reads.
type Service struct {
	orders     Repository
	inventory  inventory.Store
	carts      cart.Store
	users      user.Store
	promotions promotion.Validator
	usage      UsageCounter
	gateway    payment.Gateway
	loyalty    Loyalty
	notifier   Notifier
	verifier   payment.Verifier
	cfg        Config

	created   metric.Int64Counter
	webhooks  metric.Int64Counter
	cancelled metric.Int64Counter

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if cfg.StockConcurrency <= 0 {
		cfg.StockConcurrency = 8
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = 3
	}
	if cfg.DefaultShippingMethod == "" {
		cfg.DefaultShippingMethod = "standard"
	}
	meter := deps.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("order")
	}

	s := &Service{
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		carts:      deps.Carts,
		users:      deps.Users,
		promotions: deps.Promotions,
		usage:      deps.Usage,
		gateway:    deps.Gateway,
		loyalty:    deps.Loyalty,
		notifier:   deps.Notifier,
		verifier:   deps.Verifier,
		cfg:        cfg,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}

	var err error
	if s.created, err = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders committed by checkout")); err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	if s.webhooks, err = meter.Int64Counter("orders.webhooks",
		metric.WithDescription("Payment callbacks by outcome")); err != nil {
		return nil, errors.Wrap(err, "orders.webhooks counter")
	}
	if s.cancelled, err = meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled")); err != nil {
		return nil, errors.Wrap(err, "orders.cancelled counter")
	}
	return s, nil
}

// recipient resolves who is notified about o and who the gateway bills.
func (s *Service) recipient(ctx context.Context, o *Order) (Customer, error) {
	if o.IsGuest() {
		if o.Contact == nil {
			return Customer{}, errors.New("guest order without contact")
		}
		return *o.Contact, nil
	}
	u, err := s.users.Get(ctx, o.UserID)
	if err != nil {
		return Customer{}, errors.Wrapf(err, "get user %s", o.UserID)
	}
	c := Customer{Name: u.Name, Email: u.Email, Phone: u.Phone, Address: u.Address}
	if o.Contact != nil {
		// Delivery details given at checkout override the profile.
		if o.Contact.Name != "" {
			c.Name = o.Contact.Name
		}
		if o.Contact.Phone != "" {
			c.Phone = o.Contact.Phone
		}
		if o.Contact.Address != "" {
			c.Address = o.Contact.Address
		}
	}
	return c, nil
}

type notifyFunc func(ctx context.Context, o *Order, to Customer) error

// notify sends one email; failures are logged and dropped.
func (s *Service) notify(ctx context.Context, o *Order, kind string, send notifyFunc) {
	lg := zctx.From(ctx).With(zap.String("order_id", o.ID), zap.String("notification", kind))
	to, err := s.recipient(ctx, o)
	if err != nil {
		lg.Warn("Resolve notification recipient", zap.Error(err))
		return
	}
	if err := send(ctx, o, to); err != nil {
		lg.Warn("Send notification", zap.Error(err))
	}
}

// earnPoints accrues loyalty for owned orders; failures are logged and dropped.
func (s *Service) earnPoints(ctx context.Context, o *Order, reason string) {
	if o.IsGuest() {
		return
	}
	if err := s.loyalty.EarnPoints(ctx, o.UserID, o.ID, o.Totals.Total, reason); err != nil {
		zctx.From(ctx).Warn("Earn loyalty points",
			zap.String("order_id", o.ID),
			zap.String("user_id", o.UserID),
			zap.Error(err),
		)
	}
}

// update runs a read-modify-write on the order with compare-and-set
// semantics. mutate returns false to leave the order untouched.
func (s *Service) update(ctx context.Context, load func() (*Order, error), mutate func(o *Order) (bool, error)) (*Order, bool, error) {
	for attempt := 0; ; attempt++ {
		o, err := load()
		if err != nil {
			return nil, false, err
		}
		changed, err := mutate(o)
		if err != nil || !changed {
			return o, false, err
		}
		o.UpdatedAt = s.now()
		err = s.orders.Update(ctx, o)
		if err == nil {
			return o, true, nil
		}
		if !errors.Is(err, ErrConflict) || attempt+1 >= s.cfg.MaxConflictRetries {
			return nil, false, errors.Wrapf(err, "update order %s", o.ID)
		}
		zctx.From(ctx).Debug("Order version conflict, retrying",
			zap.String("order_id", o.ID),
			zap.Int("attempt", attempt+1),
		)
	}
}

func (s *Service) loadByID(ctx context.Context, id string) func() (*Order, error) {
	return func() (*Order, error) {
		o, err := s.orders.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, errors.Wrapf(err, "get order %s", id)
		}
		return o, nil
	}
}

func expandURL(tpl, orderID string) string {
	return strings.ReplaceAll(tpl, "{order_id}", orderID)
}

func methodAttr(m PaymentMethod) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("payment_method", string(m)))
}
