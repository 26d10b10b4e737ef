package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thangnvgch211384/fshoemate/internal/domain/analytics"
	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
)

const orderColumns = `id, user_id, contact, items, subtotal, discount, shipping_fee, total,
	payment_method, payment_status, status, discount_code, shipping_method,
	checkout_url, payment_code, version, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	updateOrderSQL = `UPDATE orders SET
		contact = $2, items = $3, subtotal = $4, discount = $5, shipping_fee = $6, total = $7,
		payment_status = $8, status = $9, checkout_url = $10, payment_code = $11,
		updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $13`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	getOrderSQL            = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderByPaymentSQL   = `SELECT ` + orderColumns + ` FROM orders WHERE payment_code = $1`
	listOrdersByUserSQL    = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	listGuestOrdersByEmail = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id IS NULL AND contact ->> 'email' = $1 ORDER BY created_at DESC`
	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
)

var (
	_ order.Repository = (*OrderRepository)(nil)
	_ analytics.Source = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the contact block are stored as JSONB.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order at version 1.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, contact, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}
	o.Version = 1

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, nullString(o.UserID), contact, items,
		o.Totals.Subtotal, o.Totals.Discount, o.Totals.ShippingFee, o.Totals.Total,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		o.DiscountCode, o.ShippingMethod,
		checkoutURL(o), paymentCode(o), o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Update stores the mutable fields of o if the stored version still equals
// o.Version, and bumps o.Version on success.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	items, contact, err := marshalOrderJSON(o)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, contact, items,
		o.Totals.Subtotal, o.Totals.Discount, o.Totals.ShippingFee, o.Totals.Total,
		string(o.PaymentStatus), string(o.Status),
		checkoutURL(o), paymentCode(o), o.UpdatedAt, o.Version,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, orderExistsSQL, o.ID).Scan(&exists); err != nil {
			return fmt.Errorf("checking order %q: %w", o.ID, err)
		}
		if !exists {
			return order.ErrNotFound
		}
		return order.ErrConflict
	}
	o.Version++
	return nil
}

// Get returns the order with the given id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

// GetByPaymentCode returns the order linked to a gateway correlation code.
func (r *OrderRepository) GetByPaymentCode(ctx context.Context, code int64) (*order.Order, error) {
	return r.getOne(ctx, getOrderByPaymentSQL, code)
}

// ListByUser returns the orders of a user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// ListByEmail returns guest orders placed with the exact contact email,
// newest first.
func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]order.Order, error) {
	return r.list(ctx, listGuestOrdersByEmail, email)
}

// ListAll returns the complete order history, newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listAllOrdersSQL)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %v: %w", arg, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %v: %w", arg, err)
	}
	return &o, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		userID         *string
		contact, items []byte
		paymentMethod  string
		paymentStatus  string
		status         string
		checkout       string
		code           *int64
		createdAt      time.Time
		updatedAt      time.Time
	)
	err := row.Scan(
		&o.ID, &userID, &contact, &items,
		&o.Totals.Subtotal, &o.Totals.Discount, &o.Totals.ShippingFee, &o.Totals.Total,
		&paymentMethod, &paymentStatus, &status, &o.DiscountCode, &o.ShippingMethod,
		&checkout, &code, &o.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return o, err
	}
	if userID != nil {
		o.UserID = *userID
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	if len(contact) > 0 {
		o.Contact = new(order.Customer)
		if err := json.Unmarshal(contact, o.Contact); err != nil {
			return o, fmt.Errorf("unmarshaling contact of order %q: %w", o.ID, err)
		}
	}
	if code != nil || checkout != "" {
		o.Gateway = &order.GatewaySession{CheckoutURL: checkout}
		if code != nil {
			o.Gateway.Code = *code
		}
	}
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)
	o.CreatedAt = createdAt.UTC()
	o.UpdatedAt = updatedAt.UTC()
	return o, nil
}

func marshalOrderJSON(o *order.Order) (items, contact []byte, err error) {
	items, err = json.Marshal(o.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling order items: %w", err)
	}
	if o.Contact != nil {
		contact, err = json.Marshal(o.Contact)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling order contact: %w", err)
		}
	}
	return items, contact, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func checkoutURL(o *order.Order) string {
	if o.Gateway == nil {
		return ""
	}
	return o.Gateway.CheckoutURL
}

func paymentCode(o *order.Order) *int64 {
	if o.Gateway == nil || o.Gateway.Code == 0 {
		return nil
	}
	code := o.Gateway.Code
	return &code
}
