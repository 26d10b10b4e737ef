// Package loyalty accrues points for purchases into an append-only ledger.
package loyalty

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Accrual reasons recorded on ledger entries.
const (
	ReasonOrderPlaced      = "order_placed"
	ReasonPaymentConfirmed = "payment_confirmed"
)

// Entry is one accrual on a user's ledger.
type Entry struct {
	UserID    string
	OrderID   string
	Reason    string
	Revenue   decimal.Decimal
	Points    int64
	CreatedAt time.Time
}

// Ledger persists accruals. Append reports false when an entry for the same
// order and reason already exists.
type Ledger interface {
	Append(ctx context.Context, e Entry) (bool, error)
}

// Service converts revenue into points.
type Service struct {
	ledger Ledger
	unit   decimal.Decimal
	now    func() time.Time
}

// NewService creates a Service awarding one point per unit of revenue.
func NewService(ledger Ledger, unit decimal.Decimal) *Service {
	if !unit.IsPositive() {
		unit = decimal.NewFromInt(1)
	}
	return &Service{ledger: ledger, unit: unit, now: time.Now}
}

// Points returns the whole points earned for revenue.
func (s *Service) Points(revenue decimal.Decimal) int64 {
	if !revenue.IsPositive() {
		return 0
	}
	return revenue.Div(s.unit).Floor().IntPart()
}

// EarnPoints records an accrual for the order. Repeated calls for the same
// order and reason are no-ops.
func (s *Service) EarnPoints(ctx context.Context, userID, orderID string, revenue decimal.Decimal, reason string) error {
	if userID == "" {
		return errors.New("user id required")
	}
	points := s.Points(revenue)
	if points == 0 {
		return nil
	}
	if _, err := s.ledger.Append(ctx, Entry{
		UserID:    userID,
		OrderID:   orderID,
		Reason:    reason,
		Revenue:   revenue,
		Points:    points,
		CreatedAt: s.now(),
	}); err != nil {
		return errors.Wrap(err, "append ledger entry")
	}
	return nil
}
