package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the subtotal, optionally capped
	// by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the cost of one unit of the cheapest item.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidCode is returned when a code is unknown or the cart does not
	// meet the minimum item requirement.
	ErrInvalidCode = errors.New("invalid promotion code")
	// ErrExpired is returned outside the promotion's validity window.
	ErrExpired = errors.New("promotion expired")
	// ErrUsageLimitReached is returned when the promotion has been used up.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
)

// Rule defines a promotion's discount and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	// MaxUses of zero means unlimited.
	MaxUses int
	Uses    int
	// MaxDiscount of zero means uncapped.
	MaxDiscount decimal.Decimal
}

// Discount is the computed reduction for a cart.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Item is a priced line for discount calculation.
type Item struct {
	VariantID string
	Price     decimal.Decimal
	Quantity  int
}

// Repository provides lookup and usage counting of promotions.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
