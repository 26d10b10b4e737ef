package inventory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a variant does not exist.
	ErrNotFound = errors.New("variant not found")
	// ErrInsufficientStock is returned by a conditional decrement that would
	// take stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Variant is a purchasable size/color of a product joined with its product.
type Variant struct {
	ID        string
	ProductID string
	Name      string
	Brand     string
	Size      string
	Color     string
	Image     string
	Price     decimal.Decimal
	Stock     int
}

// Store holds stock and price per variant.
type Store interface {
	GetVariants(ctx context.Context, ids []string) ([]Variant, error)
	// Decrement removes qty units only if at least qty are available.
	Decrement(ctx context.Context, variantID string, qty int) error
	Increment(ctx context.Context, variantID string, qty int) error
	// ProductNames resolves display names for analytics.
	ProductNames(ctx context.Context, productIDs []string) (map[string]string, error)
}
