package cart

import "context"

// Item is a variant the user has put in the cart.
type Item struct {
	VariantID string
	Quantity  int
}

// Store reads and clears per-user carts.
type Store interface {
	Items(ctx context.Context, userID string) ([]Item, error)
	Clear(ctx context.Context, userID string) error
}
