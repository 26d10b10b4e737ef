// Package redis stores shopping carts in Redis hashes.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thangnvgch211384/fshoemate/internal/domain/cart"
)

const keyPrefix = "cart:"

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps each cart as a hash of variant id to quantity.
type CartStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCartStore creates a CartStore. A positive ttl expires idle carts.
func NewCartStore(client redis.UniversalClient, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func key(userID string) string {
	return keyPrefix + userID
}

// Items returns the cart lines ordered by variant id.
func (s *CartStore) Items(ctx context.Context, userID string) ([]cart.Item, error) {
	fields, err := s.client.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading cart of %q: %w", userID, err)
	}
	items := make([]cart.Item, 0, len(fields))
	for variantID, v := range fields {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("cart of %q: quantity of %q: %w", userID, variantID, err)
		}
		if qty <= 0 {
			continue
		}
		items = append(items, cart.Item{VariantID: variantID, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].VariantID < items[j].VariantID })
	return items, nil
}

// Add increases the quantity of a variant in the cart.
func (s *CartStore) Add(ctx context.Context, userID, variantID string, qty int) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, key(userID), variantID, int64(qty))
		if s.ttl > 0 {
			p.Expire(ctx, key(userID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("adding to cart of %q: %w", userID, err)
	}
	return nil
}

// Clear empties the cart.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}
