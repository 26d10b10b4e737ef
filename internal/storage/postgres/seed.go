package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/thangnvgch211384/fshoemate/internal/domain/inventory"
	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
	"github.com/thangnvgch211384/fshoemate/internal/domain/user"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name, brand, image) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, brand = EXCLUDED.brand, image = EXCLUDED.image`

	upsertVariantSQL = `INSERT INTO variants (id, product_id, size, color, image, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size, color = EXCLUDED.color,
			image = EXCLUDED.image, price = EXCLUDED.price, stock = EXCLUDED.stock`

	upsertUserSQL = `INSERT INTO users (id, name, email, phone, address) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email,
			phone = EXCLUDED.phone, address = EXCLUDED.address`

	upsertPromotionSQL = `INSERT INTO promotions
		(code, discount_type, value, min_items, description, valid_from, valid_until, max_uses, max_discount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			min_items = EXCLUDED.min_items, description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses, max_discount = EXCLUDED.max_discount, active = TRUE`
)

// Product is a catalog entry with its variants. Variant Name, Brand and
// ProductID are taken from the product.
type Product struct {
	ID       string
	Name     string
	Brand    string
	Image    string
	Variants []inventory.Variant
}

// UpsertProduct writes a product and its variants in one transaction.
func (r *VariantRepository) UpsertProduct(ctx context.Context, p Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Brand, p.Image); err != nil {
			return fmt.Errorf("upserting product %q: %w", p.ID, err)
		}
		for _, v := range p.Variants {
			_, err := tx.Exec(ctx, upsertVariantSQL,
				v.ID, p.ID, v.Size, v.Color, nullString(v.Image), v.Price, v.Stock)
			if err != nil {
				return fmt.Errorf("upserting variant %q: %w", v.ID, err)
			}
		}
		return nil
	})
}

// Upsert creates or updates a user profile.
func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	if _, err := r.pool.Exec(ctx, upsertUserSQL, u.ID, u.Name, u.Email, u.Phone, u.Address); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}

// Upsert writes rules in a single batch. Existing codes are reactivated and
// keep their usage counters.
func (r *PromotionRepository) Upsert(ctx context.Context, rules ...promotion.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	var b pgx.Batch
	for _, rule := range rules {
		b.Queue(upsertPromotionSQL,
			rule.Code, string(rule.DiscountType), rule.Value, rule.MinItems, rule.Description,
			rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.MaxDiscount)
	}
	if err := r.pool.SendBatch(ctx, &b).Close(); err != nil {
		return fmt.Errorf("upserting %d promotions: %w", len(rules), err)
	}
	return nil
}
