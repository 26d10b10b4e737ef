package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thangnvgch211384/fshoemate/internal/domain/inventory"
)

const (
	getVariantsSQL = `SELECT v.id, v.product_id, p.name, p.brand, v.size, v.color,
		COALESCE(v.image, p.image), v.price, v.stock
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)`

	decrementStockSQL = `UPDATE variants SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
	incrementStockSQL = `UPDATE variants SET stock = stock + $2 WHERE id = $1`
	variantExistsSQL  = `SELECT EXISTS (SELECT 1 FROM variants WHERE id = $1)`

	productNamesSQL = `SELECT id, name FROM products WHERE id = ANY($1)`
)

var _ inventory.Store = (*VariantRepository)(nil)

// VariantRepository implements inventory.Store backed by PostgreSQL.
type VariantRepository struct {
	pool *pgxpool.Pool
}

// NewVariantRepository returns a VariantRepository that uses the given pool.
func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// GetVariants returns the variants matching ids joined with their product.
// Unknown ids are omitted.
func (r *VariantRepository) GetVariants(ctx context.Context, ids []string) ([]inventory.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting variants: %w", err)
	}
	return pgx.CollectRows(rows, scanVariant)
}

// Decrement removes qty units if at least qty are in stock.
func (r *VariantRepository) Decrement(ctx context.Context, variantID string, qty int) error {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, variantID, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of %q: %w", variantID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, variantID, inventory.ErrInsufficientStock)
	}
	return nil
}

// Increment returns qty units to stock.
func (r *VariantRepository) Increment(ctx context.Context, variantID string, qty int) error {
	tag, err := r.pool.Exec(ctx, incrementStockSQL, variantID, qty)
	if err != nil {
		return fmt.Errorf("incrementing stock of %q: %w", variantID, err)
	}
	if tag.RowsAffected() == 0 {
		return inventory.ErrNotFound
	}
	return nil
}

// ProductNames maps product ids to their current names.
func (r *VariantRepository) ProductNames(ctx context.Context, productIDs []string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, productNamesSQL, productIDs)
	if err != nil {
		return nil, fmt.Errorf("getting product names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(productIDs))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning product name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *VariantRepository) missingOr(ctx context.Context, variantID string, err error) error {
	var exists bool
	if qerr := r.pool.QueryRow(ctx, variantExistsSQL, variantID).Scan(&exists); qerr != nil {
		return errors.Wrapf(qerr, "checking variant %q", variantID)
	}
	if !exists {
		return inventory.ErrNotFound
	}
	return err
}

func scanVariant(row pgx.CollectableRow) (inventory.Variant, error) {
	var (
		v     inventory.Variant
		stock int32
	)
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Name, &v.Brand, &v.Size, &v.Color,
		&v.Image, &v.Price, &stock,
	)
	v.Stock = int(stock)
	return v, err
}
