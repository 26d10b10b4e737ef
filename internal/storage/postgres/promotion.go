package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
)

const (
	getPromotionByCodeSQL = `SELECT code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, uses, max_discount
		FROM promotions WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementPromotionUsesSQL = `UPDATE promotions SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindByCode looks up an active promotion by its code (case-insensitive).
// Returns promotion.ErrInvalidCode when no matching active promotion exists.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromotionByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPromotionRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrInvalidCode
		}
		return nil, fmt.Errorf("finding promotion %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically bumps the usage counter of a promotion.
func (r *PromotionRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, incrementPromotionUsesSQL, code); err != nil {
		return fmt.Errorf("incrementing uses of promotion %q: %w", code, err)
	}
	return nil
}

func scanPromotionRule(row pgx.CollectableRow) (promotion.Rule, error) {
	var (
		rule         promotion.Rule
		discountType string
		minItems     int32
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &minItems, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses, &rule.MaxDiscount,
	)
	rule.DiscountType = promotion.DiscountType(discountType)
	rule.MinItems = int(minItems)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	return rule, err
}
