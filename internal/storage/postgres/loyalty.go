package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thangnvgch211384/fshoemate/internal/domain/loyalty"
)

const (
	appendLedgerSQL = `INSERT INTO loyalty_ledger (user_id, order_id, reason, revenue, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, reason) DO NOTHING`

	addPointsSQL = `UPDATE users SET loyalty_points = loyalty_points + $2 WHERE id = $1`
)

var _ loyalty.Ledger = (*LoyaltyLedger)(nil)

// LoyaltyLedger records accruals and keeps the user's balance in step.
type LoyaltyLedger struct {
	pool *pgxpool.Pool
}

// NewLoyaltyLedger returns a LoyaltyLedger that uses the given pool.
func NewLoyaltyLedger(pool *pgxpool.Pool) *LoyaltyLedger {
	return &LoyaltyLedger{pool: pool}
}

// Append inserts the entry and credits the points in one transaction. An
// entry for the same order and reason is left untouched and reported false.
func (l *LoyaltyLedger) Append(ctx context.Context, e loyalty.Entry) (bool, error) {
	var inserted bool
	err := pgx.BeginFunc(ctx, l.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, appendLedgerSQL,
			e.UserID, e.OrderID, e.Reason, e.Revenue, e.Points, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting ledger entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		inserted = true
		if _, err := tx.Exec(ctx, addPointsSQL, e.UserID, e.Points); err != nil {
			return fmt.Errorf("crediting points: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("appending loyalty for order %q: %w", e.OrderID, err)
	}
	return inserted, nil
}
