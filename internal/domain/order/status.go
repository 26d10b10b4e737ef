package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// UpdateStatus moves an order along the fulfillment chain on behalf of an
// administrator. Cancelling through this path runs the full cancellation
// with its compensations but skips the ownership check. Setting the current
// status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (*Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidTransition
	}
	if to == StatusCancelled {
		o, err := s.loadByID(ctx, orderID)()
		if err != nil {
			return nil, err
		}
		if o.Status == StatusCancelled {
			return o, nil
		}
		return s.cancel(ctx, orderID, func(*Order) bool { return true })
	}

	var from Status
	o, changed, err := s.update(ctx, s.loadByID(ctx, orderID), func(o *Order) (bool, error) {
		from = o.Status
		if o.Status == to {
			return false, nil
		}
		if !o.Status.CanTransition(to) {
			return false, ErrInvalidTransition
		}
		o.Status = to
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		zctx.From(ctx).Info("Order status updated",
			zap.String("order_id", o.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	return o, nil
}
