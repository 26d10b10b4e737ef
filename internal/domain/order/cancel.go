package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cancel cancels an order on behalf of callerID. An empty callerID cancels a
// guest order. The order must belong to the caller and still be pending or
// processing.
func (s *Service) Cancel(ctx context.Context, orderID, callerID string) (*Order, error) {
	return s.cancel(ctx, orderID, func(o *Order) bool {
		return o.UserID == callerID
	})
}

// cancel claims the cancellation with a compare-and-set write before any
// compensation runs, so concurrent cancellations restore stock only once.
func (s *Service) cancel(ctx context.Context, orderID string, allowed func(o *Order) bool) (*Order, error) {
	ctx = zctx.With(ctx, zap.String("order_id", orderID))
	lg := zctx.From(ctx)

	var prior PaymentStatus
	o, _, err := s.update(ctx, s.loadByID(ctx, orderID), func(o *Order) (bool, error) {
		if !allowed(o) || !o.Status.CanTransition(StatusCancelled) {
			return false, ErrNotCancellable
		}
		prior = o.PaymentStatus
		o.Status = StatusCancelled
		if o.PaymentMethod == PaymentGateway {
			o.PaymentStatus = PaymentFailed
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	// The claim is stored; compensation must finish even if the caller leaves.
	ctx = context.WithoutCancel(ctx)
	s.cancelled.Add(ctx, 1, methodAttr(o.PaymentMethod))

	s.restoreStock(ctx, o)

	if o.PaymentMethod == PaymentGateway && o.PaymentCode() != 0 {
		if err := s.gateway.CancelSession(ctx, o.PaymentCode(), "order cancelled"); err != nil {
			lg.Warn("Cancel payment session", zap.Int64("payment_code", o.PaymentCode()), zap.Error(err))
		}
	}
	if prior == PaymentPaid {
		lg.Warn("Paid order cancelled, manual refund required", zap.String("total", o.Totals.Total.String()))
	}

	if fresh, err := s.orders.Get(ctx, o.ID); err == nil {
		o = fresh
	} else {
		lg.Warn("Re-read cancelled order", zap.Error(err))
	}
	lg.Info("Order cancelled")

	s.notify(ctx, o, "order_cancellation", s.notifier.SendOrderCancellation)
	return o, nil
}

// restoreStock returns every line's quantity to inventory. All lines are
// attempted; failures are logged.
func (s *Service) restoreStock(ctx context.Context, o *Order) {
	lg := zctx.From(ctx)

	var g errgroup.Group
	g.SetLimit(s.cfg.StockConcurrency)
	for _, li := range o.Items {
		g.Go(func() error {
			if err := s.inventory.Increment(ctx, li.VariantID, li.Quantity); err != nil {
				lg.Error("Restore stock",
					zap.String("variant_id", li.VariantID),
					zap.Int("quantity", li.Quantity),
					zap.Error(err),
				)
				return errors.Wrapf(err, "restore variant %s", li.VariantID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lg.Warn("Inventory does not fully reflect cancellation")
	}
}
