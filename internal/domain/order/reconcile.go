package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/loyalty"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
)

// Ack is the acknowledgement returned to the gateway for a callback.
type Ack struct {
	Success bool
	Message string
}

// Webhook outcomes, also used as metric attribute values.
const (
	outcomeProbe      = "probe"
	outcomeUnverified = "unverified"
	outcomeUnknown    = "unknown_order"
	outcomePaid       = "paid"
	outcomeFailed     = "failed"
	outcomeDuplicate  = "duplicate"
	outcomeRefundDue  = "refund_due"
	outcomeMalformed  = "malformed"
	outcomeError      = "error"
)

// ReceiveWebhook applies a payment callback to its order. It is idempotent:
// a redelivered callback changes nothing and triggers no side effects. Only a
// storage failure yields a negative acknowledgement, which makes the gateway
// retry.
func (s *Service) ReceiveWebhook(ctx context.Context, cb payment.Callback) Ack {
	lg := zctx.From(ctx).With(
		zap.Int64("payment_code", cb.OrderCode),
		zap.String("callback_code", cb.Code),
	)

	outcome, err := s.reconcile(zctx.Base(ctx, lg), cb)
	s.webhooks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if err != nil {
		lg.Error("Reconcile payment callback", zap.Error(err))
		return Ack{Success: false, Message: "internal error"}
	}
	lg.Info("Payment callback handled", zap.String("outcome", outcome))
	return Ack{Success: true, Message: "ok"}
}

// RejectWebhook acknowledges a callback body that could not be decoded.
// Gateway connectivity checks look the same as broken payloads, and neither
// gets better on redelivery, so the acknowledgement is neutral.
func (s *Service) RejectWebhook(ctx context.Context, cause error) Ack {
	s.webhooks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeMalformed)))
	zctx.From(ctx).Warn("Malformed payment callback", zap.Error(cause))
	return Ack{Success: true, Message: "ok"}
}

func (s *Service) reconcile(ctx context.Context, cb payment.Callback) (string, error) {
	if cb.OrderCode == 0 {
		return outcomeProbe, nil
	}
	if s.verifier != nil && !s.verifier.VerifyCallback(cb) {
		zctx.From(ctx).Warn("Callback signature mismatch, ignoring")
		return outcomeUnverified, nil
	}

	outcome := outcomeDuplicate
	load := func() (*Order, error) {
		o, err := s.orders.GetByPaymentCode(ctx, cb.OrderCode)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, errors.Wrap(err, "get order by payment code")
		}
		return o, nil
	}
	o, changed, err := s.update(ctx, load, func(o *Order) (bool, error) {
		outcome = outcomeDuplicate
		if o.PaymentStatus != PaymentPending {
			if cb.Success() && o.PaymentStatus != PaymentPaid && o.Status == StatusCancelled {
				outcome = outcomeRefundDue
			}
			return false, nil
		}
		if !cb.Success() {
			outcome = outcomeFailed
			o.PaymentStatus = PaymentFailed
			return true, nil
		}
		if o.Status == StatusCancelled {
			// Cancellation already won; money captured now must be refunded.
			outcome = outcomeRefundDue
			return false, nil
		}
		outcome = outcomePaid
		o.PaymentStatus = PaymentPaid
		if o.Status == StatusPending {
			o.Status = StatusProcessing
		}
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return outcomeUnknown, nil
		}
		return outcomeError, err
	}

	ctx = zctx.With(ctx, zap.String("order_id", o.ID))
	if outcome == outcomeRefundDue {
		zctx.From(ctx).Warn("Payment received for cancelled order, manual refund required",
			zap.Int64("amount", cb.Amount),
			zap.String("reference", cb.Reference),
		)
	}
	if changed && outcome == outcomePaid {
		s.earnPoints(ctx, o, loyalty.ReasonPaymentConfirmed)
		s.notify(ctx, o, "order_confirmation", s.notifier.SendOrderConfirmation)
	}
	return outcome, nil
}
