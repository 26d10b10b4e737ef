// Package notify publishes order notification events. Rendering and delivery
// of the actual emails happen in a downstream consumer.
package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
)

// Event types.
const (
	TypeOrderConfirmation = "order_confirmation"
	TypeOrderReceived     = "order_received"
	TypeOrderCancellation = "order_cancellation"
)

// DefaultTopic is the topic order notifications are written to.
const DefaultTopic = "order-notifications"

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// writerBatchTimeout bounds how long a partially filled batch waits before
// it is flushed.
const writerBatchTimeout = 10 * time.Millisecond

// NewWriter creates an asynchronous Kafka writer for topic. WriteMessages
// only enqueues; delivery failures are reported to lg.
func NewWriter(lg *zap.Logger, brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		BatchTimeout:           writerBatchTimeout,
		Completion: func(msgs []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range msgs {
				lg.Error("Deliver notification",
					zap.String("topic", topic),
					zap.ByteString("order_id", m.Key),
					zap.Error(err),
				)
			}
		},
	}
}

// Publisher implements order.Notifier on top of Kafka. Messages are keyed by
// order id so events of one order stay ordered.
type Publisher struct {
	w   MessageWriter
	now func() time.Time
}

var _ order.Notifier = (*Publisher)(nil)

// NewPublisher creates a Publisher writing through w.
func NewPublisher(w MessageWriter) *Publisher {
	return &Publisher{w: w, now: time.Now}
}

func (p *Publisher) SendOrderConfirmation(ctx context.Context, o *order.Order, to order.Customer) error {
	return p.publish(ctx, TypeOrderConfirmation, o, to)
}

func (p *Publisher) SendOrderReceived(ctx context.Context, o *order.Order, to order.Customer) error {
	return p.publish(ctx, TypeOrderReceived, o, to)
}

func (p *Publisher) SendOrderCancellation(ctx context.Context, o *order.Order, to order.Customer) error {
	return p.publish(ctx, TypeOrderCancellation, o, to)
}

func (p *Publisher) publish(ctx context.Context, typ string, o *order.Order, to order.Customer) error {
	if to.Email == "" {
		return errors.Errorf("%s: recipient has no email", typ)
	}
	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: Encode(typ, o, to, p.now()),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(typ)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s", typ)
	}
	zctx.From(ctx).Debug("Notification published",
		zap.String("type", typ),
		zap.String("order_id", o.ID),
	)
	return nil
}

// Encode renders the event payload.
func Encode(typ string, o *order.Order, to order.Customer, at time.Time) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(typ) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("short_code", func(e *jx.Encoder) { e.Str(o.ShortCode()) })
		e.Field("guest", func(e *jx.Encoder) { e.Bool(o.IsGuest()) })
		e.Field("recipient", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(to.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(to.Email) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(to.Phone) })
				e.Field("address", func(e *jx.Encoder) { e.Str(to.Address) })
			})
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(li.Snapshot.Name) })
						e.Field("brand", func(e *jx.Encoder) { e.Str(li.Snapshot.Brand) })
						e.Field("size", func(e *jx.Encoder) { e.Str(li.Snapshot.Size) })
						e.Field("color", func(e *jx.Encoder) { e.Str(li.Snapshot.Color) })
						e.Field("image", func(e *jx.Encoder) { e.Str(li.Snapshot.Image) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
						e.Field("price", func(e *jx.Encoder) { e.Str(li.Snapshot.Price.String()) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(o.Totals.Subtotal.String()) })
		e.Field("discount", func(e *jx.Encoder) { e.Str(o.Totals.Discount.String()) })
		e.Field("shipping_fee", func(e *jx.Encoder) { e.Str(o.Totals.ShippingFee.String()) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Totals.Total.String()) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		if o.Gateway != nil && o.Gateway.CheckoutURL != "" {
			e.Field("checkout_url", func(e *jx.Encoder) { e.Str(o.Gateway.CheckoutURL) })
		}
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(at.UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}

// Logger implements order.Notifier by logging. It is used when no broker is
// configured.
type Logger struct{}

var _ order.Notifier = Logger{}

func (Logger) SendOrderConfirmation(ctx context.Context, o *order.Order, to order.Customer) error {
	return logEvent(ctx, TypeOrderConfirmation, o, to)
}

func (Logger) SendOrderReceived(ctx context.Context, o *order.Order, to order.Customer) error {
	return logEvent(ctx, TypeOrderReceived, o, to)
}

func (Logger) SendOrderCancellation(ctx context.Context, o *order.Order, to order.Customer) error {
	return logEvent(ctx, TypeOrderCancellation, o, to)
}

func logEvent(ctx context.Context, typ string, o *order.Order, to order.Customer) error {
	zctx.From(ctx).Info("Notification",
		zap.String("type", typ),
		zap.String("order_id", o.ID),
		zap.String("to", to.Email),
		zap.String("total", o.Totals.Total.String()),
	)
	return nil
}
