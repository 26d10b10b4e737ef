package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thangnvgch211384/fshoemate/internal/domain/loyalty"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
)

func paidCallback(code int64) payment.Callback {
	return payment.Callback{Code: payment.SuccessCode, Description: "success", OrderCode: code, Amount: 280000}
}

func TestReceiveWebhook_ProbeWithoutCode(t *testing.T) {
	f := newFixture(t)

	ack := f.svc.ReceiveWebhook(context.Background(), payment.Callback{Code: "00"})
	assert.True(t, ack.Success)
	assert.Zero(t, f.orders.updates)
}

func TestReceiveWebhook_UnknownCode(t *testing.T) {
	f := newFixture(t)

	ack := f.svc.ReceiveWebhook(context.Background(), paidCallback(999))
	assert.True(t, ack.Success)
	assert.Zero(t, f.orders.updates)
}

func TestReceiveWebhook_Paid(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	ack := f.svc.ReceiveWebhook(context.Background(), paidCallback(77))
	require.True(t, ack.Success)

	o, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, StatusProcessing, o.Status)

	require.Len(t, f.loyalty.earned, 1)
	assert.Equal(t, loyalty.ReasonPaymentConfirmed, f.loyalty.earned[0].Reason)
	assert.Equal(t, []string{"confirmation"}, f.notifier.kinds())
}

func TestReceiveWebhook_PaidTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)
	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)

	assert.Len(t, f.loyalty.earned, 1)
	assert.Equal(t, []string{"confirmation"}, f.notifier.kinds())
}

func TestReceiveWebhook_GuestPaidSkipsLoyalty(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "", PaymentGateway, 77)

	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)

	assert.Empty(t, f.loyalty.earned)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "guest@example.com", f.notifier.sent[0].To.Email)
}

func TestReceiveWebhook_Failed(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	ack := f.svc.ReceiveWebhook(context.Background(), payment.Callback{Code: "01", OrderCode: 77})
	require.True(t, ack.Success)

	o, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, f.loyalty.earned)
	assert.Empty(t, f.notifier.sent)
}

func TestReceiveWebhook_FailureAfterPaidIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)
	require.True(t, f.svc.ReceiveWebhook(context.Background(), payment.Callback{Code: "01", OrderCode: 77}).Success)

	o, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
}

func TestReceiveWebhook_CancelledOrderStaysCancelled(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	_, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)

	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)

	o, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Empty(t, f.loyalty.earned)
	assert.Equal(t, []string{"cancellation"}, f.notifier.kinds())
}

func TestReceiveWebhook_RetriesOnConflict(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)
	f.orders.conflicts = 2

	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)

	o, err := f.orders.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	assert.Equal(t, 3, f.orders.updates)
	assert.Len(t, f.loyalty.earned, 1)
}

func TestReceiveWebhook_StorageFailureIsNegativeAck(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)
	f.orders.updateErr = errBoom

	ack := f.svc.ReceiveWebhook(context.Background(), paidCallback(77))
	assert.False(t, ack.Success)
	assert.Empty(t, f.loyalty.earned)
	assert.Empty(t, f.notifier.sent)
}

func TestReceiveWebhook_Verifier(t *testing.T) {
	for _, tt := range []struct {
		name     string
		verified bool
		want     PaymentStatus
	}{
		{name: "Valid", verified: true, want: PaymentPaid},
		{name: "Forged", verified: false, want: PaymentPending},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.verifier = mockVerifier(tt.verified)
			f.svc = f.build(t)
			f.placedOrder("ord-1", "u1", PaymentGateway, 77)

			ack := f.svc.ReceiveWebhook(context.Background(), paidCallback(77))
			assert.True(t, ack.Success)

			o, err := f.orders.Get(context.Background(), "ord-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.PaymentStatus)
		})
	}
}

func TestRejectWebhook_NeutralAck(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	ack := f.svc.RejectWebhook(context.Background(), errBoom)
	assert.Equal(t, Ack{Success: true, Message: "ok"}, ack)
	assert.Zero(t, f.orders.updates)
	assert.Empty(t, f.loyalty.earned)
	assert.Empty(t, f.notifier.sent)
}
