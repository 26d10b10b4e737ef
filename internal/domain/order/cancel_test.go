package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancel_PendingRestoresStock(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 3), newVariant("B", 50000, 2))
	f.placedOrder("ord-1", "u1", PaymentCOD, 0)

	o, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, 5, f.inventory.stock("A"))
	assert.Equal(t, 3, f.inventory.stock("B"))
	assert.Empty(t, f.gateway.cancelled)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "cancellation", f.notifier.sent[0].Kind)
	assert.Equal(t, "lan@example.com", f.notifier.sent[0].To.Email)
}

func TestCancel_GatewayOrder(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	o := f.placedOrder("ord-1", "u1", PaymentGateway, 77)
	o.PaymentStatus = PaymentPaid
	o.Status = StatusProcessing
	f.orders.put(o)

	got, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, PaymentFailed, got.PaymentStatus)
	assert.Equal(t, []int64{77}, f.gateway.cancelled)
	assert.Equal(t, 2, f.inventory.stock("A"))
}

func TestCancel_GatewayCancelFailureStillCancels(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)
	f.gateway.cancelErr = errBoom

	o, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Equal(t, 2, f.inventory.stock("A"))
	assert.Equal(t, 1, f.inventory.stock("B"))
}

func TestCancel_GatewayWithoutSession(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentGateway, 0)

	o, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	assert.Empty(t, f.gateway.cancelled)
}

func TestCancel_NotCancellable(t *testing.T) {
	for _, status := range []Status{StatusShipped, StatusDelivered, StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
			o := f.placedOrder("ord-1", "u1", PaymentCOD, 0)
			o.Status = status
			f.orders.put(o)

			_, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
			require.ErrorIs(t, err, ErrNotCancellable)
			assert.Equal(t, 0, f.inventory.stock("A"))
			assert.Empty(t, f.notifier.sent)
		})
	}
}

func TestCancel_Ownership(t *testing.T) {
	for _, tt := range []struct {
		name    string
		owner   string
		caller  string
		wantErr error
	}{
		{name: "OtherUser", owner: "u1", caller: "u2", wantErr: ErrNotCancellable},
		{name: "GuestCallerOnOwnedOrder", owner: "u1", caller: "", wantErr: ErrNotCancellable},
		{name: "UserCallerOnGuestOrder", owner: "", caller: "u1", wantErr: ErrNotCancellable},
		{name: "GuestOnGuestOrder", owner: "", caller: ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
			f.placedOrder("ord-1", tt.owner, PaymentCOD, 0)

			_, err := f.svc.Cancel(context.Background(), "ord-1", tt.caller)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, f.inventory.stock("A"))
		})
	}
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), "missing", "u1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 404, StatusCode(err))
}

func TestCancel_TwiceRestoresStockOnce(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentCOD, 0)

	_, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.ErrorIs(t, err, ErrNotCancellable)

	assert.Equal(t, 2, f.inventory.stock("A"))
	assert.Equal(t, 1, f.inventory.stock("B"))
}

func TestCancel_AfterWebhookPaid(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)

	require.True(t, f.svc.ReceiveWebhook(context.Background(), paidCallback(77)).Success)
	o, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)
	// Loyalty from the confirmed payment is not duplicated by the cancellation.
	assert.Len(t, f.loyalty.earned, 1)
}

func TestCancel_PersistFailure(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 0), newVariant("B", 50000, 0))
	f.placedOrder("ord-1", "u1", PaymentCOD, 0)
	f.orders.updateErr = errBoom

	_, err := f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, f.inventory.stock("A"))
	assert.Empty(t, f.notifier.sent)
}

func TestCancel_ClientGoneAfterClaim(t *testing.T) {
	f := newFixture(t, newVariant("A", 100000, 3), newVariant("B", 50000, 2))
	f.placedOrder("ord-1", "u1", PaymentGateway, 77)
	f.inventory.honorCtx = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.orders.afterWrite = cancel

	o, err := f.svc.Cancel(ctx, "ord-1", "u1")
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 5, f.inventory.stock("A"))
	assert.Equal(t, 3, f.inventory.stock("B"))
	assert.Equal(t, []int64{77}, f.gateway.cancelled)
	assert.Equal(t, []string{"cancellation"}, f.notifier.kinds())

	// Stock was restored once; the cancellation cannot be replayed.
	_, err = f.svc.Cancel(context.Background(), "ord-1", "u1")
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 5, f.inventory.stock("A"))
}
