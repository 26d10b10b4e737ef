package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("ord-1", "u1", PaymentCOD, 0)
	f.placedOrder("ord-2", "", PaymentCOD, 0)

	o, err := f.svc.Get(context.Background(), "ord-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)

	_, err = f.svc.Get(context.Background(), "ord-1", "u2")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(context.Background(), "ord-2", "")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(context.Background(), "ord-9", "u1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	older := f.placedOrder("ord-1", "u1", PaymentCOD, 0)
	newer := f.placedOrder("ord-2", "u1", PaymentCOD, 0)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	f.orders.put(newer)
	f.placedOrder("ord-3", "u2", PaymentCOD, 0)

	orders, err := f.svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ord-2", orders[0].ID)
	assert.Equal(t, "ord-1", orders[1].ID)
}

func TestLookupGuest(t *testing.T) {
	f := newFixture(t)
	f.placedOrder("7f3c9e2a-0000-4000-8000-00000abc12ef", "", PaymentCOD, 0)
	f.placedOrder("7f3c9e2a-0000-4000-8000-00000abc99ff", "u1", PaymentCOD, 0)

	for _, tt := range []struct {
		name       string
		email      string
		identifier string
		wantID     string
	}{
		{name: "ShortCodeLower", email: "guest@example.com", identifier: "c12ef", wantID: ""},
		{name: "ShortCode", email: "guest@example.com", identifier: "abc12e", wantID: ""},
		{name: "ShortCodeSuffix", email: "guest@example.com", identifier: "bc12ef", wantID: "7f3c9e2a-0000-4000-8000-00000abc12ef"},
		{name: "ShortCodeUpper", email: "guest@example.com", identifier: "BC12EF", wantID: "7f3c9e2a-0000-4000-8000-00000abc12ef"},
		{name: "FullID", email: "guest@example.com", identifier: "7f3c9e2a-0000-4000-8000-00000abc12ef", wantID: "7f3c9e2a-0000-4000-8000-00000abc12ef"},
		{name: "WrongEmail", email: "other@example.com", identifier: "bc12ef"},
		{name: "EmailCaseMismatch", email: "Guest@example.com", identifier: "bc12ef"},
		{name: "FullIDWrongEmail", email: "other@example.com", identifier: "7f3c9e2a-0000-4000-8000-00000abc12ef"},
		{name: "OwnedOrderNotExposed", email: "guest@example.com", identifier: "7f3c9e2a-0000-4000-8000-00000abc99ff"},
		{name: "Empty", email: "guest@example.com", identifier: ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			o, err := f.svc.LookupGuest(context.Background(), tt.email, tt.identifier)
			if tt.wantID == "" {
				require.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, o.ID)
		})
	}
}
