package loyalty

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	entries map[string]Entry
	err     error
}

func (m *mockLedger) Append(_ context.Context, e Entry) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.entries == nil {
		m.entries = make(map[string]Entry)
	}
	key := e.OrderID + "/" + e.Reason
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = e
	return true, nil
}

func TestService_Points(t *testing.T) {
	s := NewService(&mockLedger{}, decimal.NewFromInt(10000))

	tests := []struct {
		revenue string
		want    int64
	}{
		{"0", 0},
		{"-5000", 0},
		{"9999", 0},
		{"10000", 1},
		{"280000", 28},
		{"285500", 28},
	}
	for _, tt := range tests {
		t.Run(tt.revenue, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Points(decimal.RequireFromString(tt.revenue)))
		})
	}
}

func TestService_EarnPointsIdempotent(t *testing.T) {
	ledger := &mockLedger{}
	s := NewService(ledger, decimal.NewFromInt(10000))
	ctx := context.Background()

	require.NoError(t, s.EarnPoints(ctx, "u1", "o1", decimal.NewFromInt(280000), ReasonOrderPlaced))
	require.NoError(t, s.EarnPoints(ctx, "u1", "o1", decimal.NewFromInt(280000), ReasonOrderPlaced))

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, int64(28), ledger.entries["o1/"+ReasonOrderPlaced].Points)
}

func TestService_EarnPointsErrors(t *testing.T) {
	s := NewService(&mockLedger{err: errors.New("db down")}, decimal.NewFromInt(1000))

	err := s.EarnPoints(context.Background(), "", "o1", decimal.NewFromInt(5000), ReasonOrderPlaced)
	require.Error(t, err)

	err = s.EarnPoints(context.Background(), "u1", "o1", decimal.NewFromInt(5000), ReasonOrderPlaced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append ledger entry")
}
