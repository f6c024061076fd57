package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDetailErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("receive: %w", WithDetails(ErrReferentialIntegrity, map[string]any{"location_id": int64(9)}))
	require.ErrorIs(t, err, ErrReferentialIntegrity)
	require.Equal(t, map[string]any{"location_id": int64(9)}, DetailsOf(err))
	require.Nil(t, DetailsOf(errors.New("plain")))
	require.Nil(t, WithDetails(nil, nil))
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 40, Offset(3, 20))
	_, perPage := NormalizePage(1, 5000)
	require.Equal(t, maxPerPage, perPage)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	require.False(t, ok)
	ctx := ContextWithActor(context.Background(), Actor{ID: 7, Role: "buyer"})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "buyer", actor.Role)
}

func TestKeys(t *testing.T) {
	require.Equal(t, "procure:po:4:v2", OrderSummaryKey(4, 2))
	require.Equal(t, "PO:4:RCPT:abc", ReceiptIdempotencyKey(4, "abc"))
	require.Equal(t, RefID("PO", 1), RefID("PO", 1))
	require.NotEqual(t, RefID("PO", 1), RefID("PO", 2))
}

func TestFitsScale(t *testing.T) {
	require.True(t, FitsScale(decimal.RequireFromString("0.9999")))
	require.True(t, FitsScale(decimal.RequireFromString("1.50000")))
	require.True(t, FitsScale(decimal.NewFromInt(12)))
	require.False(t, FitsScale(decimal.RequireFromString("0.99999")))
	require.False(t, FitsScale(decimal.RequireFromString("0.00004")))
	require.True(t, AllFitScale())
	require.False(t, AllFitScale(decimal.NewFromInt(1), decimal.RequireFromString("-2.12345")))
}
