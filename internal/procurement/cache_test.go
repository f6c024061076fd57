package procurement

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

func newCachedFixture(t *testing.T) (*fixture, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture()
	f.svc.WithCache(NewSummaryCache(client, time.Minute, nil))
	return f, mr
}

func TestSummaryServedFromCacheUntilVersionMoves(t *testing.T) {
	f, mr := newCachedFixture(t)
	ctx := context.Background()
	po := f.createOrder(t, 10, 100, 5, 11, 20, 2)

	summary, err := f.svc.Summary(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, "initial", summary.Order.Terms.Notes)
	require.True(t, mr.Exists(shared.OrderSummaryKey(po.ID, 1)))
	version, err := mr.Get(shared.OrderVersionKey(po.ID))
	require.NoError(t, err)
	require.Equal(t, "1", version)

	f.repo.mu.Lock()
	stored := f.repo.orders[po.ID]
	stored.Terms.Notes = "edited behind the cache"
	f.repo.orders[po.ID] = stored
	f.repo.mu.Unlock()

	summary, err = f.svc.Summary(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, "initial", summary.Order.Terms.Notes)

	_, err = f.svc.SendToSupplier(actorCtx(), po.ID)
	require.NoError(t, err)

	summary, err = f.svc.Summary(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSentToSupplier, summary.Order.Status)
	require.Equal(t, "edited behind the cache", summary.Order.Terms.Notes)
	require.True(t, mr.Exists(shared.OrderSummaryKey(po.ID, 2)))
}

func TestSummaryFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture()
	f.svc.WithCache(NewSummaryCache(client, time.Minute, nil))
	po := f.createOrder(t, 10, 1, 5)

	summary, err := f.svc.Summary(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, po.ID, summary.Order.ID)

	_, err = f.svc.Summary(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildSummary(t *testing.T) {
	po := PurchaseOrder{
		ID:     9,
		Status: StatusPartiallyDelivered,
		Terms: Terms{
			Details:         []Detail{line(10, 4, 0, 0)},
			AdditionalCosts: []AdditionalCost{{Description: "freight", Amount: qty(1234)}},
		},
	}
	po.Terms.Details[0].UnitPrice = decimalFromString(t, "0.05")
	po.Terms.Recalculate()

	summary := buildSummary(po, "IDR")
	require.Equal(t, "IDR 1,234.50", summary.DisplayTotal)
	require.True(t, summary.Discrepancy)
	require.False(t, summary.Negotiating)
	require.Equal(t, []LineProgress{{ProductID: 10, Ordered: "10", Accounted: "4", Outstanding: "6"}}, summary.Lines)
}

func TestFormatAmountKeepsLargeTotalsExact(t *testing.T) {
	cases := map[string]string{
		"99999999999999.9999": "100,000,000,000,000.00",
		"12345678901234.5678": "12,345,678,901,234.57",
		"9007199254740993.01": "9,007,199,254,740,993.01",
		"-1234.565":           "-1,234.57",
		"-0.004":              "0.00",
		"0":                   "0.00",
	}
	for raw, want := range cases {
		require.Equal(t, want, formatAmount(decimalFromString(t, raw)), raw)
	}
}
