package procurement

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/internal/inventory"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

func receive(productID, ok, damaged, missing int64) ReceiptLine {
	return ReceiptLine{ProductID: productID, QtyOK: qty(ok), QtyDamaged: qty(damaged), QtyMissing: qty(missing)}
}

func TestReceiptsAccumulateToFullyReceived(t *testing.T) {
	f := newFixture()
	ctx := actorCtx()
	po := f.confirmedOrder(t, 10, 100, 5)

	receipt, updated, err := f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 60, 0, 0)}})
	require.NoError(t, err)
	require.Equal(t, defaultLocation, receipt.LocationID)
	require.Equal(t, int64(42), receipt.ReceivingUserID)
	require.Equal(t, StatusPartiallyDelivered, updated.Status)
	require.True(t, updated.Terms.Details[0].ReceivedQuantity.Equal(qty(60)))
	require.NotNil(t, updated.StatusDerivedAt)

	_, updated, err = f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, LocationID: 2, Lines: []ReceiptLine{receive(10, 40, 0, 0)}})
	require.NoError(t, err)
	require.Equal(t, StatusFullyReceived, updated.Status)

	stored, err := f.repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.True(t, stored.Terms.Details[0].ReceivedQuantity.Equal(qty(100)))
	require.Equal(t, StatusFullyReceived, stored.Status)
	require.Equal(t, updated.Version, stored.Version)

	receipts, err := f.svc.ListReceipts(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	require.Equal(t, 2, f.ledger.count())
	require.Equal(t, inventory.KindInboundOK, f.ledger.entries[1].Kind)
	require.Equal(t, int64(2), f.ledger.entries[1].LocationID)

	completed, err := f.svc.Complete(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.True(t, completed.Status.IsTerminal())
}

func TestReceiptOverrunRejectedWithoutLedgerChange(t *testing.T) {
	f := newFixture()
	po := f.confirmedOrder(t, 10, 50, 5)

	_, _, err := f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 30, 30, 0)}})
	require.ErrorIs(t, err, ErrQuantityOverrun)
	details := shared.DetailsOf(err)
	require.Equal(t, "60", details["requested"])
	require.Equal(t, "50", details["outstanding"])
	require.Equal(t, 0, f.ledger.count())

	stored, err := f.repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.True(t, stored.Terms.Details[0].Accounted().IsZero())
	require.Equal(t, StatusConfirmedBySupplier, stored.Status)
	receipts, err := f.repo.ListReceipts(context.Background(), po.ID)
	require.NoError(t, err)
	require.Empty(t, receipts)
}

func TestReceiptRejectsWholeDeliveryOnOneBadLine(t *testing.T) {
	f := newFixture()
	po := f.confirmedOrder(t, 10, 50, 5, 11, 10, 1)

	_, _, err := f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{
		receive(10, 20, 0, 0),
		receive(11, 11, 0, 0),
	}})
	require.ErrorIs(t, err, ErrQuantityOverrun)
	require.Equal(t, 0, f.ledger.count())
	stored, err := f.repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	for _, d := range stored.Terms.Details {
		require.True(t, d.Accounted().IsZero())
	}
}

func TestReceiptValidation(t *testing.T) {
	f := newFixture()
	ctx := actorCtx()
	po := f.confirmedOrder(t, 10, 50, 5)

	cases := []struct {
		name  string
		lines []ReceiptLine
		want  error
	}{
		{name: "no lines", want: ErrEmptyReceipt},
		{name: "all zero", lines: []ReceiptLine{receive(10, 0, 0, 0)}, want: ErrEmptyReceipt},
		{name: "negative", lines: []ReceiptLine{receive(10, -1, 2, 0)}, want: ErrValidation},
		{name: "duplicate", lines: []ReceiptLine{receive(10, 1, 0, 0), receive(10, 1, 0, 0)}, want: ErrValidation},
		{name: "unknown product", lines: []ReceiptLine{receive(99, 1, 0, 0)}, want: ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: tc.lines})
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Equal(t, 0, f.ledger.count())

	_, _, err := f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, LocationID: 77, Lines: []ReceiptLine{receive(10, 1, 0, 0)}})
	require.ErrorIs(t, err, shared.ErrReferentialIntegrity)
	_, _, err = f.svc.ReceiveGoods(context.Background(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 1, 0, 0)}})
	require.ErrorIs(t, err, shared.ErrActorRequired)
}

func TestReceiptRejectsQuantitiesBeyondStoredScale(t *testing.T) {
	f := newFixture()
	ctx := actorCtx()
	po := f.confirmedOrder(t, 10, 1, 5)

	for _, raw := range []string{"0.99999", "0.00004"} {
		line := ReceiptLine{ProductID: 10, QtyOK: decimal.RequireFromString(raw)}
		_, _, err := f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{line}})
		require.ErrorIs(t, err, ErrValidation, raw)
		require.Equal(t, raw, shared.DetailsOf(err)["qty_ok"])
	}
	require.Equal(t, 0, f.ledger.count())

	_, updated, err := f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{
		{ProductID: 10, QtyOK: decimal.RequireFromString("0.99990")},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyDelivered, updated.Status)

	_, updated, err = f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{
		{ProductID: 10, QtyOK: decimal.RequireFromString("0.0001")},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusFullyReceived, updated.Status)
	require.Equal(t, updated.Status, DeriveStatus(updated.Terms.Details, nil))
}

func TestReceiptRequiresConfirmedOrder(t *testing.T) {
	f := newFixture()
	po := f.createOrder(t, 10, 50, 5)

	_, _, err := f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 1, 0, 0)}})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, string(StatusPending), shared.DetailsOf(err)["current"])
}

func TestReceiptLedgerEntriesPerCondition(t *testing.T) {
	f := newFixture()
	po := f.confirmedOrder(t, 10, 100, 5)

	_, updated, err := f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 90, 5, 5)}})
	require.NoError(t, err)
	require.Equal(t, StatusFullyReceived, updated.Status)

	require.Equal(t, 3, f.ledger.count())
	kinds := []inventory.MovementKind{f.ledger.entries[0].Kind, f.ledger.entries[1].Kind, f.ledger.entries[2].Kind}
	require.Equal(t, []inventory.MovementKind{inventory.KindInboundOK, inventory.KindInboundDamaged, inventory.KindMissingReport}, kinds)
	for _, e := range f.ledger.entries {
		require.Equal(t, po.ID, e.PurchaseOrderID)
		require.NotZero(t, e.ReceiptID)
	}

	summary, err := f.svc.Summary(context.Background(), po.ID)
	require.NoError(t, err)
	require.True(t, summary.Discrepancy)
}

func TestReceiptIdempotencyKey(t *testing.T) {
	f := newFixture()
	ctx := actorCtx()
	po := f.confirmedOrder(t, 10, 100, 5)
	input := ReceiptInput{PurchaseOrderID: po.ID, IdempotencyKey: "dock-7-0001", Lines: []ReceiptLine{receive(10, 10, 0, 0)}}

	_, _, err := f.svc.ReceiveGoods(ctx, input)
	require.NoError(t, err)
	_, _, err = f.svc.ReceiveGoods(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	stored, err := f.repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.True(t, stored.Terms.Details[0].ReceivedQuantity.Equal(qty(10)))
	require.Equal(t, 1, f.ledger.count())
}

func TestConcurrentReceiptsExactlyOneOverruns(t *testing.T) {
	f := newFixture()
	po := f.confirmedOrder(t, 10, 100, 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 60, 0, 0)}})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrQuantityOverrun)
			failed++
		}
	}
	require.Equal(t, 1, failed)
	stored, err := f.repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.True(t, stored.Terms.Details[0].ReceivedQuantity.Equal(qty(60)))
}

func TestSupplierSolutionMovesToAwaitingDelivery(t *testing.T) {
	f := newFixture()
	ctx := actorCtx()
	po := f.confirmedOrder(t, 10, 100, 5)

	_, err := f.svc.RecordSupplierSolution(ctx, po.ID, SolutionInput{Type: SolutionFutureDelivery})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 60, 0, 10)}})
	require.NoError(t, err)

	_, err = f.svc.RecordSupplierSolution(ctx, po.ID, SolutionInput{Type: "REFUND"})
	require.ErrorIs(t, err, ErrValidation)

	updated, err := f.svc.RecordSupplierSolution(ctx, po.ID, SolutionInput{Type: SolutionFutureDelivery, Details: "remaining 30 next week"})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingFutureDelivery, updated.Status)
	require.Equal(t, int64(42), updated.Solution.RecordedBy)

	_, updated, err = f.svc.ReceiveGoods(ctx, ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 30, 0, 0)}})
	require.NoError(t, err)
	require.Equal(t, StatusFullyReceived, updated.Status)
}

func TestAuditStatusesRepairsDrift(t *testing.T) {
	f := newFixture()
	po := f.confirmedOrder(t, 10, 100, 5)
	_, _, err := f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 40, 0, 0)}})
	require.NoError(t, err)

	drifts, err := f.svc.AuditStatuses(context.Background(), false)
	require.NoError(t, err)
	require.Empty(t, drifts)

	f.repo.mu.Lock()
	stored := f.repo.orders[po.ID]
	stored.Status = StatusConfirmedBySupplier
	f.repo.orders[po.ID] = stored
	f.repo.mu.Unlock()

	reg := prometheus.NewRegistry()
	f.svc.WithMetrics(NewMetrics(reg))
	drifts, err = f.svc.AuditStatuses(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, StatusPartiallyDelivered, drifts[0].Derived)
	require.False(t, drifts[0].Repaired)

	drifts, err = f.svc.AuditStatuses(context.Background(), true)
	require.NoError(t, err)
	require.True(t, drifts[0].Repaired)
	require.Equal(t, float64(2), testutil.ToFloat64(f.svc.metrics.drift))

	repaired, err := f.repo.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyDelivered, repaired.Status)
	require.Equal(t, "PO_STATUS_REPAIR", f.audit.logs[len(f.audit.logs)-1].Action)
}

func TestReceiptMetrics(t *testing.T) {
	f := newFixture()
	f.svc.WithMetrics(NewMetrics(prometheus.NewRegistry()))
	po := f.confirmedOrder(t, 10, 10, 5)

	_, _, err := f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 11, 0, 0)}})
	require.Error(t, err)
	_, _, err = f.svc.ReceiveGoods(actorCtx(), ReceiptInput{PurchaseOrderID: po.ID, Lines: []ReceiptLine{receive(10, 10, 0, 0)}})
	require.NoError(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.receipts.WithLabelValues("overrun")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.receipts.WithLabelValues("accepted")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.transitions.WithLabelValues(string(StatusConfirmedBySupplier), string(StatusFullyReceived))))
	require.Equal(t, float64(2), testutil.ToFloat64(f.svc.metrics.propagations.WithLabelValues("applied")))
}
