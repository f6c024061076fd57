//go:build integration

package procurement_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/internal/inventory"
	"github.com/odyssey-erp/odyssey-procure/internal/masterdata"
	"github.com/odyssey-erp/odyssey-procure/internal/procurement"
	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
	"github.com/odyssey-erp/odyssey-procure/internal/testing/pgtest"
)

type stack struct {
	svc         *procurement.Service
	ledger      *inventory.Service
	requisition *requisition.Repository
}

func newStack(t *testing.T) stack {
	t.Helper()
	pg := pgtest.Start(t)
	pg.Exec(t,
		`INSERT INTO products (id, sku, name) VALUES (10, 'BOLT-M8', 'Bolt M8'), (11, 'NUT-M8', 'Nut M8')`,
		`INSERT INTO suppliers (id, code, name) VALUES (3, 'SUP-3', 'Baja Steel')`,
		`INSERT INTO locations (id, code, name, is_default) VALUES (1, 'WH-MAIN', 'Main warehouse', TRUE)`,
		`INSERT INTO requisitions (id, number) VALUES (7, 'REQ-7')`,
		`INSERT INTO requisition_products (requisition_id, product_id, required_qty) VALUES (7, 10, 100), (7, 11, 20)`,
		`INSERT INTO quotations (id, supplier_id, requisition_id, status) VALUES (1, 3, 7, 'CONFIRMED')`,
		`INSERT INTO quotation_lines (quotation_id, product_id, quantity, unit_price) VALUES (1, 10, 100, 5), (1, 11, 20, 2)`,
	)
	audit := shared.NewAuditLogger(pg.Tx)
	ledger := inventory.NewService(inventory.NewRepository(pg.Tx), audit, nil)
	reqRepo := requisition.NewRepository(pg.Tx)
	directory := masterdata.NewService(masterdata.NewRepository(pg.Tx))
	svc := procurement.NewService(procurement.NewRepository(pg.Tx), ledger, directory, directory, requisition.NewPropagator(reqRepo, nil), nil).
		WithRecorders(audit, shared.NewApprovalRecorder(pg.Tx, nil), shared.NewIdempotencyStore(pg.Tx))
	return stack{svc: svc, ledger: ledger, requisition: reqRepo}
}

func requiredProduct(t *testing.T, repo *requisition.Repository, productID int64) requisition.RequiredProduct {
	t.Helper()
	req, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	for _, p := range req.Products {
		if p.ProductID == productID {
			return p
		}
	}
	t.Fatalf("product %d not on requisition", productID)
	return requisition.RequiredProduct{}
}

func TestPostgresOrderToReceipt(t *testing.T) {
	s := newStack(t)
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 1, Role: "buyer"})

	po, err := s.svc.CreateOrder(ctx, procurement.CreateOrderInput{QuotationID: 1, Number: "PO-0001"})
	require.NoError(t, err)
	require.True(t, requiredProduct(t, s.requisition, 10).PendingPOQuantity.Equal(decimal.NewFromInt(100)))

	_, err = s.svc.SendToSupplier(ctx, po.ID)
	require.NoError(t, err)
	_, err = s.svc.RecordProposal(ctx, po.ID, procurement.ProposalInput{Lines: []procurement.ProposalLine{
		{ProductID: 10, Quantity: decimal.NewFromInt(100), UnitPrice: decimal.NewFromInt(6)},
	}})
	require.NoError(t, err)
	po, err = s.svc.AcceptOriginal(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, po.Terms.Details, 2)

	stored, err := s.svc.GetOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Nil(t, stored.Original)
	require.Equal(t, procurement.StatusConfirmedBySupplier, stored.Status)
	require.True(t, stored.Terms.TotalAmount.Equal(decimal.NewFromInt(540)))

	bolt := requiredProduct(t, s.requisition, 10)
	require.True(t, bolt.PurchasedQuantity.Equal(decimal.NewFromInt(100)))
	require.True(t, bolt.PendingPOQuantity.IsZero())

	_, _, err = s.svc.ReceiveGoods(ctx, procurement.ReceiptInput{PurchaseOrderID: po.ID, Lines: []procurement.ReceiptLine{
		{ProductID: 10, QtyOK: decimal.NewFromInt(60), QtyDamaged: decimal.NewFromInt(50)},
	}})
	require.ErrorIs(t, err, procurement.ErrQuantityOverrun)
	empty, err := s.ledger.GetStock(context.Background(), 10, 1)
	require.NoError(t, err)
	require.True(t, empty.Usable.IsZero())

	_, updated, err := s.svc.ReceiveGoods(ctx, procurement.ReceiptInput{PurchaseOrderID: po.ID, Lines: []procurement.ReceiptLine{
		{ProductID: 10, QtyOK: decimal.NewFromInt(60)},
	}})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusPartiallyDelivered, updated.Status)

	_, updated, err = s.svc.ReceiveGoods(ctx, procurement.ReceiptInput{PurchaseOrderID: po.ID, Lines: []procurement.ReceiptLine{
		{ProductID: 10, QtyOK: decimal.NewFromInt(38), QtyDamaged: decimal.NewFromInt(2)},
		{ProductID: 11, QtyOK: decimal.NewFromInt(20)},
	}})
	require.NoError(t, err)
	require.Equal(t, procurement.StatusFullyReceived, updated.Status)

	item, err := s.ledger.GetStock(context.Background(), 10, 1)
	require.NoError(t, err)
	require.True(t, item.Usable.Equal(decimal.NewFromInt(98)))
	require.True(t, item.Damaged.Equal(decimal.NewFromInt(2)))

	drifts, err := s.svc.AuditStatuses(context.Background(), false)
	require.NoError(t, err)
	require.Empty(t, drifts)

	history, err := s.svc.History(context.Background(), po.ID, 0)
	require.NoError(t, err)
	require.Len(t, history.Decisions, 2)
	require.Equal(t, shared.ApprovalOriginalRestored, history.Decisions[1].Action)
	require.Equal(t, "PO_CREATE", history.Events[0].Action)
	require.Equal(t, int64(1), history.Events[0].ActorID)
}

func TestPostgresConcurrentReceiptsSerialise(t *testing.T) {
	s := newStack(t)
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 1})
	po, err := s.svc.CreateOrder(ctx, procurement.CreateOrderInput{QuotationID: 1})
	require.NoError(t, err)
	_, err = s.svc.SendToSupplier(ctx, po.ID)
	require.NoError(t, err)
	_, err = s.svc.SupplierAccept(ctx, po.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.svc.ReceiveGoods(ctx, procurement.ReceiptInput{PurchaseOrderID: po.ID, Lines: []procurement.ReceiptLine{
				{ProductID: 10, QtyOK: decimal.NewFromInt(70)},
			}})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, procurement.ErrQuantityOverrun)
			failed++
		}
	}
	require.Equal(t, 1, failed)

	item, err := s.ledger.GetStock(context.Background(), 10, 1)
	require.NoError(t, err)
	require.True(t, item.Usable.Equal(decimal.NewFromInt(70)))
}
