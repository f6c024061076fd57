package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/inventory"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

const receiptIdempotencyModule = "procurement.receipt"

// ReceiptInput describes one delivery against an order.
type ReceiptInput struct {
	PurchaseOrderID int64
	LocationID      int64
	ReceiptDate     time.Time
	ReceivingUserID int64
	Notes           string
	IdempotencyKey  string
	Lines           []ReceiptLine
}

// ReceiveGoods validates a delivery in full, then in one transaction posts
// ledger movements, accumulates the line counters, stores the receipt and
// re-derives the order status. Any validation failure rejects the whole
// receipt before anything is written.
func (s *Service) ReceiveGoods(ctx context.Context, input ReceiptInput) (Receipt, PurchaseOrder, error) {
	actor, ok := shared.ActorFromContext(ctx)
	if !ok {
		return Receipt{}, PurchaseOrder{}, shared.ErrActorRequired
	}
	if input.ReceivingUserID == 0 {
		input.ReceivingUserID = actor.ID
	}
	if input.ReceiptDate.IsZero() {
		input.ReceiptDate = s.now()
	}

	var (
		receipt Receipt
		updated PurchaseOrder
		from    Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, input.PurchaseOrderID)
		if err != nil {
			return err
		}
		from = po.Status
		if !po.Status.Receivable() {
			return invalidTransition(po.Status, StatusPartiallyDelivered)
		}
		locationID, err := s.receivingLocation(ctx, input.LocationID)
		if err != nil {
			return err
		}
		if err := validateReceiptLines(&po, input.Lines); err != nil {
			return err
		}
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if err := s.idempotency.CheckAndInsert(ctx, shared.ReceiptIdempotencyKey(po.ID, input.IdempotencyKey), receiptIdempotencyModule); err != nil {
				return err
			}
		}

		receipt, err = tx.InsertReceipt(ctx, Receipt{
			PurchaseOrderID: po.ID,
			LocationID:      locationID,
			ReceiptDate:     input.ReceiptDate,
			ReceivingUserID: input.ReceivingUserID,
			Notes:           input.Notes,
			IdempotencyKey:  input.IdempotencyKey,
			Lines:           input.Lines,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.Record(ctx, ledgerEntries(po, receipt, actor.ID)); err != nil {
			return err
		}
		for _, line := range input.Lines {
			d := po.detail(line.ProductID)
			d.ReceivedQuantity = d.ReceivedQuantity.Add(line.QtyOK)
			d.ReceivedDamagedQuantity = d.ReceivedDamagedQuantity.Add(line.QtyDamaged)
			d.ReceivedMissingQuantity = d.ReceivedMissingQuantity.Add(line.QtyMissing)
			if err := tx.UpdateDetail(ctx, po.ID, *d); err != nil {
				return err
			}
		}
		if err := checkAccounted(po.Terms.Details); err != nil {
			return err
		}
		if err := s.applyDerived(&po); err != nil {
			return err
		}
		expected := po.Version
		po.Version = expected + 1
		po.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, po, expected); err != nil {
			return err
		}
		if err := s.recordAudit(ctx, actor.ID, "PO_RECEIPT", po.ID, map[string]any{
			"receipt_id":  receipt.ID,
			"location_id": locationID,
			"from":        string(from),
			"to":          string(po.Status),
			"lines":       len(input.Lines),
		}); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		s.metrics.observeReceipt(receiptOutcome(err))
		s.logger.Info("receipt rejected", slog.Int64("order_id", input.PurchaseOrderID), slog.Any("error", err))
		return Receipt{}, PurchaseOrder{}, err
	}
	s.metrics.observeReceipt("accepted")
	s.metrics.observeTransition(from, updated.Status)
	s.cache.Invalidate(ctx, updated.ID, updated.Version)
	return receipt, updated, nil
}

func (s *Service) receivingLocation(ctx context.Context, id int64) (int64, error) {
	if id == 0 {
		return s.directory.DefaultLocation(ctx)
	}
	if err := s.directory.CheckLocation(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}

// validateReceiptLines checks every line against the order before any write.
func validateReceiptLines(po *PurchaseOrder, lines []ReceiptLine) error {
	if len(lines) == 0 {
		return ErrEmptyReceipt
	}
	seen := make(map[int64]struct{}, len(lines))
	nonZero := false
	for _, line := range lines {
		if line.QtyOK.IsNegative() || line.QtyDamaged.IsNegative() || line.QtyMissing.IsNegative() {
			return shared.WithDetails(fmt.Errorf("%w: negative quantity", ErrValidation), map[string]any{"product_id": line.ProductID})
		}
		if !shared.AllFitScale(line.QtyOK, line.QtyDamaged, line.QtyMissing) {
			return shared.WithDetails(fmt.Errorf("%w: more than %d decimal places", ErrValidation, shared.QuantityScale), map[string]any{
				"product_id":  line.ProductID,
				"qty_ok":      line.QtyOK.String(),
				"qty_damaged": line.QtyDamaged.String(),
				"qty_missing": line.QtyMissing.String(),
			})
		}
		if _, dup := seen[line.ProductID]; dup {
			return shared.WithDetails(fmt.Errorf("%w: duplicate product", ErrValidation), map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = struct{}{}
		d := po.detail(line.ProductID)
		if d == nil {
			return shared.WithDetails(fmt.Errorf("%w: product not on order", ErrValidation), map[string]any{"product_id": line.ProductID})
		}
		requested := line.Total()
		if requested.GreaterThan(d.Outstanding()) {
			return shared.WithDetails(ErrQuantityOverrun, map[string]any{
				"product_id":  line.ProductID,
				"requested":   requested.String(),
				"outstanding": d.Outstanding().String(),
			})
		}
		if requested.IsPositive() {
			nonZero = true
		}
	}
	if !nonZero {
		return ErrEmptyReceipt
	}
	return nil
}

// ledgerEntries maps receipt lines to stock movements. Missing goods get a
// report entry that leaves the counters alone.
func ledgerEntries(po PurchaseOrder, r Receipt, actorID int64) []inventory.Entry {
	reason := fmt.Sprintf("PO %s receipt %d", po.Number, r.ID)
	var entries []inventory.Entry
	add := func(productID int64, kind inventory.MovementKind, qty decimal.Decimal) {
		if !qty.IsPositive() {
			return
		}
		entries = append(entries, inventory.Entry{
			ProductID:       productID,
			LocationID:      r.LocationID,
			Kind:            kind,
			Qty:             qty,
			ActorID:         actorID,
			Reason:          reason,
			ReceiptID:       r.ID,
			PurchaseOrderID: po.ID,
		})
	}
	for _, line := range r.Lines {
		add(line.ProductID, inventory.KindInboundOK, line.QtyOK)
		add(line.ProductID, inventory.KindInboundDamaged, line.QtyDamaged)
		add(line.ProductID, inventory.KindMissingReport, line.QtyMissing)
	}
	return entries
}

func receiptOutcome(err error) string {
	switch {
	case errors.Is(err, ErrQuantityOverrun):
		return "overrun"
	case errors.Is(err, ErrEmptyReceipt):
		return "empty"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_status"
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return "duplicate"
	}
	return "error"
}
