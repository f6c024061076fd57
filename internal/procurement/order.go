package procurement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// Accounted is received + damaged + missing.
func (d Detail) Accounted() decimal.Decimal {
	return d.ReceivedQuantity.Add(d.ReceivedDamagedQuantity).Add(d.ReceivedMissingQuantity)
}

// Outstanding is what is still expected from the supplier.
func (d Detail) Outstanding() decimal.Decimal {
	return d.OrderedQuantity.Sub(d.Accounted())
}

// FullyAccounted reports a line with nothing outstanding.
func (d Detail) FullyAccounted() bool {
	return !d.Outstanding().IsPositive()
}

// Clone deep copies the terms so snapshots never alias live slices.
func (t Terms) Clone() Terms {
	out := t
	if t.ExpectedDeliveryDate != nil {
		date := *t.ExpectedDeliveryDate
		out.ExpectedDeliveryDate = &date
	}
	out.AdditionalCosts = append([]AdditionalCost(nil), t.AdditionalCosts...)
	out.Details = append([]Detail(nil), t.Details...)
	return out
}

// Recalculate derives line subtotals and the order totals.
func (t *Terms) Recalculate() {
	subtotal := decimal.Zero
	for i := range t.Details {
		t.Details[i].Subtotal = t.Details[i].OrderedQuantity.Mul(t.Details[i].UnitPrice).Round(shared.QuantityScale)
		subtotal = subtotal.Add(t.Details[i].Subtotal)
	}
	total := subtotal
	for _, c := range t.AdditionalCosts {
		total = total.Add(c.Amount)
	}
	t.ProductsSubtotal = subtotal
	t.TotalAmount = total
}

// DeriveStatus computes the receiving status purely from line counters.
// Calling it twice on the same counters yields the same status.
func DeriveStatus(details []Detail, solution *SupplierSolution) Status {
	if len(details) == 0 {
		return StatusConfirmedBySupplier
	}
	full := true
	progress := false
	for _, d := range details {
		if !d.FullyAccounted() {
			full = false
		}
		if d.Accounted().IsPositive() {
			progress = true
		}
	}
	switch {
	case full:
		return StatusFullyReceived
	case progress && solution != nil:
		return StatusAwaitingFutureDelivery
	case progress:
		return StatusPartiallyDelivered
	}
	return StatusConfirmedBySupplier
}

// checkAccounted enforces ordered >= received + damaged + missing on every line.
func checkAccounted(details []Detail) error {
	for _, d := range details {
		if d.Outstanding().IsNegative() {
			return shared.WithDetails(ErrQuantityOverrun, map[string]any{
				"product_id":  d.ProductID,
				"ordered":     d.OrderedQuantity.String(),
				"accounted":   d.Accounted().String(),
				"outstanding": d.Outstanding().String(),
			})
		}
	}
	return nil
}

// hasDiscrepancy reports outstanding, damaged or missing quantities.
func hasDiscrepancy(details []Detail) bool {
	for _, d := range details {
		if !d.FullyAccounted() || d.ReceivedDamagedQuantity.IsPositive() || d.ReceivedMissingQuantity.IsPositive() {
			return true
		}
	}
	return false
}

func (po *PurchaseOrder) detail(productID int64) *Detail {
	for i := range po.Terms.Details {
		if po.Terms.Details[i].ProductID == productID {
			return &po.Terms.Details[i]
		}
	}
	return nil
}

// transition moves the order to next or reports why it cannot.
func (po *PurchaseOrder) transition(next Status) error {
	if !po.Status.CanTransitionTo(next) {
		return invalidTransition(po.Status, next)
	}
	po.Status = next
	return nil
}

// snapshot captures the live terms unless a snapshot already exists, so the
// stored copy always holds the terms from before the first proposal.
func (po *PurchaseOrder) snapshot() {
	if po.Original != nil {
		return
	}
	original := po.Terms.Clone()
	po.Original = &original
}

// propagationLines lists ordered quantities for requisition bookkeeping.
func (po *PurchaseOrder) propagationLines() []requisition.Line {
	lines := make([]requisition.Line, 0, len(po.Terms.Details))
	for _, d := range po.Terms.Details {
		lines = append(lines, requisition.Line{ProductID: d.ProductID, Quantity: d.OrderedQuantity})
	}
	return lines
}

func (po *PurchaseOrder) productIDs() []int64 {
	ids := make([]int64, 0, len(po.Terms.Details))
	for _, d := range po.Terms.Details {
		ids = append(ids, d.ProductID)
	}
	return ids
}

func invalidTransition(from, to Status) error {
	return shared.WithDetails(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to), map[string]any{
		"current":   string(from),
		"requested": string(to),
	})
}
