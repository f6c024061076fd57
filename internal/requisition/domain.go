package requisition

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Requisition is the internal request a purchase order draws against.
type Requisition struct {
	ID        int64             `json:"id"`
	Number    string            `json:"number"`
	Status    string            `json:"status"`
	Notes     string            `json:"notes"`
	CreatedAt time.Time         `json:"created_at"`
	Products  []RequiredProduct `json:"products"`
}

// RequiredProduct tracks how much of a product is needed and how much is
// already committed through purchase orders.
type RequiredProduct struct {
	ProductID         int64           `json:"product_id"`
	RequiredQuantity  decimal.Decimal `json:"required_qty"`
	PurchasedQuantity decimal.Decimal `json:"purchased_qty"`
	PendingPOQuantity decimal.Decimal `json:"pending_po_qty"`
}

// Committed is purchased plus pending.
func (p RequiredProduct) Committed() decimal.Decimal {
	return p.PurchasedQuantity.Add(p.PendingPOQuantity)
}

// Outstanding is what remains to be ordered, never below zero.
func (p RequiredProduct) Outstanding() decimal.Decimal {
	rest := p.RequiredQuantity.Sub(p.Committed())
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// OverOrdered reports purchase orders committing more than required.
// Over-ordering is permitted; this only surfaces it.
func (p RequiredProduct) OverOrdered() bool {
	return p.Committed().GreaterThan(p.RequiredQuantity)
}

// Kind selects how an order's lines count against the requisition.
type Kind string

const (
	// KindReserve counts the lines as pending.
	KindReserve Kind = "RESERVE"
	// KindConfirm moves the lines to purchased.
	KindConfirm Kind = "CONFIRM"
	// KindRelease withdraws everything the order contributed.
	KindRelease Kind = "RELEASE"
)

// Line is one product quantity carried by a propagation.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Propagation is the state of one order's lines at a given order version.
type Propagation struct {
	RequisitionID int64  `json:"requisition_id"`
	OrderID       int64  `json:"order_id"`
	OrderVersion  int64  `json:"order_version"`
	Kind          Kind   `json:"kind"`
	Lines         []Line `json:"lines"`
}

// Contribution is what a single order currently adds to a required product.
type Contribution struct {
	RequisitionID int64           `json:"requisition_id"`
	OrderID       int64           `json:"order_id"`
	ProductID     int64           `json:"product_id"`
	Pending       decimal.Decimal `json:"pending_qty"`
	Purchased     decimal.Decimal `json:"purchased_qty"`
}

// Delta is a change applied to a required product's aggregates.
type Delta struct {
	ProductID int64           `json:"product_id"`
	Pending   decimal.Decimal `json:"pending"`
	Purchased decimal.Decimal `json:"purchased"`
}

// Result describes what Apply did.
type Result struct {
	Stale     bool    `json:"stale"`
	Deltas    []Delta `json:"deltas"`
	Unmatched []int64 `json:"unmatched"`
}

var (
	// ErrNotFound indicates the requisition does not exist.
	ErrNotFound = errors.New("requisition: not found")
	// ErrInvalidPropagation indicates a malformed propagation.
	ErrInvalidPropagation = errors.New("requisition: invalid propagation")
)
