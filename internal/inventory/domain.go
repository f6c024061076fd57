package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind enumerates supported ledger movements.
type MovementKind string

const (
	// KindInboundOK adds usable stock received in good condition.
	KindInboundOK MovementKind = "INBOUND_OK"
	// KindInboundDamaged adds stock received damaged.
	KindInboundDamaged MovementKind = "INBOUND_DAMAGED"
	// KindMissingReport records goods reported missing. It never changes counters.
	KindMissingReport MovementKind = "MISSING_REPORT"
	// KindOutboundSale removes usable stock sold to a customer.
	KindOutboundSale MovementKind = "OUTBOUND_SALE"
	// KindOutboundTransfer removes usable stock moved to another location.
	KindOutboundTransfer MovementKind = "OUTBOUND_TRANSFER"
	// KindAdjustment applies a signed manual correction.
	KindAdjustment MovementKind = "ADJUSTMENT"
	// KindInitial seeds opening balances.
	KindInitial MovementKind = "INITIAL"
)

// Valid reports whether k is a known kind.
func (k MovementKind) Valid() bool {
	switch k {
	case KindInboundOK, KindInboundDamaged, KindMissingReport, KindOutboundSale, KindOutboundTransfer, KindAdjustment, KindInitial:
		return true
	}
	return false
}

// StockItem holds the counters for one product at one location.
type StockItem struct {
	ProductID  int64           `db:"product_id" json:"product_id"`
	LocationID int64           `db:"location_id" json:"location_id"`
	Usable     decimal.Decimal `db:"usable_qty" json:"usable_qty"`
	Damaged    decimal.Decimal `db:"damaged_qty" json:"damaged_qty"`
	UpdatedBy  int64           `db:"updated_by" json:"updated_by"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Movement is an append-only ledger audit row.
type Movement struct {
	ID              int64           `db:"id" json:"id"`
	Ref             uuid.UUID       `db:"ref" json:"ref"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	LocationID      int64           `db:"location_id" json:"location_id"`
	Kind            MovementKind    `db:"kind" json:"kind"`
	QtyDelta        decimal.Decimal `db:"qty_delta" json:"qty_delta"`
	ReportedQty     decimal.Decimal `db:"reported_qty" json:"reported_qty"`
	UsableBefore    decimal.Decimal `db:"usable_before" json:"usable_before"`
	UsableAfter     decimal.Decimal `db:"usable_after" json:"usable_after"`
	DamagedBefore   decimal.Decimal `db:"damaged_before" json:"damaged_before"`
	DamagedAfter    decimal.Decimal `db:"damaged_after" json:"damaged_after"`
	ActorID         int64           `db:"actor_id" json:"actor_id"`
	Reason          string          `db:"reason" json:"reason"`
	ReceiptID       *int64          `db:"receipt_id" json:"receipt_id,omitempty"`
	PurchaseOrderID *int64          `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Entry is one requested ledger change. Qty is a magnitude for every kind
// except KindAdjustment, where its sign gives the direction.
type Entry struct {
	ProductID       int64
	LocationID      int64
	Kind            MovementKind
	Qty             decimal.Decimal
	Damaged         bool
	ActorID         int64
	Reason          string
	ReceiptID       int64
	PurchaseOrderID int64
}

// deltas maps an entry to the signed changes of the usable and damaged counters.
func (e Entry) deltas() (usable, damaged decimal.Decimal) {
	zero := decimal.Zero
	switch e.Kind {
	case KindInboundOK, KindInitial:
		return e.Qty, zero
	case KindInboundDamaged:
		return zero, e.Qty
	case KindOutboundSale, KindOutboundTransfer:
		return e.Qty.Neg(), zero
	case KindAdjustment:
		if e.Damaged {
			return zero, e.Qty
		}
		return e.Qty, zero
	}
	return zero, zero
}

// StockFilter filters stock item reads.
type StockFilter struct {
	ProductID  int64
	LocationID int64
	Limit      int
}

// MovementFilter filters the movement audit query.
type MovementFilter struct {
	ProductID       int64
	LocationID      int64
	Kinds           []MovementKind
	From            time.Time
	To              time.Time
	PurchaseOrderID int64
	Limit           int
}

// ErrNegativeStock triggered when movement would result negative qty.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: invalid quantity")

// ErrInvalidMovement indicates an unknown kind or missing product/location.
var ErrInvalidMovement = errors.New("inventory: invalid movement")
