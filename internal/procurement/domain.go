package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
)

// PurchaseOrder is the aggregate root of the procurement flow.
type PurchaseOrder struct {
	ID              int64             `json:"id"`
	Number          string            `json:"number"`
	SupplierID      int64             `json:"supplier_id"`
	RequisitionID   int64             `json:"requisition_id"`
	QuotationID     *int64            `json:"quotation_id,omitempty"`
	Status          Status            `json:"status"`
	Terms           Terms             `json:"terms"`
	Original        *Terms            `json:"original,omitempty"`
	Solution        *SupplierSolution `json:"solution,omitempty"`
	CancelNote      string            `json:"cancel_note,omitempty"`
	Version         int64             `json:"version"`
	StatusDerivedAt *time.Time        `json:"status_derived_at,omitempty"`
	CreatedBy       int64             `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Terms groups the commercial terms a supplier can renegotiate.
type Terms struct {
	Notes                string           `json:"notes"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date,omitempty"`
	AdditionalCosts      []AdditionalCost `json:"additional_costs"`
	ProductsSubtotal     decimal.Decimal  `json:"products_subtotal"`
	TotalAmount          decimal.Decimal  `json:"total_amount"`
	Details              []Detail         `json:"details"`
}

// AdditionalCost is a non-product charge such as freight.
type AdditionalCost struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
}

// Detail is one order line with its cumulative receiving counters.
type Detail struct {
	ProductID               int64           `json:"product_id"`
	OrderedQuantity         decimal.Decimal `json:"ordered_qty"`
	UnitPrice               decimal.Decimal `json:"unit_price"`
	Subtotal                decimal.Decimal `json:"subtotal"`
	ReceivedQuantity        decimal.Decimal `json:"received_qty"`
	ReceivedDamagedQuantity decimal.Decimal `json:"received_damaged_qty"`
	ReceivedMissingQuantity decimal.Decimal `json:"received_missing_qty"`
	Notes                   string          `json:"notes,omitempty"`
}

// SolutionType classifies how a supplier settles a discrepancy.
type SolutionType string

const (
	SolutionCredit         SolutionType = "CREDIT"
	SolutionDiscount       SolutionType = "DISCOUNT"
	SolutionFutureDelivery SolutionType = "FUTURE_DELIVERY"
	SolutionOther          SolutionType = "OTHER"
)

// Valid reports whether t is a known solution type.
func (t SolutionType) Valid() bool {
	switch t {
	case SolutionCredit, SolutionDiscount, SolutionFutureDelivery, SolutionOther:
		return true
	}
	return false
}

// SupplierSolution records the agreed settlement of a discrepancy.
type SupplierSolution struct {
	Type       SolutionType `json:"type"`
	Details    string       `json:"details"`
	RecordedBy int64        `json:"recorded_by"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// Receipt is one physical delivery event. Quantities are this event only.
type Receipt struct {
	ID              int64         `json:"id"`
	PurchaseOrderID int64         `json:"purchase_order_id"`
	LocationID      int64         `json:"location_id"`
	ReceiptDate     time.Time     `json:"receipt_date"`
	ReceivingUserID int64         `json:"receiving_user_id"`
	Notes           string        `json:"notes,omitempty"`
	IdempotencyKey  string        `json:"idempotency_key,omitempty"`
	Lines           []ReceiptLine `json:"lines"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ReceiptLine is the per product breakdown of a receipt.
type ReceiptLine struct {
	ProductID  int64           `json:"product_id"`
	QtyOK      decimal.Decimal `json:"qty_ok"`
	QtyDamaged decimal.Decimal `json:"qty_damaged"`
	QtyMissing decimal.Decimal `json:"qty_missing"`
	Notes      string          `json:"notes,omitempty"`
}

// Total is ok + damaged + missing.
func (l ReceiptLine) Total() decimal.Decimal {
	return l.QtyOK.Add(l.QtyDamaged).Add(l.QtyMissing)
}

// OutboxStatus tracks delivery of a requisition propagation.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxDone    OutboxStatus = "DONE"
)

// OutboxEntry is a durable requisition propagation written with the order change.
type OutboxEntry struct {
	ID              int64              `json:"id"`
	PurchaseOrderID int64              `json:"purchase_order_id"`
	RequisitionID   int64              `json:"requisition_id"`
	OrderVersion    int64              `json:"order_version"`
	Kind            requisition.Kind   `json:"kind"`
	Lines           []requisition.Line `json:"lines"`
	Status          OutboxStatus       `json:"status"`
	Attempts        int                `json:"attempts"`
	LastError       string             `json:"last_error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
}

// Propagation converts the entry to the propagator's input.
func (e OutboxEntry) Propagation() requisition.Propagation {
	return requisition.Propagation{
		RequisitionID: e.RequisitionID,
		OrderID:       e.PurchaseOrderID,
		OrderVersion:  e.OrderVersion,
		Kind:          e.Kind,
		Lines:         e.Lines,
	}
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status        Status
	SupplierID    int64
	RequisitionID int64
	Page          int
	PerPage       int
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("procurement: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrInvalidTransition occurs when an action is not allowed from the current status.
	ErrInvalidTransition = errors.New("procurement: invalid status transition")
	// ErrQuantityOverrun occurs when a receipt line exceeds the outstanding quantity.
	ErrQuantityOverrun = errors.New("procurement: quantity overrun")
	// ErrEmptyReceipt occurs when every line of a receipt is zero.
	ErrEmptyReceipt = errors.New("procurement: empty receipt")
	// ErrNoSnapshotToRevert occurs when accept-original finds no pre-proposal terms.
	ErrNoSnapshotToRevert = errors.New("procurement: no snapshot to revert")
)
