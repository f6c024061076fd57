package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog product.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Supplier represents a vendor.
type Supplier struct {
	ID        int64     `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Location is a place stock is held.
type Location struct {
	ID        int64  `db:"id" json:"id"`
	Code      string `db:"code" json:"code"`
	Name      string `db:"name" json:"name"`
	IsDefault bool   `db:"is_default" json:"is_default"`
	IsActive  bool   `db:"is_active" json:"is_active"`
}

// QuotationStatusConfirmed marks a quotation an order may be created from.
const QuotationStatusConfirmed = "CONFIRMED"

// Quotation is a supplier offer against a requisition.
type Quotation struct {
	ID            int64           `db:"id" json:"id"`
	SupplierID    int64           `db:"supplier_id" json:"supplier_id"`
	RequisitionID int64           `db:"requisition_id" json:"requisition_id"`
	Status        string          `db:"status" json:"status"`
	Notes         string          `db:"notes" json:"notes"`
	Lines         []QuotationLine `db:"-" json:"lines"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// QuotationLine carries the quoted quantity and unit price.
type QuotationLine struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// ListFilters represents standard list filters.
type ListFilters struct {
	ActiveOnly bool
	Limit      int
}

// Repository defines the master data persistence contract.
type Repository interface {
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, error)
	ProductsByID(ctx context.Context, ids []int64) ([]Product, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	DefaultLocation(ctx context.Context) (Location, error)
	ListLocations(ctx context.Context) ([]Location, error)
	GetQuotation(ctx context.Context, id int64) (Quotation, error)
}

// ErrNotFound indicates a missing master data record.
var ErrNotFound = errors.New("masterdata: not found")
