package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// Transactor runs units of work and exposes the querier bound to them.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Querier(ctx context.Context) shared.Querier
}

// Repository provides PostgreSQL backed persistence for the stock ledger.
type Repository struct {
	db      Transactor
	builder squirrel.StatementBuilderType
}

// NewRepository constructs a repository.
func NewRepository(db Transactor) *Repository {
	return &Repository{db: db, builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Increment(ctx context.Context, productID, locationID int64, usable, damaged decimal.Decimal, actorID int64) (StockItem, StockItem, error)
	CurrentForUpdate(ctx context.Context, productID, locationID int64) (StockItem, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

type txRepo struct {
	q shared.Querier
}

// WithTx joins or opens the request transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.db.RunInTx(ctx, func(ctx context.Context) error {
		return fn(ctx, &txRepo{q: r.db.Querier(ctx)})
	})
}

const stockItemColumns = `product_id, location_id, usable_qty, damaged_qty, updated_by, updated_at`

// Increment accumulates deltas onto the counters and returns the row before
// and after. The accumulation happens in the UPDATE itself so concurrent
// writers to the same product/location never lose increments.
func (t *txRepo) Increment(ctx context.Context, productID, locationID int64, usable, damaged decimal.Decimal, actorID int64) (StockItem, StockItem, error) {
	var after StockItem
	err := t.q.QueryRow(ctx, `INSERT INTO stock_items (product_id, location_id, usable_qty, damaged_qty, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (product_id, location_id) DO UPDATE SET
    usable_qty = stock_items.usable_qty + EXCLUDED.usable_qty,
    damaged_qty = stock_items.damaged_qty + EXCLUDED.damaged_qty,
    updated_by = EXCLUDED.updated_by,
    updated_at = EXCLUDED.updated_at
RETURNING `+stockItemColumns, productID, locationID, usable, damaged, actorID).
		Scan(&after.ProductID, &after.LocationID, &after.Usable, &after.Damaged, &after.UpdatedBy, &after.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return StockItem{}, StockItem{}, ErrNegativeStock
		}
		return StockItem{}, StockItem{}, fmt.Errorf("inventory: increment stock: %w", err)
	}
	before := after
	before.Usable = after.Usable.Sub(usable)
	before.Damaged = after.Damaged.Sub(damaged)
	return before, after, nil
}

// CurrentForUpdate locks and returns the counters, or zeros when no row exists yet.
func (t *txRepo) CurrentForUpdate(ctx context.Context, productID, locationID int64) (StockItem, error) {
	item := StockItem{ProductID: productID, LocationID: locationID}
	err := t.q.QueryRow(ctx, `SELECT `+stockItemColumns+` FROM stock_items WHERE product_id=$1 AND location_id=$2 FOR UPDATE`, productID, locationID).
		Scan(&item.ProductID, &item.LocationID, &item.Usable, &item.Damaged, &item.UpdatedBy, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockItem{ProductID: productID, LocationID: locationID}, nil
		}
		return StockItem{}, err
	}
	return item, nil
}

// InsertMovement appends an audit row.
func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := t.q.QueryRow(ctx, `INSERT INTO stock_movements (ref, product_id, location_id, kind, qty_delta, reported_qty,
    usable_before, usable_after, damaged_before, damaged_after, actor_id, reason, receipt_id, purchase_order_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())
RETURNING id, created_at`,
		m.Ref, m.ProductID, m.LocationID, string(m.Kind), m.QtyDelta, m.ReportedQty,
		m.UsableBefore, m.UsableAfter, m.DamagedBefore, m.DamagedAfter, m.ActorID, m.Reason, m.ReceiptID, m.PurchaseOrderID).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return m, nil
}

// GetItem returns counters for a single product/location.
func (r *Repository) GetItem(ctx context.Context, productID, locationID int64) (StockItem, error) {
	var item StockItem
	err := pgxscan.Get(ctx, r.db.Querier(ctx), &item, `SELECT `+stockItemColumns+` FROM stock_items WHERE product_id=$1 AND location_id=$2`, productID, locationID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return StockItem{ProductID: productID, LocationID: locationID}, nil
		}
		return StockItem{}, err
	}
	return item, nil
}

// ListItems returns counters filtered by product and/or location.
func (r *Repository) ListItems(ctx context.Context, filter StockFilter) ([]StockItem, error) {
	q := r.builder.Select(stockItemColumns).From("stock_items").OrderBy("product_id", "location_id")
	if filter.ProductID > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductID})
	}
	if filter.LocationID > 0 {
		q = q.Where(squirrel.Eq{"location_id": filter.LocationID})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var items []StockItem
	if err := pgxscan.Select(ctx, r.db.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("inventory: list stock: %w", err)
	}
	return items, nil
}

// ListMovements runs the filterable movement audit query.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	q := r.builder.Select(
		"id", "ref", "product_id", "location_id", "kind", "qty_delta", "reported_qty",
		"usable_before", "usable_after", "damaged_before", "damaged_after",
		"actor_id", "reason", "receipt_id", "purchase_order_id", "created_at",
	).From("stock_movements").OrderBy("created_at DESC", "id DESC")
	if filter.ProductID > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductID})
	}
	if filter.LocationID > 0 {
		q = q.Where(squirrel.Eq{"location_id": filter.LocationID})
	}
	if filter.PurchaseOrderID > 0 {
		q = q.Where(squirrel.Eq{"purchase_order_id": filter.PurchaseOrderID})
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		q = q.Where(squirrel.Eq{"kind": kinds})
	}
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.Lt{"created_at": filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var movements []Movement
	if err := pgxscan.Select(ctx, r.db.Querier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	return movements, nil
}
