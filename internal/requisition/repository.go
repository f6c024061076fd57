package requisition

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// Transactor runs units of work and exposes the querier bound to them.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Querier(ctx context.Context) shared.Querier
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db Transactor
}

// NewRepository constructs a repository.
func NewRepository(db Transactor) *Repository {
	return &Repository{db: db}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockProducts(ctx context.Context, requisitionID int64) (map[int64]RequiredProduct, error)
	LastVersion(ctx context.Context, requisitionID, orderID int64) (int64, bool, error)
	SaveVersion(ctx context.Context, requisitionID, orderID, version int64) error
	Contributions(ctx context.Context, requisitionID, orderID int64) (map[int64]Contribution, error)
	ApplyDelta(ctx context.Context, requisitionID int64, d Delta) error
	SaveContribution(ctx context.Context, c Contribution) error
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

// LockProducts locks the requisition row, which serialises every propagation
// against it, and returns its required products.
func (t *txRepo) LockProducts(ctx context.Context, requisitionID int64) (map[int64]RequiredProduct, error) {
	var id int64
	if err := t.q.QueryRow(ctx, `SELECT id FROM requisitions WHERE id=$1 FOR UPDATE`, requisitionID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rows, err := t.q.Query(ctx, `SELECT product_id, required_qty, purchased_qty, pending_po_qty
FROM requisition_products WHERE requisition_id=$1 FOR UPDATE`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make(map[int64]RequiredProduct)
	for rows.Next() {
		var p RequiredProduct
		if err := rows.Scan(&p.ProductID, &p.RequiredQuantity, &p.PurchasedQuantity, &p.PendingPOQuantity); err != nil {
			return nil, err
		}
		products[p.ProductID] = p
	}
	return products, rows.Err()
}

// LastVersion returns the last order version applied.
func (t *txRepo) LastVersion(ctx context.Context, requisitionID, orderID int64) (int64, bool, error) {
	var version int64
	err := t.q.QueryRow(ctx, `SELECT last_version FROM requisition_order_versions WHERE requisition_id=$1 AND order_id=$2`, requisitionID, orderID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return version, true, nil
}

// SaveVersion records the order version just applied.
func (t *txRepo) SaveVersion(ctx context.Context, requisitionID, orderID, version int64) error {
	_, err := t.q.Exec(ctx, `INSERT INTO requisition_order_versions (requisition_id, order_id, last_version, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (requisition_id, order_id) DO UPDATE SET last_version = EXCLUDED.last_version, updated_at = EXCLUDED.updated_at`,
		requisitionID, orderID, version)
	return err
}

// Contributions returns the order's current contributions keyed by product.
func (t *txRepo) Contributions(ctx context.Context, requisitionID, orderID int64) (map[int64]Contribution, error) {
	rows, err := t.q.Query(ctx, `SELECT requisition_id, order_id, product_id, pending_qty, purchased_qty
FROM requisition_contributions WHERE requisition_id=$1 AND order_id=$2`, requisitionID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Contribution)
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.RequisitionID, &c.OrderID, &c.ProductID, &c.Pending, &c.Purchased); err != nil {
			return nil, err
		}
		out[c.ProductID] = c
	}
	return out, rows.Err()
}

// ApplyDelta adds d to the aggregates. Never an absolute write.
func (t *txRepo) ApplyDelta(ctx context.Context, requisitionID int64, d Delta) error {
	tag, err := t.q.Exec(ctx, `UPDATE requisition_products
SET pending_po_qty = pending_po_qty + $3, purchased_qty = purchased_qty + $4, updated_at = NOW()
WHERE requisition_id=$1 AND product_id=$2`, requisitionID, d.ProductID, d.Pending, d.Purchased)
	if err != nil {
		return fmt.Errorf("requisition: apply delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveContribution upserts the order's contribution for one product.
func (t *txRepo) SaveContribution(ctx context.Context, c Contribution) error {
	_, err := t.q.Exec(ctx, `INSERT INTO requisition_contributions (requisition_id, order_id, product_id, pending_qty, purchased_qty)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (requisition_id, order_id, product_id) DO UPDATE SET pending_qty = EXCLUDED.pending_qty, purchased_qty = EXCLUDED.purchased_qty`,
		c.RequisitionID, c.OrderID, c.ProductID, c.Pending, c.Purchased)
	return err
}

// Get returns a requisition with its products.
func (r *Repository) Get(ctx context.Context, id int64) (Requisition, error) {
	q := r.db.Querier(ctx)
	var req Requisition
	err := q.QueryRow(ctx, `SELECT id, number, status, notes, created_at FROM requisitions WHERE id=$1`, id).
		Scan(&req.ID, &req.Number, &req.Status, &req.Notes, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, ErrNotFound
		}
		return Requisition{}, err
	}
	rows, err := q.Query(ctx, `SELECT product_id, required_qty, purchased_qty, pending_po_qty
FROM requisition_products WHERE requisition_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return Requisition{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p RequiredProduct
		if err := rows.Scan(&p.ProductID, &p.RequiredQuantity, &p.PurchasedQuantity, &p.PendingPOQuantity); err != nil {
			return Requisition{}, err
		}
		req.Products = append(req.Products, p)
	}
	if err := rows.Err(); err != nil {
		return Requisition{}, err
	}
	return req, nil
}

// ListContributions lists every order contribution to a requisition.
func (r *Repository) ListContributions(ctx context.Context, requisitionID int64) ([]Contribution, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT requisition_id, order_id, product_id, pending_qty, purchased_qty
FROM requisition_contributions WHERE requisition_id=$1 ORDER BY order_id, product_id`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.RequisitionID, &c.OrderID, &c.ProductID, &c.Pending, &c.Purchased); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
