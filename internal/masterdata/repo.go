package masterdata

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// repo implements Repository interface
type repo struct {
	db      shared.QuerierProvider
	builder squirrel.StatementBuilderType
}

// NewRepository creates a new master data repository. Reads join the
// caller's transaction when one is open.
func NewRepository(db shared.QuerierProvider) Repository {
	return &repo{db: db, builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

func (r *repo) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	query := r.builder.Select("id", "sku", "name", "is_active", "created_at").From("products").OrderBy("id")
	if filters.ActiveOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	if filters.Limit > 0 {
		query = query.Limit(uint64(filters.Limit))
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := pgxscan.Select(ctx, r.db.Querier(ctx), &products, sql, args...); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) ProductsByID(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := r.builder.Select("id", "sku", "name", "is_active", "created_at").
		From("products").Where(squirrel.Eq{"id": ids}).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := pgxscan.Select(ctx, r.db.Querier(ctx), &products, sql, args...); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT id, code, name, is_active, created_at FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	query := r.builder.Select("id", "code", "name", "is_active", "created_at").From("suppliers").OrderBy("name")
	if filters.ActiveOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}
	if filters.Limit > 0 {
		query = query.Limit(uint64(filters.Limit))
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	var suppliers []Supplier
	if err := pgxscan.Select(ctx, r.db.Querier(ctx), &suppliers, sql, args...); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *repo) GetLocation(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT id, code, name, is_default, is_active FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Code, &l.Name, &l.IsDefault, &l.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return l, err
}

func (r *repo) DefaultLocation(ctx context.Context) (Location, error) {
	var l Location
	err := r.db.Querier(ctx).QueryRow(ctx, `SELECT id, code, name, is_default, is_active FROM locations WHERE is_default AND is_active`).
		Scan(&l.ID, &l.Code, &l.Name, &l.IsDefault, &l.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrNotFound
	}
	return l, err
}

func (r *repo) ListLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	err := pgxscan.Select(ctx, r.db.Querier(ctx), &locations, `SELECT id, code, name, is_default, is_active FROM locations ORDER BY code`)
	return locations, err
}

func (r *repo) GetQuotation(ctx context.Context, id int64) (Quotation, error) {
	q := r.db.Querier(ctx)
	var quote Quotation
	err := q.QueryRow(ctx, `SELECT id, supplier_id, requisition_id, status, notes, created_at FROM quotations WHERE id = $1`, id).
		Scan(&quote.ID, &quote.SupplierID, &quote.RequisitionID, &quote.Status, &quote.Notes, &quote.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, ErrNotFound
	}
	if err != nil {
		return Quotation{}, err
	}
	err = pgxscan.Select(ctx, q, &quote.Lines, `SELECT product_id, quantity, unit_price FROM quotation_lines WHERE quotation_id = $1 ORDER BY id`, id)
	if err != nil {
		return Quotation{}, err
	}
	return quote, nil
}
