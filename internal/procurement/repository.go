package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// Transactor runs units of work and exposes the querier bound to them.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Querier(ctx context.Context) shared.Querier
}

// Repository provides PostgreSQL backed persistence for purchase orders.
type Repository struct {
	db      Transactor
	builder squirrel.StatementBuilderType
}

// NewRepository constructs repository.
func NewRepository(db Transactor) *Repository {
	return &Repository{db: db, builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	LockOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdateOrder(ctx context.Context, po PurchaseOrder, expectedVersion int64) error
	ReplaceDetails(ctx context.Context, orderID int64, details []Detail) error
	UpdateDetail(ctx context.Context, orderID int64, d Detail) error
	InsertReceipt(ctx context.Context, r Receipt) (Receipt, error)
	InsertOutbox(ctx context.Context, e OutboxEntry) (OutboxEntry, error)
	MarkOutbox(ctx context.Context, id int64, status OutboxStatus, lastErr string) error
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

var orderColumns = []string{
	"id", "number", "supplier_id", "requisition_id", "quotation_id", "status", "notes",
	"expected_delivery_date", "additional_costs", "products_subtotal", "total_amount",
	"original_terms", "solution_type", "solution_details", "solution_recorded_by",
	"solution_recorded_at", "cancel_note", "version", "status_derived_at", "created_by",
	"created_at", "updated_at",
}

const detailColumns = `product_id, ordered_qty, unit_price, subtotal, received_qty, received_damaged_qty, received_missing_qty, notes`

func (t *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	costs, err := json.Marshal(nonNilCosts(po.Terms.AdditionalCosts))
	if err != nil {
		return PurchaseOrder{}, err
	}
	err = t.q.QueryRow(ctx, `INSERT INTO purchase_orders
(number, supplier_id, requisition_id, quotation_id, status, notes, expected_delivery_date, additional_costs,
 products_subtotal, total_amount, version, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
RETURNING id`,
		po.Number, po.SupplierID, po.RequisitionID, po.QuotationID, string(po.Status), po.Terms.Notes,
		po.Terms.ExpectedDeliveryDate, costs, po.Terms.ProductsSubtotal, po.Terms.TotalAmount,
		po.Version, po.CreatedBy, po.CreatedAt).Scan(&po.ID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: insert order: %w", err)
	}
	if err := t.insertDetails(ctx, po.ID, po.Terms.Details); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// LockOrder reads the order under FOR UPDATE so writers to one order queue up.
func (t *txRepo) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := t.q.QueryRow(ctx, `SELECT `+joinColumns(orderColumns)+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
	po, err := scanOrder(row)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Terms.Details, err = loadDetails(ctx, t.q, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// UpdateOrder writes the header when the stored version still matches.
func (t *txRepo) UpdateOrder(ctx context.Context, po PurchaseOrder, expectedVersion int64) error {
	costs, err := json.Marshal(nonNilCosts(po.Terms.AdditionalCosts))
	if err != nil {
		return err
	}
	var original []byte
	if po.Original != nil {
		if original, err = json.Marshal(po.Original); err != nil {
			return err
		}
	}
	var (
		solutionType    *string
		solutionDetails string
		solutionBy      *int64
		solutionAt      *time.Time
	)
	if po.Solution != nil {
		st := string(po.Solution.Type)
		solutionType = &st
		solutionDetails = po.Solution.Details
		solutionBy = &po.Solution.RecordedBy
		solutionAt = &po.Solution.RecordedAt
	}
	tag, err := t.q.Exec(ctx, `UPDATE purchase_orders SET
status = $3, notes = $4, expected_delivery_date = $5, additional_costs = $6, products_subtotal = $7,
total_amount = $8, original_terms = $9, solution_type = $10, solution_details = $11,
solution_recorded_by = $12, solution_recorded_at = $13, cancel_note = $14, version = $15,
status_derived_at = $16, updated_at = $17
WHERE id = $1 AND version = $2`,
		po.ID, expectedVersion, string(po.Status), po.Terms.Notes, po.Terms.ExpectedDeliveryDate, costs,
		po.Terms.ProductsSubtotal, po.Terms.TotalAmount, original, solutionType, solutionDetails,
		solutionBy, solutionAt, po.CancelNote, po.Version, po.StatusDerivedAt, po.UpdatedAt)
	if err != nil {
		return fmt.Errorf("procurement: update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: order %d version %d: %w", po.ID, expectedVersion, shared.ErrConcurrentModification)
	}
	return nil
}

// ReplaceDetails deletes the live lines and inserts details in their place.
func (t *txRepo) ReplaceDetails(ctx context.Context, orderID int64, details []Detail) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM purchase_order_details WHERE purchase_order_id = $1`, orderID); err != nil {
		return fmt.Errorf("procurement: delete details: %w", err)
	}
	return t.insertDetails(ctx, orderID, details)
}

func (t *txRepo) insertDetails(ctx context.Context, orderID int64, details []Detail) error {
	for _, d := range details {
		_, err := t.q.Exec(ctx, `INSERT INTO purchase_order_details (purchase_order_id, `+detailColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			orderID, d.ProductID, d.OrderedQuantity, d.UnitPrice, d.Subtotal,
			d.ReceivedQuantity, d.ReceivedDamagedQuantity, d.ReceivedMissingQuantity, d.Notes)
		if err != nil {
			return fmt.Errorf("procurement: insert detail %d: %w", d.ProductID, err)
		}
	}
	return nil
}

func (t *txRepo) UpdateDetail(ctx context.Context, orderID int64, d Detail) error {
	tag, err := t.q.Exec(ctx, `UPDATE purchase_order_details
SET received_qty = $3, received_damaged_qty = $4, received_missing_qty = $5
WHERE purchase_order_id = $1 AND product_id = $2`,
		orderID, d.ProductID, d.ReceivedQuantity, d.ReceivedDamagedQuantity, d.ReceivedMissingQuantity)
	if err != nil {
		return fmt.Errorf("procurement: update detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertReceipt(ctx context.Context, r Receipt) (Receipt, error) {
	var key *string
	if r.IdempotencyKey != "" {
		key = &r.IdempotencyKey
	}
	err := t.q.QueryRow(ctx, `INSERT INTO receipts (purchase_order_id, location_id, receipt_date, received_by, notes, idempotency_key)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		r.PurchaseOrderID, r.LocationID, r.ReceiptDate, r.ReceivingUserID, r.Notes, key).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("procurement: insert receipt: %w", err)
	}
	for _, line := range r.Lines {
		_, err := t.q.Exec(ctx, `INSERT INTO receipt_lines (receipt_id, product_id, qty_ok, qty_damaged, qty_missing, notes)
VALUES ($1, $2, $3, $4, $5, $6)`, r.ID, line.ProductID, line.QtyOK, line.QtyDamaged, line.QtyMissing, line.Notes)
		if err != nil {
			return Receipt{}, fmt.Errorf("procurement: insert receipt line: %w", err)
		}
	}
	return r, nil
}

func (t *txRepo) InsertOutbox(ctx context.Context, e OutboxEntry) (OutboxEntry, error) {
	lines, err := json.Marshal(e.Lines)
	if err != nil {
		return OutboxEntry{}, err
	}
	err = t.q.QueryRow(ctx, `INSERT INTO propagation_outbox (purchase_order_id, requisition_id, order_version, kind, lines, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		e.PurchaseOrderID, e.RequisitionID, e.OrderVersion, string(e.Kind), lines, string(e.Status)).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("procurement: insert outbox: %w", err)
	}
	return e, nil
}

func (t *txRepo) MarkOutbox(ctx context.Context, id int64, status OutboxStatus, lastErr string) error {
	var processedAt *time.Time
	if status == OutboxDone {
		now := time.Now()
		processedAt = &now
	}
	_, err := t.q.Exec(ctx, `UPDATE propagation_outbox
SET status = $2, attempts = attempts + 1, last_error = $3, processed_at = COALESCE($4, processed_at)
WHERE id = $1`, id, string(status), lastErr, processedAt)
	return err
}

// GetOrder loads an order and its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	q := r.db.Querier(ctx)
	po, err := scanOrder(q.QueryRow(ctx, `SELECT `+joinColumns(orderColumns)+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Terms.Details, err = loadDetails(ctx, q, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListOrders returns one page of orders and the total match count.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := squirrel.And{}
	if filter.Status != "" {
		where = append(where, squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.SupplierID > 0 {
		where = append(where, squirrel.Eq{"supplier_id": filter.SupplierID})
	}
	if filter.RequisitionID > 0 {
		where = append(where, squirrel.Eq{"requisition_id": filter.RequisitionID})
	}
	q := r.db.Querier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From("purchase_orders").Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	listSQL, args, err := r.builder.Select(orderColumns...).From("purchase_orders").Where(where).
		OrderBy("id DESC").Limit(uint64(perPage)).Offset(uint64(shared.Offset(page, perPage))).ToSql()
	if err != nil {
		return nil, 0, err
	}
	orders, err := r.queryOrders(ctx, q, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListReceivingOrders returns every order whose status depends on receipts.
func (r *Repository) ListReceivingOrders(ctx context.Context) ([]PurchaseOrder, error) {
	sql, args, err := r.builder.Select(orderColumns...).From("purchase_orders").
		Where(squirrel.Eq{"status": []string{
			string(StatusConfirmedBySupplier), string(StatusPartiallyDelivered),
			string(StatusAwaitingFutureDelivery), string(StatusFullyReceived),
		}}).OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	return r.queryOrders(ctx, r.db.Querier(ctx), sql, args...)
}

func (r *Repository) queryOrders(ctx context.Context, q shared.Querier, sql string, args ...any) ([]PurchaseOrder, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, po)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Terms.Details, err = loadDetails(ctx, q, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// ListReceipts returns the receipts of an order, oldest first.
func (r *Repository) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	q := r.db.Querier(ctx)
	rows, err := q.Query(ctx, `SELECT id, purchase_order_id, location_id, receipt_date, received_by, notes, COALESCE(idempotency_key, ''), created_at
FROM receipts WHERE purchase_order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	var receipts []Receipt
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.PurchaseOrderID, &rc.LocationID, &rc.ReceiptDate, &rc.ReceivingUserID, &rc.Notes, &rc.IdempotencyKey, &rc.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range receipts {
		lines, err := q.Query(ctx, `SELECT product_id, qty_ok, qty_damaged, qty_missing, notes FROM receipt_lines WHERE receipt_id = $1 ORDER BY id`, receipts[i].ID)
		if err != nil {
			return nil, err
		}
		for lines.Next() {
			var l ReceiptLine
			if err := lines.Scan(&l.ProductID, &l.QtyOK, &l.QtyDamaged, &l.QtyMissing, &l.Notes); err != nil {
				lines.Close()
				return nil, err
			}
			receipts[i].Lines = append(receipts[i].Lines, l)
		}
		lines.Close()
		if err := lines.Err(); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}

const outboxColumns = `id, purchase_order_id, requisition_id, order_version, kind, lines, status, attempts, last_error, created_at, processed_at`

// GetOutbox loads one outbox entry.
func (r *Repository) GetOutbox(ctx context.Context, id int64) (OutboxEntry, error) {
	e, err := scanOutbox(r.db.Querier(ctx).QueryRow(ctx, `SELECT `+outboxColumns+` FROM propagation_outbox WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return OutboxEntry{}, ErrNotFound
	}
	return e, err
}

// StaleOutbox lists pending entries created before the cutoff.
func (r *Repository) StaleOutbox(ctx context.Context, before time.Time, limit int) ([]OutboxEntry, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT `+outboxColumns+` FROM propagation_outbox
WHERE status = $1 AND created_at < $2 ORDER BY id LIMIT $3`, string(OutboxPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutboxEntry
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanOutbox(row pgx.Row) (OutboxEntry, error) {
	var (
		e     OutboxEntry
		kind  string
		stat  string
		lines []byte
	)
	if err := row.Scan(&e.ID, &e.PurchaseOrderID, &e.RequisitionID, &e.OrderVersion, &kind, &lines, &stat, &e.Attempts, &e.LastError, &e.CreatedAt, &e.ProcessedAt); err != nil {
		return OutboxEntry{}, err
	}
	e.Kind = requisition.Kind(kind)
	e.Status = OutboxStatus(stat)
	if err := json.Unmarshal(lines, &e.Lines); err != nil {
		return OutboxEntry{}, fmt.Errorf("procurement: decode outbox lines: %w", err)
	}
	return e, nil
}

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var (
		po              PurchaseOrder
		status          string
		costs           []byte
		original        []byte
		solutionType    *string
		solutionDetails string
		solutionBy      *int64
		solutionAt      *time.Time
	)
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.RequisitionID, &po.QuotationID, &status, &po.Terms.Notes,
		&po.Terms.ExpectedDeliveryDate, &costs, &po.Terms.ProductsSubtotal, &po.Terms.TotalAmount,
		&original, &solutionType, &solutionDetails, &solutionBy, &solutionAt, &po.CancelNote, &po.Version,
		&po.StatusDerivedAt, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	if len(costs) > 0 {
		if err := json.Unmarshal(costs, &po.Terms.AdditionalCosts); err != nil {
			return PurchaseOrder{}, fmt.Errorf("procurement: decode additional costs: %w", err)
		}
	}
	if len(original) > 0 {
		var terms Terms
		if err := json.Unmarshal(original, &terms); err != nil {
			return PurchaseOrder{}, fmt.Errorf("procurement: decode original terms: %w", err)
		}
		po.Original = &terms
	}
	if solutionType != nil {
		po.Solution = &SupplierSolution{Type: SolutionType(*solutionType), Details: solutionDetails}
		if solutionBy != nil {
			po.Solution.RecordedBy = *solutionBy
		}
		if solutionAt != nil {
			po.Solution.RecordedAt = *solutionAt
		}
	}
	return po, nil
}

func loadDetails(ctx context.Context, q shared.Querier, orderID int64) ([]Detail, error) {
	rows, err := q.Query(ctx, `SELECT `+detailColumns+` FROM purchase_order_details WHERE purchase_order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ProductID, &d.OrderedQuantity, &d.UnitPrice, &d.Subtotal, &d.ReceivedQuantity,
			&d.ReceivedDamagedQuantity, &d.ReceivedMissingQuantity, &d.Notes); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func nonNilCosts(costs []AdditionalCost) []AdditionalCost {
	if costs == nil {
		return []AdditionalCost{}
	}
	return costs
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
