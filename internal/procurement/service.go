package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/inventory"
	"github.com/odyssey-erp/odyssey-procure/internal/masterdata"
	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

const (
	approvalModule = "PO"
	auditEntity    = "purchase_order"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
	ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error)
	ListReceivingOrders(ctx context.Context) ([]PurchaseOrder, error)
	GetOutbox(ctx context.Context, id int64) (OutboxEntry, error)
	StaleOutbox(ctx context.Context, before time.Time, limit int) ([]OutboxEntry, error)
}

// LedgerPort records stock movements inside the caller's transaction.
type LedgerPort interface {
	Record(ctx context.Context, entries []inventory.Entry) ([]inventory.Movement, error)
}

// DirectoryPort answers reference checks on suppliers, products and locations.
type DirectoryPort interface {
	CheckSupplier(ctx context.Context, id int64) error
	CheckProducts(ctx context.Context, ids []int64) error
	CheckLocation(ctx context.Context, id int64) error
	DefaultLocation(ctx context.Context) (int64, error)
}

// QuotationSource loads the quotation an order is created from.
type QuotationSource interface {
	GetQuotation(ctx context.Context, id int64) (masterdata.Quotation, error)
}

// PropagatorPort applies order quantities to the originating requisition.
type PropagatorPort interface {
	Apply(ctx context.Context, p requisition.Propagation) (requisition.Result, error)
}

// Reconciler schedules a deferred propagation retry.
type Reconciler interface {
	EnqueuePropagation(ctx context.Context, outboxID int64) error
}

// AuditPort writes and reads the order audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
	Trail(ctx context.Context, entity, entityID string, limit int) ([]shared.AuditLog, error)
}

// ApprovalPort records and lists negotiation decisions.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// IdempotencyPort guards against replayed receipts.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo        RepositoryPort
	ledger      LedgerPort
	directory   DirectoryPort
	quotations  QuotationSource
	propagator  PropagatorPort
	reconciler  Reconciler
	audit       AuditPort
	approvals   ApprovalPort
	idempotency IdempotencyPort
	cache       *SummaryCache
	metrics     *Metrics
	currency    string
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, ledger LedgerPort, directory DirectoryPort, quotations QuotationSource, propagator PropagatorPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		ledger:     ledger,
		directory:  directory,
		quotations: quotations,
		propagator: propagator,
		currency:   "IDR",
		logger:     logger,
		now:        time.Now,
	}
}

// WithRecorders attaches audit, approval and idempotency stores.
func (s *Service) WithRecorders(audit AuditPort, approvals ApprovalPort, idem IdempotencyPort) *Service {
	s.audit = audit
	s.approvals = approvals
	s.idempotency = idem
	return s
}

// WithReconciler attaches the deferred propagation scheduler.
func (s *Service) WithReconciler(r Reconciler) *Service {
	s.reconciler = r
	return s
}

// WithCache attaches the order summary cache.
func (s *Service) WithCache(c *SummaryCache) *Service {
	s.cache = c
	return s
}

// WithMetrics attaches prometheus collectors.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// WithCurrency sets the display currency of summaries.
func (s *Service) WithCurrency(code string) *Service {
	if code != "" {
		s.currency = code
	}
	return s
}

// CreateOrderInput describes creation from a confirmed quotation.
type CreateOrderInput struct {
	QuotationID          int64
	Number               string
	Notes                string
	ExpectedDeliveryDate *time.Time
	AdditionalCosts      []AdditionalCost
}

// ProposalInput carries a supplier counter-proposal.
type ProposalInput struct {
	Notes                string
	ExpectedDeliveryDate *time.Time
	AdditionalCosts      []AdditionalCost
	Lines                []ProposalLine
}

// ProposalLine is one proposed line.
type ProposalLine struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Notes     string
}

// SolutionInput records how a supplier settles a discrepancy.
type SolutionInput struct {
	Type    SolutionType
	Details string
}

// change describes the side effects of one order mutation.
type change struct {
	propagate      requisition.Kind
	replaceDetails bool
	approval       shared.ApprovalAction
	note           string
	meta           map[string]any
}

// CreateOrder creates a PENDING order from a confirmed quotation and
// reserves its quantities on the requisition.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	actor, ok := shared.ActorFromContext(ctx)
	if !ok {
		return PurchaseOrder{}, shared.ErrActorRequired
	}
	quote, err := s.quotations.GetQuotation(ctx, input.QuotationID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if quote.Status != masterdata.QuotationStatusConfirmed {
		return PurchaseOrder{}, shared.WithDetails(fmt.Errorf("%w: quotation not confirmed", ErrValidation), map[string]any{
			"quotation_id": quote.ID,
			"status":       quote.Status,
		})
	}
	if len(quote.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: quotation has no lines", ErrValidation)
	}
	if err := validateCosts(input.AdditionalCosts); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.directory.CheckSupplier(ctx, quote.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}
	if input.Number == "" {
		input.Number = generateNumber("PO")
	}
	quotationID := quote.ID
	now := s.now()
	po := PurchaseOrder{
		Number:        input.Number,
		SupplierID:    quote.SupplierID,
		RequisitionID: quote.RequisitionID,
		QuotationID:   &quotationID,
		Status:        StatusPending,
		Terms: Terms{
			Notes:                input.Notes,
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			AdditionalCosts:      input.AdditionalCosts,
		},
		Version:   1,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	seen := make(map[int64]struct{}, len(quote.Lines))
	for _, line := range quote.Lines {
		if _, dup := seen[line.ProductID]; dup || !line.Quantity.IsPositive() || line.UnitPrice.IsNegative() ||
			!shared.AllFitScale(line.Quantity, line.UnitPrice) {
			return PurchaseOrder{}, shared.WithDetails(fmt.Errorf("%w: quotation line", ErrValidation), map[string]any{
				"product_id": line.ProductID,
				"quantity":   line.Quantity.String(),
				"unit_price": line.UnitPrice.String(),
			})
		}
		seen[line.ProductID] = struct{}{}
		po.Terms.Details = append(po.Terms.Details, Detail{
			ProductID:       line.ProductID,
			OrderedQuantity: line.Quantity,
			UnitPrice:       line.UnitPrice,
		})
	}
	po.Terms.Recalculate()
	if err := s.directory.CheckProducts(ctx, po.productIDs()); err != nil {
		return PurchaseOrder{}, err
	}

	var (
		created PurchaseOrder
		entry   OutboxEntry
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertOrder(ctx, po)
		if err != nil {
			return err
		}
		entry, err = tx.InsertOutbox(ctx, newOutboxEntry(created, requisition.KindReserve))
		if err != nil {
			return err
		}
		return s.recordAudit(ctx, actor.ID, "PO_CREATE", created.ID, map[string]any{
			"number":       created.Number,
			"quotation_id": quotationID,
			"total":        created.Terms.TotalAmount.String(),
		})
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.metrics.observeTransition("", StatusPending)
	s.dispatch(ctx, entry)
	return created, nil
}

// SendToSupplier marks the order as sent.
func (s *Service) SendToSupplier(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_SEND", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusSentToSupplier, StatusPending); err != nil {
			return change{}, err
		}
		return change{}, nil
	})
}

// SupplierAccept confirms the order as sent and counts it as purchased.
func (s *Service) SupplierAccept(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_SUPPLIER_ACCEPT", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusConfirmedBySupplier, StatusSentToSupplier); err != nil {
			return change{}, err
		}
		return change{propagate: requisition.KindConfirm}, nil
	})
}

// SupplierReject records a rejection. Terms under review revert to the
// original and the requisition reservation is released.
func (s *Service) SupplierReject(ctx context.Context, id int64, note string) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_SUPPLIER_REJECT", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusRejectedBySupplier, StatusSentToSupplier, StatusChangesProposed, StatusPendingInternalReview); err != nil {
			return change{}, err
		}
		c := change{propagate: requisition.KindRelease, approval: shared.ApprovalReject, note: note}
		if po.Original != nil {
			po.Terms = po.Original.Clone()
			po.Original = nil
			c.replaceDetails = true
		}
		return c, nil
	})
}

// MarkChangesProposed records that the supplier is preparing a counter-proposal.
func (s *Service) MarkChangesProposed(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_CHANGES_PROPOSED", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusChangesProposed, StatusSentToSupplier); err != nil {
			return change{}, err
		}
		return change{}, nil
	})
}

// RecordProposal stores the supplier's proposed terms for internal review.
// An order still marked as sent passes through CHANGES_PROPOSED_BY_SUPPLIER.
// The terms in force before the first proposal are kept as the snapshot.
func (s *Service) RecordProposal(ctx context.Context, id int64, input ProposalInput) (PurchaseOrder, error) {
	details, err := proposalDetails(input.Lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := validateCosts(input.AdditionalCosts); err != nil {
		return PurchaseOrder{}, err
	}
	ids := make([]int64, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ProductID)
	}
	if err := s.directory.CheckProducts(ctx, ids); err != nil {
		return PurchaseOrder{}, err
	}
	return s.mutate(ctx, id, "PO_PROPOSAL_RECORDED", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if po.Status == StatusSentToSupplier {
			if err := po.transition(StatusChangesProposed); err != nil {
				return change{}, err
			}
		}
		if err := po.require(StatusPendingInternalReview, StatusChangesProposed); err != nil {
			return change{}, err
		}
		po.snapshot()
		po.Terms = Terms{
			Notes:                input.Notes,
			ExpectedDeliveryDate: input.ExpectedDeliveryDate,
			AdditionalCosts:      input.AdditionalCosts,
			Details:              details,
		}
		po.Terms.Recalculate()
		return change{
			replaceDetails: true,
			approval:       shared.ApprovalProposalRecorded,
			meta:           map[string]any{"total": po.Terms.TotalAmount.String(), "lines": len(details)},
		}, nil
	})
}

// ConfirmRevised accepts the proposal under review as the final terms.
func (s *Service) ConfirmRevised(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_CONFIRM_REVISED", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusConfirmedBySupplier, StatusPendingInternalReview); err != nil {
			return change{}, err
		}
		po.Original = nil
		return change{propagate: requisition.KindConfirm, approval: shared.ApprovalProposalAccepted}, nil
	})
}

// AcceptOriginal discards the proposal and restores the pre-proposal terms
// and lines, then confirms the order.
func (s *Service) AcceptOriginal(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_ACCEPT_ORIGINAL", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusConfirmedBySupplier, StatusPendingInternalReview); err != nil {
			return change{}, err
		}
		if po.Original == nil || len(po.Original.Details) == 0 {
			return change{}, shared.WithDetails(ErrNoSnapshotToRevert, map[string]any{"order_id": po.ID})
		}
		po.Terms = po.Original.Clone()
		po.Original = nil
		return change{
			propagate:      requisition.KindConfirm,
			replaceDetails: true,
			approval:       shared.ApprovalOriginalRestored,
			meta:           map[string]any{"total": po.Terms.TotalAmount.String()},
		}, nil
	})
}

// Renegotiate sends the proposal back to the supplier. The snapshot stays.
func (s *Service) Renegotiate(ctx context.Context, id int64, note string) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_RENEGOTIATE", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusChangesProposed, StatusPendingInternalReview); err != nil {
			return change{}, err
		}
		return change{approval: shared.ApprovalRenegotiate, note: note}, nil
	})
}

// Cancel cancels the order. Before confirmation the requisition reservation
// is released. After confirmation a reconciliation note is mandatory and the
// requisition is left untouched for manual reconciliation.
func (s *Service) Cancel(ctx context.Context, id int64, note string) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_CANCEL", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if !po.Status.CanTransitionTo(StatusCanceled) {
			return change{}, invalidTransition(po.Status, StatusCanceled)
		}
		c := change{meta: map[string]any{"note": note}}
		if po.Status.confirmed() {
			if note == "" {
				return change{}, shared.WithDetails(fmt.Errorf("%w: reconciliation note required", ErrValidation), map[string]any{"status": string(po.Status)})
			}
			outstanding := make(map[string]string, len(po.Terms.Details))
			for _, d := range po.Terms.Details {
				outstanding[fmt.Sprintf("%d", d.ProductID)] = d.Outstanding().String()
			}
			c.meta["reconcile"] = true
			c.meta["outstanding"] = outstanding
			s.logger.Warn("confirmed order canceled, requisition needs manual reconciliation",
				slog.Int64("order_id", po.ID),
				slog.Int64("requisition_id", po.RequisitionID),
				slog.String("status", string(po.Status)))
		} else {
			c.propagate = requisition.KindRelease
			if po.Original != nil {
				po.Terms = po.Original.Clone()
				po.Original = nil
				c.replaceDetails = true
			}
		}
		po.CancelNote = note
		po.Status = StatusCanceled
		return c, nil
	})
}

// RecordSupplierSolution stores the settlement of a delivery discrepancy and
// re-derives the receiving status.
func (s *Service) RecordSupplierSolution(ctx context.Context, id int64, input SolutionInput) (PurchaseOrder, error) {
	if !input.Type.Valid() {
		return PurchaseOrder{}, shared.WithDetails(fmt.Errorf("%w: solution type", ErrValidation), map[string]any{"type": string(input.Type)})
	}
	actor, ok := shared.ActorFromContext(ctx)
	if !ok {
		return PurchaseOrder{}, shared.ErrActorRequired
	}
	return s.mutate(ctx, id, "PO_SOLUTION_RECORDED", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		switch po.Status {
		case StatusPartiallyDelivered, StatusAwaitingFutureDelivery, StatusFullyReceived:
		default:
			return change{}, invalidTransition(po.Status, StatusAwaitingFutureDelivery)
		}
		if !hasDiscrepancy(po.Terms.Details) {
			return change{}, fmt.Errorf("%w: order has no discrepancy to settle", ErrValidation)
		}
		po.Solution = &SupplierSolution{Type: input.Type, Details: input.Details, RecordedBy: actor.ID, RecordedAt: s.now()}
		if err := s.applyDerived(po); err != nil {
			return change{}, err
		}
		return change{meta: map[string]any{"type": string(input.Type)}}, nil
	})
}

// Complete closes a fully received order.
func (s *Service) Complete(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.mutate(ctx, id, "PO_COMPLETE", func(ctx context.Context, po *PurchaseOrder) (change, error) {
		if err := po.require(StatusCompleted, StatusFullyReceived); err != nil {
			return change{}, err
		}
		return change{}, nil
	})
}

// GetOrder returns an order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists orders matching filter.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, shared.Pagination, error) {
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, shared.WithDetails(fmt.Errorf("%w: status", ErrValidation), map[string]any{"status": string(filter.Status)})
	}
	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListReceipts lists the receipts posted against an order.
func (s *Service) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListReceipts(ctx, orderID)
}

// mutate runs fn against the locked order inside one transaction, persists
// the result with a version check and records its side effects. Requisition
// propagation happens after commit.
func (s *Service) mutate(ctx context.Context, id int64, action string, fn func(context.Context, *PurchaseOrder) (change, error)) (PurchaseOrder, error) {
	actor, ok := shared.ActorFromContext(ctx)
	if !ok {
		return PurchaseOrder{}, shared.ErrActorRequired
	}
	var (
		updated PurchaseOrder
		from    Status
		entry   *OutboxEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry = nil
		po, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		from = po.Status
		expected := po.Version
		c, err := fn(ctx, &po)
		if err != nil {
			return err
		}
		po.Version = expected + 1
		po.UpdatedAt = s.now()
		if err := tx.UpdateOrder(ctx, po, expected); err != nil {
			return err
		}
		if c.replaceDetails {
			if err := tx.ReplaceDetails(ctx, po.ID, po.Terms.Details); err != nil {
				return err
			}
		}
		if c.propagate != "" {
			e, err := tx.InsertOutbox(ctx, newOutboxEntry(po, c.propagate))
			if err != nil {
				return err
			}
			entry = &e
		}
		if c.approval != "" && s.approvals != nil {
			note := c.note
			if note == "" {
				note = fmt.Sprintf("PO %s %s", po.Number, po.Status)
			}
			if err := s.approvals.Record(ctx, shared.ApprovalLog{
				Module:  approvalModule,
				RefID:   shared.RefID(approvalModule, po.ID),
				ActorID: actor.ID,
				Action:  c.approval,
				Note:    note,
			}); err != nil {
				return err
			}
		}
		meta := map[string]any{"from": string(from), "to": string(po.Status), "version": po.Version}
		for k, v := range c.meta {
			meta[k] = v
		}
		if err := s.recordAudit(ctx, actor.ID, action, po.ID, meta); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		s.logger.Info("order change refused", slog.String("action", action), slog.Int64("order_id", id), slog.Any("error", err))
		return PurchaseOrder{}, err
	}
	s.metrics.observeTransition(from, updated.Status)
	s.cache.Invalidate(ctx, updated.ID, updated.Version)
	if entry != nil {
		s.dispatch(ctx, *entry)
	}
	return updated, nil
}

// require checks that the order sits in one of from and that the table
// allows the move to next, then applies it.
func (po *PurchaseOrder) require(next Status, from ...Status) error {
	for _, status := range from {
		if po.Status == status {
			return po.transition(next)
		}
	}
	return invalidTransition(po.Status, next)
}

// applyDerived moves the order to the status its counters imply.
func (s *Service) applyDerived(po *PurchaseOrder) error {
	derived := DeriveStatus(po.Terms.Details, po.Solution)
	if derived != po.Status {
		if err := po.transition(derived); err != nil {
			return err
		}
	}
	now := s.now()
	po.StatusDerivedAt = &now
	return nil
}

func proposalDetails(lines []ProposalLine) ([]Detail, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: proposal needs at least one line", ErrValidation)
	}
	seen := make(map[int64]struct{}, len(lines))
	details := make([]Detail, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 || !line.Quantity.IsPositive() || line.UnitPrice.IsNegative() ||
			!shared.AllFitScale(line.Quantity, line.UnitPrice) {
			return nil, shared.WithDetails(fmt.Errorf("%w: proposal line", ErrValidation), map[string]any{
				"product_id": line.ProductID,
				"quantity":   line.Quantity.String(),
				"unit_price": line.UnitPrice.String(),
			})
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, shared.WithDetails(fmt.Errorf("%w: duplicate product", ErrValidation), map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = struct{}{}
		details = append(details, Detail{
			ProductID:       line.ProductID,
			OrderedQuantity: line.Quantity,
			UnitPrice:       line.UnitPrice,
			Notes:           line.Notes,
		})
	}
	return details, nil
}

func validateCosts(costs []AdditionalCost) error {
	for i, c := range costs {
		if c.Description == "" || c.Amount.IsNegative() || !shared.FitsScale(c.Amount) {
			return shared.WithDetails(fmt.Errorf("%w: additional cost", ErrValidation), map[string]any{"index": i})
		}
	}
	return nil
}

// recordAudit writes inside the caller's transaction, so a failed insert
// fails the whole unit of work.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: auditEntity, EntityID: strconv.FormatInt(entityID, 10), Meta: meta}); err != nil {
		return fmt.Errorf("procurement: audit %s: %w", action, err)
	}
	return nil
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
