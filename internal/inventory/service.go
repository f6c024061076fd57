package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, productID, locationID int64) (StockItem, error)
	ListItems(ctx context.Context, filter StockFilter) ([]StockItem, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Record applies entries in order as one unit of work. When ctx already
// carries a transaction the entries commit or roll back with it.
func (s *Service) Record(ctx context.Context, entries []Entry) ([]Movement, error) {
	for i, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
	}
	var movements []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements = make([]Movement, 0, len(entries))
		for _, entry := range entries {
			m, err := s.apply(ctx, tx, entry)
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Service) apply(ctx context.Context, tx TxRepository, entry Entry) (Movement, error) {
	usable, damaged := entry.deltas()
	var before, after StockItem
	var err error
	if usable.IsZero() && damaged.IsZero() {
		before, err = tx.CurrentForUpdate(ctx, entry.ProductID, entry.LocationID)
		after = before
	} else {
		before, after, err = tx.Increment(ctx, entry.ProductID, entry.LocationID, usable, damaged, entry.ActorID)
	}
	if err != nil {
		return Movement{}, err
	}
	m := Movement{
		Ref:           uuid.New(),
		ProductID:     entry.ProductID,
		LocationID:    entry.LocationID,
		Kind:          entry.Kind,
		QtyDelta:      usable.Add(damaged),
		ReportedQty:   entry.Qty.Abs(),
		UsableBefore:  before.Usable,
		UsableAfter:   after.Usable,
		DamagedBefore: before.Damaged,
		DamagedAfter:  after.Damaged,
		ActorID:       entry.ActorID,
		Reason:        entry.Reason,
	}
	if entry.ReceiptID > 0 {
		id := entry.ReceiptID
		m.ReceiptID = &id
	}
	if entry.PurchaseOrderID > 0 {
		id := entry.PurchaseOrderID
		m.PurchaseOrderID = &id
	}
	return tx.InsertMovement(ctx, m)
}

func validateEntry(entry Entry) error {
	if entry.ProductID == 0 || entry.LocationID == 0 || !entry.Kind.Valid() {
		return ErrInvalidMovement
	}
	if entry.ActorID == 0 {
		return shared.ErrActorRequired
	}
	if !shared.FitsScale(entry.Qty) {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidQuantity, shared.QuantityScale)
	}
	if entry.Kind == KindAdjustment {
		if entry.Qty.IsZero() {
			return ErrInvalidQuantity
		}
		return nil
	}
	if !entry.Qty.IsPositive() {
		return ErrInvalidQuantity
	}
	return nil
}

// AdjustmentInput describes a manual correction or opening balance.
type AdjustmentInput struct {
	ProductID  int64
	LocationID int64
	Qty        decimal.Decimal
	Damaged    bool
	Initial    bool
	Reason     string
	ActorID    int64
}

// Adjust posts a signed correction, or an opening balance when Initial is set.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Movement, error) {
	kind := KindAdjustment
	if input.Initial {
		if input.Damaged {
			return Movement{}, ErrInvalidMovement
		}
		kind = KindInitial
	}
	if input.Reason == "" {
		return Movement{}, fmt.Errorf("%w: reason required", ErrInvalidMovement)
	}
	movements, err := s.Record(ctx, []Entry{{
		ProductID:  input.ProductID,
		LocationID: input.LocationID,
		Kind:       kind,
		Qty:        input.Qty,
		Damaged:    input.Damaged,
		ActorID:    input.ActorID,
		Reason:     input.Reason,
	}})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:"+string(kind), movements[0])
	return movements[0], nil
}

// IssueInput describes usable stock leaving a location.
type IssueInput struct {
	ProductID  int64
	LocationID int64
	Qty        decimal.Decimal
	Transfer   bool
	Reason     string
	ActorID    int64
}

// Issue removes usable stock for a sale or an outgoing transfer.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Movement, error) {
	kind := KindOutboundSale
	if input.Transfer {
		kind = KindOutboundTransfer
	}
	movements, err := s.Record(ctx, []Entry{{
		ProductID:  input.ProductID,
		LocationID: input.LocationID,
		Kind:       kind,
		Qty:        input.Qty,
		ActorID:    input.ActorID,
		Reason:     input.Reason,
	}})
	if err != nil {
		return Movement{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:"+string(kind), movements[0])
	return movements[0], nil
}

// GetStock returns counters for one product/location.
func (s *Service) GetStock(ctx context.Context, productID, locationID int64) (StockItem, error) {
	if productID == 0 || locationID == 0 {
		return StockItem{}, errors.New("inventory: product and location required")
	}
	return s.repo.GetItem(ctx, productID, locationID)
}

// ListStock lists counters.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) ([]StockItem, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.ListItems(ctx, filter)
}

// ListMovements runs the movement audit query.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	for _, k := range filter.Kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: kind %q", ErrInvalidMovement, k)
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, fmt.Errorf("%w: from must precede to", ErrInvalidMovement)
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 200
	}
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, m Movement) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_movement",
		EntityID: m.Ref.String(),
		Meta: map[string]any{
			"product_id":  m.ProductID,
			"location_id": m.LocationID,
			"qty_delta":   m.QtyDelta.String(),
			"reason":      m.Reason,
		},
		At: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("inventory audit", slog.Any("error", err))
	}
}
