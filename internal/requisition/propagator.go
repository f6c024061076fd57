package requisition

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// RepositoryPort describes repository operations used by Propagator.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Requisition, error)
	ListContributions(ctx context.Context, requisitionID int64) ([]Contribution, error)
}

// Propagator keeps requisition purchased/pending aggregates in step with the
// purchase orders drawn against them.
type Propagator struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewPropagator constructs a Propagator.
func NewPropagator(repo RepositoryPort, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{repo: repo, logger: logger}
}

// Apply brings the order's contribution to the requisition in line with p.
// Each order's contribution is tracked separately and only the difference is
// added to the shared aggregates, so orders never overwrite each other. A
// propagation whose version is not newer than the last one applied for the
// order is skipped, which makes redelivery safe.
func (s *Propagator) Apply(ctx context.Context, p Propagation) (Result, error) {
	if err := validate(p); err != nil {
		return Result{}, err
	}
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = Result{}
		products, err := tx.LockProducts(ctx, p.RequisitionID)
		if err != nil {
			return err
		}
		last, found, err := tx.LastVersion(ctx, p.RequisitionID, p.OrderID)
		if err != nil {
			return err
		}
		if found && last >= p.OrderVersion {
			result.Stale = true
			return nil
		}
		current, err := tx.Contributions(ctx, p.RequisitionID, p.OrderID)
		if err != nil {
			return err
		}
		for _, productID := range affectedProducts(p, current) {
			target := targetFor(p, productID)
			prev := current[productID]
			if _, ok := products[productID]; !ok {
				result.Unmatched = append(result.Unmatched, productID)
				continue
			}
			d := Delta{
				ProductID: productID,
				Pending:   target.Pending.Sub(prev.Pending),
				Purchased: target.Purchased.Sub(prev.Purchased),
			}
			if d.Pending.IsZero() && d.Purchased.IsZero() {
				continue
			}
			if err := tx.ApplyDelta(ctx, p.RequisitionID, d); err != nil {
				return err
			}
			target.RequisitionID = p.RequisitionID
			target.OrderID = p.OrderID
			target.ProductID = productID
			if err := tx.SaveContribution(ctx, target); err != nil {
				return err
			}
			result.Deltas = append(result.Deltas, d)
		}
		return tx.SaveVersion(ctx, p.RequisitionID, p.OrderID, p.OrderVersion)
	})
	if err != nil {
		return Result{}, err
	}
	if result.Stale {
		s.logger.Info("stale propagation skipped",
			slog.Int64("requisition_id", p.RequisitionID),
			slog.Int64("order_id", p.OrderID),
			slog.Int64("order_version", p.OrderVersion))
	}
	if len(result.Unmatched) > 0 {
		s.logger.Warn("propagation lines without required product",
			slog.Int64("requisition_id", p.RequisitionID),
			slog.Int64("order_id", p.OrderID),
			slog.Any("product_ids", result.Unmatched))
	}
	return result, nil
}

// Get returns a requisition with its required products.
func (s *Propagator) Get(ctx context.Context, id int64) (Requisition, error) {
	return s.repo.Get(ctx, id)
}

// Contributions lists per-order contributions for a requisition.
func (s *Propagator) Contributions(ctx context.Context, requisitionID int64) ([]Contribution, error) {
	return s.repo.ListContributions(ctx, requisitionID)
}

func validate(p Propagation) error {
	if p.RequisitionID == 0 || p.OrderID == 0 || p.OrderVersion <= 0 {
		return fmt.Errorf("%w: requisition, order and version required", ErrInvalidPropagation)
	}
	switch p.Kind {
	case KindReserve, KindConfirm, KindRelease:
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidPropagation, p.Kind)
	}
	for _, line := range p.Lines {
		if line.ProductID == 0 || line.Quantity.IsNegative() {
			return fmt.Errorf("%w: line product %d", ErrInvalidPropagation, line.ProductID)
		}
	}
	return nil
}

// targetFor is the contribution the order should hold for productID.
func targetFor(p Propagation, productID int64) Contribution {
	qty := decimal.Zero
	for _, line := range p.Lines {
		if line.ProductID == productID {
			qty = qty.Add(line.Quantity)
		}
	}
	switch p.Kind {
	case KindReserve:
		return Contribution{Pending: qty, Purchased: decimal.Zero}
	case KindConfirm:
		return Contribution{Pending: decimal.Zero, Purchased: qty}
	}
	return Contribution{Pending: decimal.Zero, Purchased: decimal.Zero}
}

// affectedProducts is the sorted union of line products and products the
// order contributed to before, so dropped lines are withdrawn too.
func affectedProducts(p Propagation, current map[int64]Contribution) []int64 {
	seen := make(map[int64]struct{}, len(p.Lines)+len(current))
	for _, line := range p.Lines {
		seen[line.ProductID] = struct{}{}
	}
	for productID := range current {
		seen[productID] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
