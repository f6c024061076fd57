package procurement

import (
	"context"
	"log/slog"
)

// Drift is an order whose stored status disagrees with its counters.
type Drift struct {
	OrderID  int64  `json:"order_id"`
	Number   string `json:"number"`
	Stored   Status `json:"stored"`
	Derived  Status `json:"derived"`
	Repaired bool   `json:"repaired"`
}

// AuditStatuses re-derives the status of every order in a receiving state and
// reports disagreements. Stored statuses are only rewritten when repair is set.
func (s *Service) AuditStatuses(ctx context.Context, repair bool) ([]Drift, error) {
	orders, err := s.repo.ListReceivingOrders(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []Drift
	for _, po := range orders {
		derived := DeriveStatus(po.Terms.Details, po.Solution)
		if derived == po.Status {
			continue
		}
		d := Drift{OrderID: po.ID, Number: po.Number, Stored: po.Status, Derived: derived}
		if repair {
			repaired, err := s.repairStatus(ctx, po.ID)
			if err != nil {
				return drifts, err
			}
			d.Repaired = repaired
		}
		s.logger.Warn("order status drift",
			slog.Int64("order_id", po.ID),
			slog.String("stored", string(po.Status)),
			slog.String("derived", string(derived)),
			slog.Bool("repaired", d.Repaired))
		drifts = append(drifts, d)
	}
	s.metrics.observeDrift(len(drifts))
	return drifts, nil
}

func (s *Service) repairStatus(ctx context.Context, id int64) (bool, error) {
	repaired := false
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		repaired = false
		po, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !po.Status.Receivable() && po.Status != StatusFullyReceived {
			return nil
		}
		derived := DeriveStatus(po.Terms.Details, po.Solution)
		if derived == po.Status {
			return nil
		}
		from := po.Status
		now := s.now()
		po.Status = derived
		po.StatusDerivedAt = &now
		expected := po.Version
		po.Version = expected + 1
		po.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, po, expected); err != nil {
			return err
		}
		if err := s.recordAudit(ctx, 0, "PO_STATUS_REPAIR", po.ID, map[string]any{"from": string(from), "to": string(derived)}); err != nil {
			return err
		}
		updated = po
		repaired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if repaired {
		s.cache.Invalidate(ctx, updated.ID, updated.Version)
	}
	return repaired, nil
}
