package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
)

func newOutboxEntry(po PurchaseOrder, kind requisition.Kind) OutboxEntry {
	return OutboxEntry{
		PurchaseOrderID: po.ID,
		RequisitionID:   po.RequisitionID,
		OrderVersion:    po.Version,
		Kind:            kind,
		Lines:           po.propagationLines(),
		Status:          OutboxPending,
	}
}

// dispatch applies a committed propagation right away. A failure leaves the
// outbox row pending and schedules a retry; the order change itself stands.
func (s *Service) dispatch(ctx context.Context, entry OutboxEntry) {
	err := s.deliver(ctx, entry)
	if err == nil {
		return
	}
	s.logger.Error("requisition propagation deferred",
		slog.Int64("outbox_id", entry.ID),
		slog.Int64("order_id", entry.PurchaseOrderID),
		slog.Int64("requisition_id", entry.RequisitionID),
		slog.Int64("order_version", entry.OrderVersion),
		slog.String("kind", string(entry.Kind)),
		slog.Any("error", err))
	if s.reconciler == nil {
		return
	}
	if err := s.reconciler.EnqueuePropagation(ctx, entry.ID); err != nil {
		s.logger.Error("enqueue propagation retry", slog.Int64("outbox_id", entry.ID), slog.Any("error", err))
	}
}

// deliver applies entry and records the outcome on its outbox row.
func (s *Service) deliver(ctx context.Context, entry OutboxEntry) error {
	if s.propagator == nil {
		return fmt.Errorf("procurement: requisition propagator not configured")
	}
	result, applyErr := s.propagator.Apply(ctx, entry.Propagation())
	status, lastErr := OutboxDone, ""
	if applyErr != nil {
		status, lastErr = OutboxPending, applyErr.Error()
		s.metrics.observePropagation("failed")
	} else {
		s.metrics.observePropagation(propagationOutcome(result))
	}
	markErr := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.MarkOutbox(ctx, entry.ID, status, lastErr)
	})
	if applyErr != nil {
		return applyErr
	}
	if markErr != nil {
		// The version guard makes the next attempt a no-op.
		s.logger.Warn("mark outbox done", slog.Int64("outbox_id", entry.ID), slog.Any("error", markErr))
	}
	return nil
}

// ReplayOutbox retries a pending propagation. Entries already delivered are
// skipped.
func (s *Service) ReplayOutbox(ctx context.Context, id int64) error {
	entry, err := s.repo.GetOutbox(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status == OutboxDone {
		return nil
	}
	return s.deliver(ctx, entry)
}

// StaleOutbox lists propagations still pending after age.
func (s *Service) StaleOutbox(ctx context.Context, age time.Duration, limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.StaleOutbox(ctx, s.now().Add(-age), limit)
}

func propagationOutcome(r requisition.Result) string {
	if r.Stale {
		return "stale"
	}
	return "applied"
}
