package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-procure/internal/jobs"
	"github.com/odyssey-erp/odyssey-procure/internal/procurement"
)

// OutboxService is the slice of the procurement service the propagation
// jobs drive.
type OutboxService interface {
	ReplayOutbox(ctx context.Context, id int64) error
	StaleOutbox(ctx context.Context, age time.Duration, limit int) ([]procurement.OutboxEntry, error)
}

// Enqueuer schedules a propagation replay.
type Enqueuer interface {
	EnqueuePropagation(ctx context.Context, outboxID int64) error
}

// PropagationJob retries requisition propagations that failed after the
// order change committed.
type PropagationJob struct {
	service OutboxService
	queue   Enqueuer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewPropagationJob initialises the propagation handlers.
func NewPropagationJob(service OutboxService, queue Enqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PropagationJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropagationJob{service: service, queue: queue, logger: logger, metrics: metrics}
}

// HandlePropagate replays the outbox row named in the payload. Rows already
// delivered are skipped, so redelivery is harmless.
func (j *PropagationJob) HandlePropagate(ctx context.Context, t *asynq.Task) (err error) {
	var payload PropagatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OutboxID <= 0 {
		return fmt.Errorf("requisition propagate: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskRequisitionPropagate)
	defer func() { err = tracker.End(err) }()

	err = j.service.ReplayOutbox(ctx, payload.OutboxID)
	if errors.Is(err, procurement.ErrNotFound) {
		j.logger.Warn("propagation outbox row missing", slog.Int64("outbox_id", payload.OutboxID))
		return fmt.Errorf("requisition propagate: %w", asynq.SkipRetry)
	}
	if err != nil {
		j.logger.Error("propagation replay failed", slog.Int64("outbox_id", payload.OutboxID), slog.Any("error", err))
		return err
	}
	j.logger.Info("propagation replayed", slog.Int64("outbox_id", payload.OutboxID))
	return nil
}

// HandleSweep finds pending propagations older than the payload window and
// enqueues a replay for each.
func (j *PropagationJob) HandleSweep(ctx context.Context, t *asynq.Task) (err error) {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("requisition sweep: bad payload: %w", asynq.SkipRetry)
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = 5 * time.Minute
	}
	tracker := j.metrics.Track(TaskRequisitionSweep)
	defer func() { err = tracker.End(err) }()

	entries, err := j.service.StaleOutbox(ctx, payload.OlderThan, payload.Limit)
	if err != nil {
		return err
	}
	j.metrics.SetBacklog(TaskRequisitionSweep, len(entries))
	enqueued := 0
	for _, entry := range entries {
		if err := j.queue.EnqueuePropagation(ctx, entry.ID); err != nil {
			j.logger.Warn("sweep enqueue", slog.Int64("outbox_id", entry.ID), slog.Any("error", err))
			continue
		}
		enqueued++
	}
	j.metrics.AddItems(TaskRequisitionSweep, "enqueued", enqueued)
	if len(entries) > 0 {
		j.logger.Warn("stale propagations re-enqueued", slog.Int("found", len(entries)), slog.Int("enqueued", enqueued))
	}
	return nil
}
