package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-procure/internal/jobs"
	"github.com/odyssey-erp/odyssey-procure/internal/procurement"
)

// StatusAuditor re-derives order statuses.
type StatusAuditor interface {
	AuditStatuses(ctx context.Context, repair bool) ([]procurement.Drift, error)
}

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceJob runs the periodic consistency and housekeeping tasks.
type MaintenanceJob struct {
	auditor StatusAuditor
	keys    KeyCleaner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewMaintenanceJob initialises the maintenance handlers.
func NewMaintenanceJob(auditor StatusAuditor, keys KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *MaintenanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceJob{auditor: auditor, keys: keys, logger: logger, metrics: metrics}
}

// HandleStatusAudit reports, and optionally repairs, status drift.
func (j *MaintenanceJob) HandleStatusAudit(ctx context.Context, t *asynq.Task) (err error) {
	var payload StatusAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("status audit: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskStatusAudit)
	defer func() { err = tracker.End(err) }()

	drifts, err := j.auditor.AuditStatuses(ctx, payload.Repair)
	if err != nil {
		return err
	}
	repaired := 0
	for _, d := range drifts {
		if d.Repaired {
			repaired++
		}
	}
	j.metrics.AddItems(TaskStatusAudit, "drift", len(drifts))
	j.metrics.AddItems(TaskStatusAudit, "repaired", repaired)
	j.logger.Info("status audit finished", slog.Int("drift", len(drifts)), slog.Int("repaired", repaired), slog.Bool("repair", payload.Repair))
	return nil
}

// HandleCleanup deletes idempotency keys past retention.
func (j *MaintenanceJob) HandleCleanup(ctx context.Context, t *asynq.Task) (err error) {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("idempotency cleanup: bad payload: %w", asynq.SkipRetry)
	}
	if payload.Retention <= 0 {
		payload.Retention = 7 * 24 * time.Hour
	}
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.keys.Cleanup(ctx, payload.Retention)
	if err != nil {
		return err
	}
	j.metrics.AddItems(TaskIdempotencyCleanup, "deleted", int(removed))
	j.logger.Info("idempotency keys cleaned", slog.Int64("deleted", removed))
	return nil
}
