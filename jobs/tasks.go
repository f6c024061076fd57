package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries requisition propagation retries.
	QueueCritical = "critical"

	// TaskRequisitionPropagate replays one pending outbox propagation.
	TaskRequisitionPropagate = "requisition:propagate"
	// TaskRequisitionSweep re-enqueues propagations left pending.
	TaskRequisitionSweep = "requisition:sweep"
	// TaskStatusAudit re-derives receiving statuses and reports drift.
	TaskStatusAudit = "procurement:status-audit"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// PropagatePayload identifies the outbox row to replay.
type PropagatePayload struct {
	OutboxID int64 `json:"outbox_id"`
}

// SweepPayload bounds one sweep run.
type SweepPayload struct {
	OlderThan time.Duration `json:"older_than"`
	Limit     int           `json:"limit"`
}

// StatusAuditPayload selects report-only or repair mode.
type StatusAuditPayload struct {
	Repair bool `json:"repair"`
}

// CleanupPayload sets key retention.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewPropagateTask builds a propagation replay task. The task ID dedupes
// retries of the same outbox row while one is queued.
func NewPropagateTask(outboxID int64) (*asynq.Task, error) {
	body, err := json.Marshal(PropagatePayload{OutboxID: outboxID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequisitionPropagate, body,
		asynq.Queue(QueueCritical),
		asynq.TaskID(propagateTaskID(outboxID)),
		asynq.MaxRetry(10),
	), nil
}

// NewSweepTask builds the outbox sweep task.
func NewSweepTask(olderThan time.Duration, limit int) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{OlderThan: olderThan, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequisitionSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewStatusAuditTask builds the status drift audit task.
func NewStatusAuditTask(repair bool) (*asynq.Task, error) {
	body, err := json.Marshal(StatusAuditPayload{Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatusAudit, body, asynq.Queue(QueueDefault)), nil
}

// NewCleanupTask builds the idempotency cleanup task.
func NewCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

func propagateTaskID(outboxID int64) string {
	return fmt.Sprintf("propagate:%d", outboxID)
}
