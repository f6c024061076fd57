package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ID       int64          `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditLogger writes and reads the audit_logs trail. Writes join the
// transaction carried by ctx, so a rolled back change leaves no entry.
type AuditLogger struct {
	db QuerierProvider
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db QuerierProvider) *AuditLogger {
	return &AuditLogger{db: db}
}

// Record persists the log entry. A missing actor is taken from ctx.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.ActorID == 0 {
		if actor, ok := ActorFromContext(ctx); ok {
			log.ActorID = actor.ID
		}
	}
	var metaJSON []byte
	if len(log.Meta) > 0 {
		encoded, err := json.Marshal(log.Meta)
		if err != nil {
			return err
		}
		metaJSON = encoded
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := l.db.Querier(ctx).Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// Trail returns the newest entries for one entity, oldest first.
func (l *AuditLogger) Trail(ctx context.Context, entity, entityID string, limit int) ([]AuditLog, error) {
	if l == nil {
		return nil, errors.New("audit logger not initialised")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.Querier(ctx).Query(ctx, `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at FROM (
	SELECT * FROM audit_logs WHERE entity = $1 AND entity_id = $2 ORDER BY occurred_at DESC, id DESC LIMIT $3
) t ORDER BY occurred_at ASC, id ASC`, entity, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditLog
	for rows.Next() {
		var log AuditLog
		var meta []byte
		if err := rows.Scan(&log.ID, &log.ActorID, &log.Action, &log.Entity, &log.EntityID, &meta, &log.At); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &log.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, log)
	}
	return out, rows.Err()
}
