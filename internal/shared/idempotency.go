package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const cleanupBatch = 1000

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore persists processed keys. Inside a unit of work the key is
// written with the same transaction, so a rolled back request frees its key.
type IdempotencyStore struct {
	db  QuerierProvider
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db QuerierProvider) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// CheckAndInsert claims key within module. A second claim fails with
// ErrIdempotencyConflict carrying the key and module as details.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" || module == "" {
		return errors.New("idempotency key and module required")
	}
	_, err := s.db.Querier(ctx).Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now().UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return WithDetails(ErrIdempotencyConflict, map[string]any{"key": key, "module": module})
	}
	return err
}

// Cleanup removes keys older than the retention window in bounded batches
// and reports how many were dropped.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	if olderThan <= 0 {
		return 0, errors.New("idempotency retention must be positive")
	}
	cutoff := s.now().UTC().Add(-olderThan)
	var total int64
	for {
		tag, err := s.db.Querier(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE ctid IN (
	SELECT ctid FROM idempotency_keys WHERE created_at < $1 LIMIT $2
)`, cutoff, cleanupBatch)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < cleanupBatch {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
