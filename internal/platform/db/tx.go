package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

var tracer = otel.Tracer("odyssey-procure/db")

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type Querier = shared.Querier

type txKey struct{}

// TxManager runs units of work inside a RepeatableRead transaction carried in
// the context. Repositories obtain their querier via Querier so that every
// write made during one request lands in the same transaction.
type TxManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoff    time.Duration
}

// NewTxManager constructs a TxManager. maxRetries bounds how often a unit of
// work is replayed after a serialization failure or version conflict.
func NewTxManager(pool *pgxpool.Pool, maxRetries int) *TxManager {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxManager{pool: pool, maxRetries: maxRetries, backoff: 20 * time.Millisecond}
}

// RunInTx executes fn inside a transaction. A transaction already present in
// ctx is joined rather than nested.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return retry(ctx, m.maxRetries, m.backoff, func(attempt int) error {
		return m.runOnce(ctx, attempt, fn)
	})
}

func (m *TxManager) runOnce(ctx context.Context, attempt int, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracer.Start(ctx, "db.transaction", trace.WithAttributes(
		attribute.String("tx.isolation", string(pgx.RepeatableRead)),
		attribute.Int("tx.attempt", attempt),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}

// Querier returns the transaction in ctx, or the pool when there is none.
func (m *TxManager) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return m.pool
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// IsRetryable reports whether a failed unit of work may be replayed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrConcurrentModification) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports a 23505 error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsCheckViolation reports a 23514 error.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

func retry(ctx context.Context, maxRetries int, backoff time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn(attempt)
		if !IsRetryable(err) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt+1)):
		}
	}
	if errors.Is(err, shared.ErrConcurrentModification) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrConcurrentModification, err)
}
