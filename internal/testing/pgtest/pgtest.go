//go:build integration

// Package pgtest starts a throwaway PostgreSQL with the schema applied.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/odyssey-erp/odyssey-procure/internal/platform/db"
)

// Database bundles the pool and a TxManager over it.
type Database struct {
	Pool *pgxpool.Pool
	Tx   *db.TxManager
	DSN  string
}

// Start runs postgres:16-alpine, applies migrations and registers cleanup.
func Start(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("procure_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := db.NewMigrator(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())

	pool, err := db.New(ctx, dsn, db.PoolConfig{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return &Database{Pool: pool, Tx: db.NewTxManager(pool, 5), DSN: dsn}
}

// Exec runs seed statements in order.
func (d *Database) Exec(t *testing.T, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		_, err := d.Pool.Exec(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
}
