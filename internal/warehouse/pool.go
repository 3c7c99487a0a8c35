// Package warehouse runs funnel plans against a flat Postgres events
// table, for teams that mirror their event log out of BigQuery.
package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/pathwise/funnel-cli/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the executor uses. pgxmock satisfies
// it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Connect opens a connection pool and verifies connectivity. Funnel
// queries are few and heavy, so the pool stays small.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: parse database url")
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: create pool")
	}

	ping := retryConfig()
	ping.OnRetry = resilience.Logger("warehouse ping")
	if err := resilience.Do(ctx, ping, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "warehouse: ping")
	}
	return pool, nil
}

// retryConfig governs transient-failure retries. Funnel queries are pure
// reads, so resubmitting one is safe.
func retryConfig() resilience.Config {
	return resilience.DefaultConfig()
}
