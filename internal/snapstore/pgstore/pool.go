// Package pgstore is the optional Postgres backend for snapstore.Store,
// adapted from the teacher's internal/db + internal/maintenance
// packages: same pgxpool construction, same advisory-lock migration
// runner, same daily-partition management, repurposed from BGP route
// events to routecache's snapshot/diff rows.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens and pings a connection pool for the given DSN.
func NewPool(ctx context.Context, dsn string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parsing DSN: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: pinging database: %w", err)
	}

	return pool, nil
}
