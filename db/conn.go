package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOption tweaks the parsed pool configuration before connecting.
type PoolOption func(*pgxpool.Config)

// WithMaxConns caps the number of open connections.
func WithMaxConns(n int32) PoolOption {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// WithConnLifetime bounds how long a connection is reused.
func WithConnLifetime(d time.Duration) PoolOption {
	return func(cfg *pgxpool.Config) {
		cfg.MaxConnLifetime = d
	}
}

// NewPool constructs a pgx connection pool using the provided connection string.
func NewPool(ctx context.Context, connString string, opts ...PoolOption) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("db: parse config: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	return pool, nil
}

// WithSearchPath pins every connection to schema, used to isolate test runs
// sharing one database.
func WithSearchPath(schema string) PoolOption {
	return func(cfg *pgxpool.Config) {
		if schema != "" {
			cfg.ConnConfig.RuntimeParams["search_path"] = schema
		}
	}
}
