package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zimship/db"
)

// Harness owns a migrated pool for one test run. Shared databases get a
// per-run schema that Close drops.
type Harness struct {
	pool      *pgxpool.Pool
	dsn       string
	container *PGContainer
	schema    string
}

// Open picks a database in this order: dsn, STRESS_TEST_PG_DSN or
// DATABASE_URL, a testcontainers Postgres when docker answers, then a local
// Postgres on 5432.
func Open(ctx context.Context, dsn string, envDSN ...string) (*Harness, error) {
	h := &Harness{dsn: dsn}
	for _, v := range envDSN {
		if h.dsn == "" {
			h.dsn = v
		}
	}

	shared := h.dsn != ""
	if !shared {
		var err error
		if DockerAvailable(ctx) {
			h.container, h.dsn, err = StartPostgres16(ctx)
		} else {
			h.dsn, err = InitLocalDatabase(ctx)
		}
		if err != nil {
			return nil, err
		}
	}

	opts := []db.PoolOption{db.WithMaxConns(32), db.WithConnLifetime(5 * time.Minute)}
	if shared {
		h.schema = fmt.Sprintf("stress_run_%d", time.Now().UnixNano())
		if err := h.createSchema(ctx); err != nil {
			h.Close(ctx)
			return nil, err
		}
		opts = append(opts, db.WithSearchPath(h.schema+",public"))
	}

	pool, err := db.NewPool(ctx, h.dsn, opts...)
	if err != nil {
		h.Close(ctx)
		return nil, err
	}
	h.pool = pool

	if err := db.Migrate(ctx, pool); err != nil {
		h.Close(ctx)
		return nil, err
	}
	return h, nil
}

func (h *Harness) createSchema(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, h.dsn)
	if err != nil {
		return fmt.Errorf("connect for schema: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{h.schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", h.schema, err)
	}
	return nil
}

func (h *Harness) Pool() *pgxpool.Pool { return h.pool }

// Reset truncates every application table.
func (h *Harness) Reset(ctx context.Context) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tbl := range db.Tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{tbl}.Sanitize()+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
	}
	return tx.Commit(ctx)
}

// Close releases the pool, drops the per-run schema and stops the
// container, ignoring errors.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.schema != "" {
		if conn, err := pgx.Connect(ctx, h.dsn); err == nil {
			_, _ = conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{h.schema}.Sanitize()+" CASCADE")
			conn.Close(ctx)
		}
	}
	_ = h.container.Terminate(ctx)
}
