// Package postgres journals terminal invocation outcomes into Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the invocation journal.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Journal writes one row per terminal invocation outcome.
type Journal struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed journal using the provided config.
func New(ctx context.Context, cfg Config) (*Journal, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("journal dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "enrichment_invocations"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Journal{
		pool:  pool,
		table: table,
	}, nil
}

// NewWithPool constructs a journal from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Journal, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "enrichment_invocations"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Journal{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (j *Journal) Close() {
	if j == nil || j.pool == nil {
		return
	}
	j.pool.Close()
}

// RecordInvocation inserts one journal row. It assumes a table schema like:
//
//	CREATE TABLE enrichment_invocations (
//		invocation_id UUID PRIMARY KEY,
//		webpage_id TEXT NOT NULL,
//		worker_id TEXT NOT NULL,
//		outcome TEXT NOT NULL,
//		via TEXT,
//		fields_extracted INT NOT NULL,
//		nodes_updated INT NOT NULL,
//		reason TEXT,
//		duration_ms BIGINT NOT NULL,
//		started_at TIMESTAMPTZ NOT NULL,
//		created_at TIMESTAMPTZ DEFAULT NOW()
//	);
func (j *Journal) RecordInvocation(ctx context.Context, rec enricher.InvocationRecord) error {
	if j == nil || j.pool == nil {
		return fmt.Errorf("journal is not configured")
	}
	if rec.InvocationID == "" {
		return fmt.Errorf("invocation id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	invocation_id,
	webpage_id,
	worker_id,
	outcome,
	via,
	fields_extracted,
	nodes_updated,
	reason,
	duration_ms,
	started_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, j.table)

	args := []any{
		rec.InvocationID,
		rec.WebpageID,
		rec.WorkerID,
		string(rec.Outcome),
		string(rec.Via),
		rec.FieldsExtracted,
		rec.NodesUpdated,
		rec.Reason,
		rec.Duration.Milliseconds(),
		rec.StartedAt,
	}
	if _, err := j.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}
