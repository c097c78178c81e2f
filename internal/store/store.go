// Package store persists resolved sales snapshots and mapping rows in
// PostgreSQL. Snapshots are replaced wholesale: every write happens in a
// single transaction that truncates and refills the table, so readers
// never observe a partially-empty state.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store wraps a pgx connection pool with the queries both tools need.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Bootstrap creates the sales and mapping tables if they do not exist.
// Idempotent; run it once at startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sales (
			order_id  TEXT        NOT NULL,
			sale_date DATE        NOT NULL,
			sku       TEXT        NOT NULL,
			msku      TEXT        NOT NULL,
			quantity  BIGINT      NOT NULL,
			price     NUMERIC(14,2) NOT NULL,
			status    TEXT        NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sales_msku_idx ON sales (msku)`,
		`CREATE INDEX IF NOT EXISTS sales_date_idx ON sales (sale_date)`,
		`CREATE TABLE IF NOT EXISTS sku_mappings (
			position BIGSERIAL,
			sku      TEXT NOT NULL,
			msku     TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// replaceSnapshot truncates table and bulk-loads rows inside one
// transaction using the COPY protocol.
func (s *Store) replaceSnapshot(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}

	if len(rows) > 0 {
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy into %s: %w", table, err)
		}
		if copied != int64(len(rows)) {
			return fmt.Errorf("copy into %s: wrote %d of %d rows", table, copied, len(rows))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
