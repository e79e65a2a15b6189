package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"salesdw/internal/storage"
)

// maxParams stays under the Postgres bind parameter limit (65535).
const maxParams = 65000

/*
Repo implements storage.Repository for Postgres.

It provides:
  - Schema-qualified DDL (CREATE SCHEMA/TABLE IF NOT EXISTS)
  - Chunked multi-row INSERT, with ON CONFLICT upsert or DO NOTHING
  - TRUNCATE ... RESTART IDENTITY CASCADE for the full rebuild
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTables creates schemas and tables that do not exist yet.
//
// This method is idempotent.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		schemaSQL, tableSQL, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if schemaSQL != "" {
			if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema for %s: %w", t.Name, err)
			}
		}
		if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// Begin opens a read-write transaction.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *Tx) Select(ctx context.Context, table string, columns []string, orderBy []string) (storage.Rows, error) {
	q, err := buildSelectSQL(table, columns, orderBy)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return t.UpsertRows(ctx, table, columns, rows, nil, nil)
}

// UpsertRows inserts rows in chunks sized to the parameter limit.
//
// With conflictColumns and no updateColumns the statement ends in
// ON CONFLICT (...) DO NOTHING; with updateColumns it overwrites them from
// EXCLUDED. Callers must not repeat a conflict key inside one call when
// updating, since Postgres refuses to touch a row twice in one statement.
func (t *Tx) UpsertRows(
	ctx context.Context,
	table string,
	columns []string,
	rows [][]any,
	conflictColumns []string,
	updateColumns []string,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	maxRows := max(1, maxParams/max(1, len(columns)))

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := min(start+maxRows, len(rows))

		q, args, err := buildInsertSQL(table, columns, rows[start:end], conflictColumns, updateColumns)
		if err != nil {
			return total, err
		}
		cmd, err := t.tx.Exec(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// SelectAllKeyValue returns a mapping from normalized key -> surrogate id for the whole table.
//
// The returned map key is storage.NormalizeKey(original_key_value) so callers can
// reliably match string/int/etc key inputs.
func (t *Tx) SelectAllKeyValue(ctx context.Context, table, keyColumn, valueColumn string) (map[string]int64, error) {
	q, err := buildSelectSQL(table, []string{keyColumn, valueColumn}, nil)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("SelectAllKeyValue: query %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var k any
		var id int64
		if err := rows.Scan(&k, &id); err != nil {
			return nil, fmt.Errorf("SelectAllKeyValue: scan %s: %w", table, err)
		}
		out[storage.NormalizeKey(k)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SelectAllKeyValue: rows %s: %w", table, err)
	}
	return out, nil
}

func (t *Tx) Truncate(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	q, err := buildTruncateSQL(tables)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, q); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

func (t *Tx) CountRows(ctx context.Context, table string) (int64, error) {
	tbl, err := pgTable(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := t.tx.QueryRow(ctx, "SELECT COUNT(*) FROM "+tbl).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// compile-time checks.
var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
	_ storage.Rows       = (pgx.Rows)(nil)
)
