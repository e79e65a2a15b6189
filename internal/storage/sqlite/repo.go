package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"salesdw/internal/storage"
)

// SQLite's default variable limit is 32766; stay under it.
const maxParams = 30000

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no schemas here. Logical "schema.table" names are flattened
//     to "schema_table" so one database file holds staging, OLTP and DW.
//   - Identity keys are INTEGER PRIMARY KEY AUTOINCREMENT; truncation clears
//     sqlite_sequence to restart them.
//   - The pool is pinned to one connection so ":memory:" databases are shared
//     by every statement of a run.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTables creates tables that do not exist yet.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		q, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit(context.Context) error { return t.tx.Commit() }

func (t *Tx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *Tx) Select(ctx context.Context, table string, columns []string, orderBy []string) (storage.Rows, error) {
	q, err := buildSelectSQL(table, columns, orderBy)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return storage.WrapSQLRows(rows), nil
}

func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return t.UpsertRows(ctx, table, columns, rows, nil, nil)
}

// UpsertRows inserts rows in chunks.
//
// Conflict handling:
//   - conflictColumns only: INSERT OR IGNORE, which relies on the UNIQUE
//     constraint over those columns.
//   - with updateColumns: ON CONFLICT (...) DO UPDATE SET col = excluded.col.
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
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (t *Tx) SelectAllKeyValue(ctx context.Context, table, keyColumn, valueColumn string) (map[string]int64, error) {
	q, err := buildSelectSQL(table, []string{keyColumn, valueColumn}, nil)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var k any
		var id sql.NullInt64
		if err := rows.Scan(&k, &id); err != nil {
			return nil, err
		}
		if !id.Valid {
			return nil, fmt.Errorf("sqlite: %s.%s is NULL; surrogate key not auto-generated", table, valueColumn)
		}
		out[storage.NormalizeKey(k)] = id.Int64
	}
	return out, rows.Err()
}

// Truncate deletes every row of tables in the given order and restarts their
// AUTOINCREMENT counters.
func (t *Tx) Truncate(ctx context.Context, tables []string) error {
	names := make([]string, 0, len(tables))
	for _, tbl := range tables {
		name, err := flatName(tbl)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, "DELETE FROM "+sqlIdent(name)); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}

	// sqlite_sequence only exists once some AUTOINCREMENT table was created.
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if n == 0 {
		return nil
	}

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = name
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(names)), ",")
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name IN ("+ph+")", args...); err != nil {
		return fmt.Errorf("truncate: reset sequences: %w", err)
	}
	return nil
}

func (t *Tx) CountRows(ctx context.Context, table string) (int64, error) {
	name, err := flatName(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sqlIdent(name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
