package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salesdw/internal/storage"
)

// SQL Server allows 2100 parameters per statement and 1000 rows per
// VALUES list.
const (
	maxParams = 2000
	maxRows   = 1000
)

// chunkRows is the number of rows of ncols columns sent per statement.
func chunkRows(ncols int) int {
	return max(1, min(maxRows, maxParams/max(1, ncols)))
}

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Conflict handling:
//   - insert-if-absent uses INSERT ... SELECT ... WHERE NOT EXISTS
//   - upserts use MERGE
//
// Note on driver registration:
//   - This package does NOT blank-import a SQL Server driver. The "sqlserver"
//     driver is registered by internal/storage/all.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens a database/sql handle on the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTables creates schemas and tables that do not exist yet.
//
// This method is idempotent and safe to run on every invocation.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		schemaSQL, tableSQL, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if schemaSQL != "" {
			if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("mssql: create schema for %s: %w", t.Name, err)
			}
		}
		if _, err := r.db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
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

// UpsertRows inserts rows in chunks sized to the parameter limit.
//
// Rows sharing a conflict key are collapsed to the first occurrence before
// any statement runs, matching what ON CONFLICT does on the other backends.
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
	if len(updateColumns) > 0 && len(conflictColumns) == 0 {
		return 0, fmt.Errorf("insert into %s: update columns without conflict target", table)
	}
	if len(conflictColumns) > 0 {
		var err error
		rows, err = dedupeRowsByColumns(rows, columns, conflictColumns)
		if err != nil {
			return 0, err
		}
	}

	chunk := chunkRows(len(columns))

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		part := rows[start:end]

		var (
			q    string
			args []any
			err  error
		)
		switch {
		case len(conflictColumns) == 0:
			q, args, err = buildInsertSQL(table, columns, part)
		case len(updateColumns) == 0:
			q, args, err = buildInsertNotExistsSQL(table, columns, part, conflictColumns)
		default:
			q, args, err = buildMergeSQL(table, columns, part, conflictColumns, updateColumns)
		}
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

// SelectAllKeyValue returns normalized key -> surrogate id for the whole table.
func (t *Tx) SelectAllKeyValue(ctx context.Context, table, keyColumn, valueColumn string) (map[string]int64, error) {
	q, err := buildSelectSQL(table, []string{keyColumn, valueColumn}, nil)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, q)
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
	return out, rows.Err()
}

// Truncate deletes rows table by table in the given order and reseeds
// identity columns.
func (t *Tx) Truncate(ctx context.Context, tables []string) error {
	for _, tbl := range tables {
		q, err := buildResetSQL(tbl)
		if err != nil {
			return err
		}
		if _, err := t.tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
	}
	return nil
}

func (t *Tx) CountRows(ctx context.Context, table string) (int64, error) {
	tbl, err := mssqlTable(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := t.tx.QueryRowContext(ctx, "SELECT COUNT_BIG(*) FROM "+tbl).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Tx         = (*Tx)(nil)
)
