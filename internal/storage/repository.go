package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic handle on the relational store.
//
// A Repository is opened once per run and handed to every stage; stages never
// reach for a process-wide connection. All writes go through a Tx so a phase
// either commits as a whole or leaves the store untouched.
type Repository interface {
	// Close releases the connection pool. Call once.
	Close()

	// EnsureTables creates schemas, tables and constraints that do not exist yet.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// Begin opens a transaction. The caller must Commit or Rollback it.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work against the store.
//
// Table names are logical catalog names ("oltp.customer"); each backend maps
// them onto its own namespace rules. Every table and column name is validated
// with ValidateIdentifier before it reaches SQL text, and every value is bound
// as a parameter.
type Tx interface {
	Commit(ctx context.Context) error
	// Rollback is safe to call after Commit; it is then a no-op.
	Rollback(ctx context.Context) error

	// Select streams columns of table ordered by orderBy (may be empty).
	Select(ctx context.Context, table string, columns []string, orderBy []string) (Rows, error)

	// InsertRows appends rows without conflict handling.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// UpsertRows inserts rows keyed by conflictColumns. When updateColumns is
	// empty existing rows are left alone (insert-if-absent); otherwise the
	// listed columns of existing rows are overwritten with the incoming values.
	UpsertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string, updateColumns []string) (int64, error)

	// SelectAllKeyValue maps NormalizeKey(keyColumn) to valueColumn for the whole table.
	SelectAllKeyValue(ctx context.Context, table string, keyColumn string, valueColumn string) (map[string]int64, error)

	// Truncate empties tables and resets their identity counters. Tables are
	// given dependents first.
	Truncate(ctx context.Context, tables []string) error

	// CountRows returns the current row count of table.
	CountRows(ctx context.Context, table string) (int64, error)
}

// Rows is a forward-only cursor returned by Tx.Select.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	factoryMu.RLock()
	f := factories[cfg.Kind]
	factoryMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
