// Package pipeline sequences the ETL phases against one repository.
//
// Phases run in their own transaction: Ingest, Normalize (all four
// normalizers), Rebuild (truncate, dimensions, facts) and Verify. A failed
// phase rolls back only itself; phases that already committed stay.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"salesdw/internal/metrics"
	"salesdw/internal/normalize"
	"salesdw/internal/staging"
	"salesdw/internal/storage"
	"salesdw/internal/verify"
	"salesdw/internal/warehouse"
)

// Logger is the minimal logging interface used by the runner.
// *log.Logger and *zerolog.Logger satisfy it.
type Logger interface {
	Printf(format string, v ...any)
}

// Runner executes pipeline phases. Repo is owned by the caller, who closes
// it after the run.
type Runner struct {
	Repo   storage.Repository
	Logger Logger

	// StagingTable is the unqualified staging table name; empty selects
	// storage.DefaultStagingTable.
	StagingTable string
	Policy       normalize.MergePolicy
	// BatchSize bounds rows per staging insert; zero selects the loader default.
	BatchSize int
}

// Summary collects what a full Run produced.
type Summary struct {
	Normalize []normalize.Stats
	Rebuild   warehouse.Result
	Report    verify.Report
}

func (r *Runner) logf(format string, v ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.Printf(format, v...)
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

func (r *Runner) stagingTable() (string, error) {
	return storage.StagingTableName(r.StagingTable)
}

// step times fn, logs its outcome and records it as a metric.
func (r *Runner) step(name string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	d := durMS(start)
	if err != nil {
		metrics.RecordStep(name, "error", d)
		r.logf("stage=%s status=error duration=%s err=%v", name, d, err)
		return err
	}
	metrics.RecordStep(name, "ok", d)
	if detail != "" {
		r.logf("stage=%s ok duration=%s %s", name, d, detail)
	} else {
		r.logf("stage=%s ok duration=%s", name, d)
	}
	return nil
}

// inTx runs fn in a fresh transaction and commits when fn succeeds. The
// transaction is rolled back on every other path.
func (r *Runner) inTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if r.Repo == nil {
		return fmt.Errorf("pipeline: Repo is required")
	}
	tx, err := r.Repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// EnsureSchema creates every table of the catalog that does not exist.
func (r *Runner) EnsureSchema(ctx context.Context) error {
	if r.Repo == nil {
		return fmt.Errorf("pipeline: Repo is required")
	}
	specs, err := storage.Catalog(r.StagingTable)
	if err != nil {
		return err
	}
	return r.step("ddl", func() (string, error) {
		return fmt.Sprintf("tables=%d", len(specs)), r.Repo.EnsureTables(ctx, specs)
	})
}

// Ingest appends every row of src to the staging table and returns the
// number of rows written.
func (r *Runner) Ingest(ctx context.Context, src staging.Reader) (int64, error) {
	table, err := r.stagingTable()
	if err != nil {
		return 0, err
	}

	var loaded int64
	err = r.step("ingest", func() (string, error) {
		var total int64
		err := r.inTx(ctx, func(tx storage.Tx) error {
			n, err := staging.Loader{Table: table, BatchSize: r.BatchSize}.Load(ctx, tx, src)
			if err != nil {
				return err
			}
			loaded = n
			total, err = tx.CountRows(ctx, table)
			return err
		})
		return fmt.Sprintf("table=%s loaded=%d total=%d", table, loaded, total), err
	})
	return loaded, err
}

// Normalize runs the customer, product, order and order-line normalizers
// in that order inside one transaction.
func (r *Runner) Normalize(ctx context.Context) ([]normalize.Stats, error) {
	table, err := r.stagingTable()
	if err != nil {
		return nil, err
	}

	var out []normalize.Stats
	err = r.inTx(ctx, func(tx storage.Tx) error {
		rows, err := staging.ReadAll(ctx, tx, table)
		if err != nil {
			return err
		}
		r.logf("stage=read_staging table=%s rows=%d policy=%s", table, len(rows), r.Policy)

		type normalizer struct {
			name string
			run  func() (normalize.Stats, error)
		}
		steps := []normalizer{
			{"normalize_customers", func() (normalize.Stats, error) { return normalize.Customers(ctx, tx, rows, r.Policy) }},
			{"normalize_products", func() (normalize.Stats, error) { return normalize.Products(ctx, tx, rows, r.Policy) }},
			{"normalize_orders", func() (normalize.Stats, error) { return normalize.Orders(ctx, tx, rows) }},
			{"normalize_order_lines", func() (normalize.Stats, error) { return normalize.OrderLines(ctx, tx, rows) }},
		}
		for _, s := range steps {
			err := r.step(s.name, func() (string, error) {
				st, err := s.run()
				if err != nil {
					return "", err
				}
				out = append(out, st)
				metrics.RecordRecords(s.name, st.Affected)
				return fmt.Sprintf("table=%s candidates=%d affected=%d dropped=%d total=%d",
					st.Table, st.Candidates, st.Affected, st.Dropped, st.Total), nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rebuild truncates and reloads the star schema in one transaction.
func (r *Runner) Rebuild(ctx context.Context) (warehouse.Result, error) {
	var res warehouse.Result
	err := r.step("rebuild", func() (string, error) {
		err := r.inTx(ctx, func(tx storage.Tx) error {
			var err error
			res, err = warehouse.Rebuild(ctx, tx)
			return err
		})
		if err != nil {
			return "", err
		}
		metrics.RecordRecords("facts_inserted", res.Facts)
		return fmt.Sprintf("ship_modes=%d customers=%d products=%d dates=%d date_min=%s date_max=%s facts=%d dropped=%d",
			res.ShipModes, res.Customers, res.Products, res.Dates, res.DateMin, res.DateMax, res.Facts, res.DroppedFacts), nil
	})
	return res, err
}

// Verify counts every table of the pipeline.
func (r *Runner) Verify(ctx context.Context) (verify.Report, error) {
	table, err := r.stagingTable()
	if err != nil {
		return nil, err
	}
	var rep verify.Report
	err = r.step("verify", func() (string, error) {
		err := r.inTx(ctx, func(tx storage.Tx) error {
			var err error
			rep, err = verify.Count(ctx, tx, table)
			return err
		})
		return rep.String(), err
	})
	return rep, err
}

// Run executes Normalize, Rebuild and Verify in order and stops at the
// first failing phase.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var s Summary
	var err error

	if s.Normalize, err = r.Normalize(ctx); err != nil {
		return s, err
	}
	if s.Rebuild, err = r.Rebuild(ctx); err != nil {
		return s, err
	}
	if s.Report, err = r.Verify(ctx); err != nil {
		return s, err
	}
	return s, nil
}
