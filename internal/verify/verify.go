// Package verify reports row counts of the tables a run populated.
package verify

import (
	"context"
	"fmt"
	"strings"

	"salesdw/internal/metrics"
	"salesdw/internal/storage"
)

// TableCount is one line of a Report.
type TableCount struct {
	Table string
	Rows  int64
}

// Report lists table counts in catalog order: staging, OLTP, DW.
type Report []TableCount

// Rows returns the count recorded for table and whether it was counted.
func (r Report) Rows(table string) (int64, bool) {
	for _, c := range r {
		if c.Table == table {
			return c.Rows, true
		}
	}
	return 0, false
}

// String renders "table=rows" pairs separated by spaces.
func (r Report) String() string {
	parts := make([]string, 0, len(r))
	for _, c := range r {
		parts = append(parts, fmt.Sprintf("%s=%d", c.Table, c.Rows))
	}
	return strings.Join(parts, " ")
}

// Tables lists the tables Count inspects for a qualified staging table.
func Tables(stagingTable string) []string {
	out := []string{stagingTable}
	for _, s := range storage.OLTPSpecs() {
		out = append(out, s.Name)
	}
	for _, s := range storage.WarehouseSpecs() {
		out = append(out, s.Name)
	}
	return out
}

// Count counts every table of the pipeline and publishes each count as the
// etl_table_rows gauge. It never judges the numbers.
func Count(ctx context.Context, tx storage.Tx, stagingTable string) (Report, error) {
	tables := Tables(stagingTable)
	out := make(Report, 0, len(tables))
	for _, t := range tables {
		n, err := tx.CountRows(ctx, t)
		if err != nil {
			return out, fmt.Errorf("verify: %w", err)
		}
		metrics.RecordTableRows(t, n)
		out = append(out, TableCount{Table: t, Rows: n})
	}
	return out, nil
}
