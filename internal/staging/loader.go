package staging

import (
	"context"
	"fmt"
	"io"
	"sort"

	"salesdw/internal/metrics"
	"salesdw/internal/model"
	"salesdw/internal/storage"
)

// DefaultBatchSize is the number of rows appended per InsertRows call.
const DefaultBatchSize = 1000

// Loader appends rows to a qualified staging table ("staging.sales_raw").
type Loader struct {
	Table     string
	BatchSize int
}

// Load drains r into the staging table and returns the number of rows
// written. The staging table is append-only; nothing is deduplicated here.
func (l Loader) Load(ctx context.Context, tx storage.Tx, r Reader) (int64, error) {
	size := l.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var (
		total int64
		batch = make([][]any, 0, size)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := tx.InsertRows(ctx, l.Table, storage.StagingColumns, batch)
		if err != nil {
			return fmt.Errorf("load %s: %w", l.Table, err)
		}
		total += n
		metrics.RecordBatch()
		metrics.RecordRecords("staging_loaded", n)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		batch = append(batch, Args(row))
		if len(batch) >= size {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// ReadAll returns every staging row of table ordered by row_id. Rows without
// a row id come first, then ascending ids; equal ids keep store order.
func ReadAll(ctx context.Context, tx storage.Tx, table string) ([]model.StagingRow, error) {
	rows, err := tx.Select(ctx, table, storage.StagingColumns, []string{"row_id"})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StagingRow
	for rows.Next() {
		var r model.StagingRow
		if err := rows.Scan(
			&r.RowID, &r.OrderID, &r.OrderDate, &r.ShipDate, &r.ShipMode,
			&r.CustomerID, &r.CustomerName, &r.Segment, &r.Country, &r.City, &r.State,
			&r.PostalCode, &r.Region,
			&r.ProductID, &r.Category, &r.SubCategory, &r.ProductName,
			&r.Sales,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].RowID, out[j].RowID
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return *a < *b
	})
	return out, nil
}
