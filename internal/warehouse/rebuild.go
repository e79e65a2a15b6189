// Package warehouse rebuilds the star schema from the transactional tables.
//
// Every rebuild is a full refresh: the fact table and all dimensions are
// truncated with their identity counters reset, dimensions are reloaded,
// then facts are derived from order lines. Callers run Rebuild inside one
// transaction so readers never observe a half-built schema.
package warehouse

import (
	"context"
	"fmt"
	"sort"

	"salesdw/internal/model"
	"salesdw/internal/storage"
)

// Result counts what one rebuild wrote.
type Result struct {
	ShipModes int64
	Customers int64
	Products  int64
	Dates     int64
	Facts     int64
	// DroppedFacts counts order lines whose customer or product did not
	// resolve to a dimension row.
	DroppedFacts int64
	// DateMin and DateMax bound the generated calendar; both are absent
	// when there were no orders.
	DateMin model.Date
	DateMax model.Date
}

var (
	dimDateColumns   = []string{"date_sk", "full_date", "year", "quarter", "month", "day", "day_of_week", "is_weekend"}
	factSalesColumns = []string{"customer_sk", "product_sk", "order_date_sk", "ship_date_sk", "ship_mode_sk", "dd_order_id", "sales"}
)

// Rebuild truncates and reloads every DW table from the OLTP tables.
func Rebuild(ctx context.Context, tx storage.Tx) (Result, error) {
	var res Result

	if err := tx.Truncate(ctx, storage.WarehouseTables); err != nil {
		return res, fmt.Errorf("rebuild: truncate: %w", err)
	}

	orders, err := readOrders(ctx, tx)
	if err != nil {
		return res, fmt.Errorf("rebuild: %w", err)
	}
	customers, err := readEntities(ctx, tx, storage.TableCustomer, "customer_sk", "customer_id", storage.CustomerAttributes)
	if err != nil {
		return res, fmt.Errorf("rebuild: %w", err)
	}
	products, err := readEntities(ctx, tx, storage.TableProduct, "product_sk", "product_id", storage.ProductAttributes)
	if err != nil {
		return res, fmt.Errorf("rebuild: %w", err)
	}

	if res.ShipModes, err = loadShipModes(ctx, tx, orders); err != nil {
		return res, fmt.Errorf("rebuild: ship modes: %w", err)
	}
	if res.Customers, err = loadEntityDim(ctx, tx, storage.TableDimCustomer, "customer_id", storage.CustomerAttributes, customers); err != nil {
		return res, fmt.Errorf("rebuild: customers: %w", err)
	}
	if res.Products, err = loadEntityDim(ctx, tx, storage.TableDimProduct, "product_id", storage.ProductAttributes, products); err != nil {
		return res, fmt.Errorf("rebuild: products: %w", err)
	}

	res.DateMin, res.DateMax, _ = DateBounds(orders)
	if res.Dates, err = loadDates(ctx, tx, GenerateDates(res.DateMin, res.DateMax)); err != nil {
		return res, fmt.Errorf("rebuild: dates: %w", err)
	}

	if res.Facts, res.DroppedFacts, err = loadFacts(ctx, tx, orders, customers, products); err != nil {
		return res, fmt.Errorf("rebuild: facts: %w", err)
	}
	return res, nil
}

// ShipModes returns the distinct non-blank ship modes of orders, sorted.
func ShipModes(orders []model.Order) []string {
	seen := make(map[string]struct{})
	for _, o := range orders {
		if m := storage.NormalizeText(o.ShipMode); m != nil {
			seen[*m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func loadShipModes(ctx context.Context, tx storage.Tx, orders []model.Order) (int64, error) {
	modes := ShipModes(orders)
	rows := make([][]any, 0, len(modes))
	for _, m := range modes {
		rows = append(rows, []any{m})
	}
	return tx.InsertRows(ctx, storage.TableDimShipMode, []string{"ship_mode"}, rows)
}

func loadEntityDim(ctx context.Context, tx storage.Tx, table, idCol string, attrs []string, src []entityRow) (int64, error) {
	cols := append([]string{idCol}, attrs...)
	rows := make([][]any, 0, len(src))
	for _, e := range src {
		row := make([]any, 0, len(cols))
		row = append(row, e.id)
		for _, a := range e.attrs {
			if a == nil {
				row = append(row, nil)
				continue
			}
			row = append(row, *a)
		}
		rows = append(rows, row)
	}
	return tx.InsertRows(ctx, table, cols, rows)
}

func loadDates(ctx context.Context, tx storage.Tx, days []model.DimDate) (int64, error) {
	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{d.DateSK, d.FullDate.Time, d.Year, d.Quarter, d.Month, d.Day, d.DayOfWeek, d.IsWeekend})
	}
	return tx.InsertRows(ctx, storage.TableDimDate, dimDateColumns, rows)
}
