package normalize

import (
	"context"
	"fmt"

	"salesdw/internal/model"
	"salesdw/internal/storage"

	"github.com/shopspring/decimal"
)

var orderColumns = []string{"order_id", "customer_sk", "order_date", "ship_date", "ship_mode"}

// Orders inserts order headers that do not exist yet.
//
// A staging row qualifies when it carries an order id and an order date and
// its customer id resolves in oltp.customer. When one order id appears with
// several header variants, the earliest staging row wins; an order already
// in the table is never altered.
func Orders(ctx context.Context, tx storage.Tx, rows []model.StagingRow) (Stats, error) {
	st := Stats{Table: storage.TableOrder}

	customers, err := tx.SelectAllKeyValue(ctx, storage.TableCustomer, "customer_id", "customer_sk")
	if err != nil {
		return st, fmt.Errorf("normalize orders: load customer keys: %w", err)
	}

	orders := orderHeaders(rows, customers, &st)
	st.Candidates = int64(len(orders))

	args := make([][]any, 0, len(orders))
	for _, o := range orders {
		args = append(args, []any{o.OrderID, o.CustomerSK, o.OrderDate.Time, dateArg(o.ShipDate), textArg(o.ShipMode)})
	}

	n, err := tx.UpsertRows(ctx, storage.TableOrder, orderColumns, args, []string{"order_id"}, nil)
	if err != nil {
		return st, fmt.Errorf("normalize orders: %w", err)
	}
	st.Affected = n

	if st.Total, err = tx.CountRows(ctx, storage.TableOrder); err != nil {
		return st, fmt.Errorf("normalize orders: %w", err)
	}
	return st, nil
}

// orderHeaders derives one header per order id in first-seen order.
func orderHeaders(rows []model.StagingRow, customers map[string]int64, st *Stats) []model.Order {
	seen := make(map[string]struct{})
	var out []model.Order
	for _, r := range rows {
		oid := storage.NormalizeOrderID(r.OrderID)
		if oid == "" || !r.OrderDate.Valid || r.CustomerID == nil {
			st.Dropped++
			continue
		}
		csk, ok := customers[storage.NormalizeBusinessKey(*r.CustomerID)]
		if !ok {
			st.Dropped++
			continue
		}
		if _, dup := seen[oid]; dup {
			continue
		}
		seen[oid] = struct{}{}
		out = append(out, model.Order{
			OrderID:    oid,
			CustomerSK: csk,
			OrderDate:  r.OrderDate,
			ShipDate:   r.ShipDate,
			ShipMode:   storage.NormalizeText(r.ShipMode),
		})
	}
	return out
}

var orderLineColumns = []string{"order_sk", "product_sk", "quantity", "unit_price", "line_total"}

// OrderLines appends one line per staging row whose order id and product id
// both resolve. Quantity is always 1 and the unit price is the row's sales
// amount (zero when absent) rounded to cents.
//
// Lines are not deduplicated: loading the same staging rows twice yields
// duplicate lines.
func OrderLines(ctx context.Context, tx storage.Tx, rows []model.StagingRow) (Stats, error) {
	st := Stats{Table: storage.TableOrderLine}

	orders, err := tx.SelectAllKeyValue(ctx, storage.TableOrder, "order_id", "order_sk")
	if err != nil {
		return st, fmt.Errorf("normalize order lines: load order keys: %w", err)
	}
	products, err := tx.SelectAllKeyValue(ctx, storage.TableProduct, "product_id", "product_sk")
	if err != nil {
		return st, fmt.Errorf("normalize order lines: load product keys: %w", err)
	}

	lines := buildOrderLines(rows, orders, products, &st)
	st.Candidates = int64(len(lines))

	args := make([][]any, 0, len(lines))
	for _, l := range lines {
		args = append(args, []any{l.OrderSK, l.ProductSK, l.Quantity, l.UnitPrice, l.LineTotal})
	}

	n, err := tx.InsertRows(ctx, storage.TableOrderLine, orderLineColumns, args)
	if err != nil {
		return st, fmt.Errorf("normalize order lines: %w", err)
	}
	st.Affected = n

	if st.Total, err = tx.CountRows(ctx, storage.TableOrderLine); err != nil {
		return st, fmt.Errorf("normalize order lines: %w", err)
	}
	return st, nil
}

func buildOrderLines(rows []model.StagingRow, orders, products map[string]int64, st *Stats) []model.OrderLine {
	var out []model.OrderLine
	for _, r := range rows {
		osk, ok := orders[storage.NormalizeOrderID(r.OrderID)]
		if !ok || r.ProductID == nil {
			st.Dropped++
			continue
		}
		psk, ok := products[storage.NormalizeBusinessKey(*r.ProductID)]
		if !ok {
			st.Dropped++
			continue
		}
		price := decimal.Zero
		if r.Sales.Valid {
			price = model.RoundMoney(r.Sales.Decimal)
		}
		const qty = 1
		out = append(out, model.OrderLine{
			OrderSK:   osk,
			ProductSK: psk,
			Quantity:  qty,
			UnitPrice: price,
			LineTotal: model.RoundMoney(price.Mul(decimal.NewFromInt(qty))),
		})
	}
	return out
}

func dateArg(d model.Date) any {
	if !d.Valid {
		return nil
	}
	return d.Time
}
