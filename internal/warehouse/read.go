package warehouse

import (
	"context"
	"fmt"

	"salesdw/internal/model"
	"salesdw/internal/storage"
)

// entityRow is an OLTP customer or product: surrogate key, business key and
// the attribute columns in catalog order.
type entityRow struct {
	sk    int64
	id    string
	attrs []*string
}

func readEntities(ctx context.Context, tx storage.Tx, table, skCol, idCol string, attrs []string) ([]entityRow, error) {
	cols := append([]string{skCol, idCol}, attrs...)
	rows, err := tx.Select(ctx, table, cols, []string{skCol})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entityRow
	for rows.Next() {
		e := entityRow{attrs: make([]*string, len(attrs))}
		dest := make([]any, 0, len(cols))
		dest = append(dest, &e.sk, &e.id)
		for i := range e.attrs {
			dest = append(dest, &e.attrs[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

func readOrders(ctx context.Context, tx storage.Tx) ([]model.Order, error) {
	cols := []string{"order_sk", "order_id", "customer_sk", "order_date", "ship_date", "ship_mode"}
	rows, err := tx.Select(ctx, storage.TableOrder, cols, []string{"order_sk"})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.SK, &o.OrderID, &o.CustomerSK, &o.OrderDate, &o.ShipDate, &o.ShipMode); err != nil {
			return nil, fmt.Errorf("scan %s: %w", storage.TableOrder, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", storage.TableOrder, err)
	}
	return out, nil
}

func readOrderLines(ctx context.Context, tx storage.Tx) ([]model.OrderLine, error) {
	cols := []string{"order_line_sk", "order_sk", "product_sk", "quantity", "unit_price", "line_total"}
	rows, err := tx.Select(ctx, storage.TableOrderLine, cols, []string{"order_line_sk"})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderLine
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.SK, &l.OrderSK, &l.ProductSK, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan %s: %w", storage.TableOrderLine, err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", storage.TableOrderLine, err)
	}
	return out, nil
}
