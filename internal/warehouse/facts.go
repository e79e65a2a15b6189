package warehouse

import (
	"context"

	"salesdw/internal/model"
	"salesdw/internal/storage"
)

// dimKeys maps OLTP surrogate keys to DW surrogate keys through the shared
// business key.
func dimKeys(src []entityRow, dim map[string]int64) map[int64]int64 {
	out := make(map[int64]int64, len(src))
	for _, e := range src {
		if sk, ok := dim[storage.NormalizeKey(e.id)]; ok {
			out[e.sk] = sk
		}
	}
	return out
}

// BuildFacts derives one fact per order line. Customer and product resolve
// by inner join; ship date and ship mode are left lookups that yield nil.
func BuildFacts(
	lines []model.OrderLine,
	orders map[int64]model.Order,
	customerKeys, productKeys map[int64]int64,
	shipModeKeys map[string]int64,
) (facts []model.FactSales, dropped int64) {
	for _, l := range lines {
		o, ok := orders[l.OrderSK]
		if !ok {
			dropped++
			continue
		}
		csk, ok := customerKeys[o.CustomerSK]
		if !ok {
			dropped++
			continue
		}
		psk, ok := productKeys[l.ProductSK]
		if !ok {
			dropped++
			continue
		}

		f := model.FactSales{
			CustomerSK:  csk,
			ProductSK:   psk,
			OrderDateSK: DateKey(o.OrderDate),
			OrderID:     o.OrderID,
			Sales:       model.RoundMoney(l.LineTotal),
		}
		if o.ShipDate.Valid {
			k := DateKey(o.ShipDate)
			f.ShipDateSK = &k
		}
		if m := storage.NormalizeText(o.ShipMode); m != nil {
			if k, ok := shipModeKeys[*m]; ok {
				f.ShipModeSK = &k
			}
		}
		facts = append(facts, f)
	}
	return facts, dropped
}

func loadFacts(ctx context.Context, tx storage.Tx, orders []model.Order, customers, products []entityRow) (int64, int64, error) {
	lines, err := readOrderLines(ctx, tx)
	if err != nil {
		return 0, 0, err
	}

	dimCustomer, err := tx.SelectAllKeyValue(ctx, storage.TableDimCustomer, "customer_id", "customer_sk")
	if err != nil {
		return 0, 0, err
	}
	dimProduct, err := tx.SelectAllKeyValue(ctx, storage.TableDimProduct, "product_id", "product_sk")
	if err != nil {
		return 0, 0, err
	}
	dimShipMode, err := tx.SelectAllKeyValue(ctx, storage.TableDimShipMode, "ship_mode", "ship_mode_sk")
	if err != nil {
		return 0, 0, err
	}

	byOrder := make(map[int64]model.Order, len(orders))
	for _, o := range orders {
		byOrder[o.SK] = o
	}

	facts, dropped := BuildFacts(lines, byOrder, dimKeys(customers, dimCustomer), dimKeys(products, dimProduct), dimShipMode)

	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{f.CustomerSK, f.ProductSK, f.OrderDateSK, int64PtrArg(f.ShipDateSK), int64PtrArg(f.ShipModeSK), f.OrderID, f.Sales})
	}
	n, err := tx.InsertRows(ctx, storage.TableFactSales, factSalesColumns, rows)
	return n, dropped, err
}

func int64PtrArg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
