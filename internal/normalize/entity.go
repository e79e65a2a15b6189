package normalize

import (
	"context"
	"fmt"
	"sort"

	"salesdw/internal/model"
	"salesdw/internal/storage"
)

// entitySpec describes one deduplicated business entity of the staging feed.
type entitySpec struct {
	table string
	key   string
	attrs []string
	rawID func(model.StagingRow) *string
	// values returns the attribute cells in attrs order.
	values func(model.StagingRow) []*string
}

var customerSpec = entitySpec{
	table: storage.TableCustomer,
	key:   "customer_id",
	attrs: storage.CustomerAttributes,
	rawID: func(r model.StagingRow) *string { return r.CustomerID },
	values: func(r model.StagingRow) []*string {
		return []*string{r.CustomerName, r.Segment, r.Country, r.City, r.State, r.PostalCode, r.Region}
	},
}

var productSpec = entitySpec{
	table: storage.TableProduct,
	key:   "product_id",
	attrs: storage.ProductAttributes,
	rawID: func(r model.StagingRow) *string { return r.ProductID },
	values: func(r model.StagingRow) []*string {
		return []*string{r.ProductName, r.Category, r.SubCategory}
	},
}

// mergedEntity is one business key with its merged attribute values.
type mergedEntity struct {
	key   string
	attrs []*string
}

// mergeEntities groups rows by normalized business key. rows must be in
// staging order (ascending row id) for LastWins to mean "latest".
// The result is sorted by key; dropped counts rows without a usable key.
func mergeEntities(spec entitySpec, rows []model.StagingRow, policy MergePolicy) (out []mergedEntity, dropped int64) {
	byKey := make(map[string][]*string)
	for _, r := range rows {
		raw := spec.rawID(r)
		if raw == nil {
			dropped++
			continue
		}
		k := storage.NormalizeBusinessKey(*raw)
		if k == "" {
			dropped++
			continue
		}
		vals := spec.values(r)
		cur, ok := byKey[k]
		if !ok {
			cur = make([]*string, len(spec.attrs))
			byKey[k] = cur
		}
		for i, v := range vals {
			cur[i] = policy.merge(cur[i], storage.NormalizeText(v))
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out = make([]mergedEntity, 0, len(keys))
	for _, k := range keys {
		out = append(out, mergedEntity{key: k, attrs: byKey[k]})
	}
	return out, dropped
}

// Customers upserts one oltp.customer row per normalized customer id.
// Existing customers have every attribute overwritten with the merged values.
func Customers(ctx context.Context, tx storage.Tx, rows []model.StagingRow, policy MergePolicy) (Stats, error) {
	st, err := upsertEntities(ctx, tx, customerSpec, rows, policy)
	if err != nil {
		return st, fmt.Errorf("normalize customers: %w", err)
	}
	return st, nil
}

// Products upserts one oltp.product row per normalized product id.
func Products(ctx context.Context, tx storage.Tx, rows []model.StagingRow, policy MergePolicy) (Stats, error) {
	st, err := upsertEntities(ctx, tx, productSpec, rows, policy)
	if err != nil {
		return st, fmt.Errorf("normalize products: %w", err)
	}
	return st, nil
}

func upsertEntities(ctx context.Context, tx storage.Tx, spec entitySpec, rows []model.StagingRow, policy MergePolicy) (Stats, error) {
	st := Stats{Table: spec.table}

	merged, dropped := mergeEntities(spec, rows, policy)
	st.Dropped = dropped
	st.Candidates = int64(len(merged))

	columns := append([]string{spec.key}, spec.attrs...)
	args := make([][]any, 0, len(merged))
	for _, e := range merged {
		row := make([]any, 0, len(columns))
		row = append(row, e.key)
		for _, a := range e.attrs {
			row = append(row, textArg(a))
		}
		args = append(args, row)
	}

	n, err := tx.UpsertRows(ctx, spec.table, columns, args, []string{spec.key}, spec.attrs)
	if err != nil {
		return st, err
	}
	st.Affected = n

	total, err := tx.CountRows(ctx, spec.table)
	if err != nil {
		return st, err
	}
	st.Total = total
	return st, nil
}

func textArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
