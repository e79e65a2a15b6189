// Package staging lands raw sales records in the append-only staging table.
//
// Readers turn a source file into model.StagingRow values; Loader appends
// them in chunks. Values that cannot be coerced (dates, amounts, row ids)
// become absent instead of failing the load, the way a coercing bulk
// loader would treat them.
package staging

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"salesdw/internal/model"
	"salesdw/internal/storage"

	"github.com/shopspring/decimal"
)

// Reader yields staging rows in source order. Next returns io.EOF after the
// last row.
type Reader interface {
	Next() (model.StagingRow, error)
}

// HeaderMap maps the column titles of the public Superstore export to
// staging columns. Titles not listed fall back to lower case with spaces
// and dashes turned into underscores.
var HeaderMap = map[string]string{
	"Row ID":        "row_id",
	"Order ID":      "order_id",
	"Order Date":    "order_date",
	"Ship Date":     "ship_date",
	"Ship Mode":     "ship_mode",
	"Customer ID":   "customer_id",
	"Customer Name": "customer_name",
	"Segment":       "segment",
	"Country":       "country",
	"City":          "city",
	"State":         "state",
	"Postal Code":   "postal_code",
	"Region":        "region",
	"Product ID":    "product_id",
	"Category":      "category",
	"Sub-Category":  "sub_category",
	"Product Name":  "product_name",
	"Sales":         "sales",
}

// DateLayouts are tried in order when coercing a date cell. The export uses
// month-first dates.
var DateLayouts = []string{
	time.DateOnly,
	"1/2/2006",
	"01/02/2006",
	time.RFC3339,
	"02.01.2006",
	time.DateTime,
	"2006-01-02T15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

// thousandsGrouped matches amounts whose commas are thousands separators.
var thousandsGrouped = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ErrNoKnownColumns is returned when a header names none of the staging columns.
var ErrNoKnownColumns = errors.New("staging: header has no known columns")

func headerKey(h string, i int, hm map[string]string) string {
	h = strings.TrimSpace(h)
	if i == 0 {
		h = strings.TrimPrefix(h, "\uFEFF")
	}
	if mapped, ok := hm[h]; ok {
		return mapped
	}
	h = strings.ToLower(h)
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

// columnIndex returns, for each staging column, the source field index or -1.
func columnIndex(header []string, hm map[string]string) ([]int, error) {
	if hm == nil {
		hm = HeaderMap
	}
	srcToIdx := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h, i, hm)
		if _, dup := srcToIdx[k]; !dup {
			srcToIdx[k] = i
		}
	}

	colIx := make([]int, len(storage.StagingColumns))
	found := false
	for t, name := range storage.StagingColumns {
		colIx[t] = -1
		if si, ok := srcToIdx[name]; ok {
			colIx[t] = si
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoKnownColumns, strings.Join(header, ", "))
	}
	return colIx, nil
}

// rowFromRecord coerces one source record aligned by colIx.
func rowFromRecord(colIx []int, rec []string) model.StagingRow {
	cell := func(t int) *string {
		si := colIx[t]
		if si < 0 || si >= len(rec) {
			return nil
		}
		v := strings.TrimSpace(rec[si])
		if v == "" {
			return nil
		}
		return &v
	}

	return model.StagingRow{
		RowID:        parseRowID(cell(0)),
		OrderID:      cell(1),
		OrderDate:    parseDate(cell(2)),
		ShipDate:     parseDate(cell(3)),
		ShipMode:     cell(4),
		CustomerID:   cell(5),
		CustomerName: cell(6),
		Segment:      cell(7),
		Country:      cell(8),
		City:         cell(9),
		State:        cell(10),
		PostalCode:   cell(11),
		Region:       cell(12),
		ProductID:    cell(13),
		Category:     cell(14),
		SubCategory:  cell(15),
		ProductName:  cell(16),
		Sales:        parseSales(cell(17)),
	}
}

func parseRowID(s *string) *int64 {
	if s == nil {
		return nil
	}
	n, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func parseDate(s *string) model.Date {
	if s == nil {
		return model.Date{}
	}
	d, err := model.ParseDate(*s, DateLayouts...)
	if err != nil {
		return model.Date{}
	}
	return d
}

func parseSales(s *string) decimal.NullDecimal {
	if s == nil {
		return decimal.NullDecimal{}
	}
	v := *s
	if strings.Contains(v, ",") {
		// "99,99" is a decimal comma, not a grouping; it is rejected.
		if !thousandsGrouped.MatchString(v) {
			return decimal.NullDecimal{}
		}
		v = strings.ReplaceAll(v, ",", "")
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Args returns the staging column values of r in StagingColumns order, ready
// to bind as statement parameters.
func Args(r model.StagingRow) []any {
	return []any{
		int64Arg(r.RowID),
		textArg(r.OrderID),
		dateArg(r.OrderDate),
		dateArg(r.ShipDate),
		textArg(r.ShipMode),
		textArg(r.CustomerID),
		textArg(r.CustomerName),
		textArg(r.Segment),
		textArg(r.Country),
		textArg(r.City),
		textArg(r.State),
		textArg(r.PostalCode),
		textArg(r.Region),
		textArg(r.ProductID),
		textArg(r.Category),
		textArg(r.SubCategory),
		textArg(r.ProductName),
		decimalArg(r.Sales),
	}
}

func int64Arg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func textArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func dateArg(d model.Date) any {
	if !d.Valid {
		return nil
	}
	return d.Time
}

func decimalArg(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

// Collect drains r into memory.
func Collect(r Reader) ([]model.StagingRow, error) {
	var out []model.StagingRow
	for {
		row, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, row)
	}
}
