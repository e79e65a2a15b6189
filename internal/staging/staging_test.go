package staging

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"salesdw/internal/model"
	"salesdw/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

const superstoreHeader = "Row ID,Order ID,Order Date,Ship Date,Ship Mode,Customer ID,Customer Name,Segment,Country,City,State,Postal Code,Region,Product ID,Category,Sub-Category,Product Name,Sales\n"

func str(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestCSVReader_HeaderMappingAndCoercion(t *testing.T) {
	t.Parallel()

	src := "\uFEFF" + superstoreHeader +
		`1,CA-1, 3/10/2024 ,2024-03-12,Second Class, C 1 ,Ann,Consumer,United States,Henderson,Kentucky,42420,South,P1,Furniture,Chairs,"Chair, Big",99.999` + "\n" +
		`x,CA-2,not-a-date,,  ,C2,,,,,,,,P2,,,,abc` + "\n" +
		`3,CA-3,2024-03-10 00:00:00,2024-03-12 14:30:00,,C3,,,,,,,,P3,,,,"1,234.56"` + "\n" +
		`4,CA-4,3/10/2024 09:15,2024-03-12T08:00:00,,C4,,,,,,,,P4,,,,"99,99"` + "\n" +
		`5,CA-5,3/10/2024 09:15:30,,,C5,,,,,,,,P5,,,,"1,23"` + "\n"

	r, err := NewCSVReader(strings.NewReader(src), CSVOptions{})
	if err != nil {
		t.Fatalf("NewCSVReader() err=%v", err)
	}
	rows, err := Collect(r)
	if err != nil {
		t.Fatalf("Collect() err=%v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows=%d, want 5", len(rows))
	}

	a := rows[0]
	if a.RowID == nil || *a.RowID != 1 {
		t.Fatalf("RowID=%v, want 1", a.RowID)
	}
	if !a.OrderDate.Equal(model.NewDate(2024, time.March, 10)) || !a.ShipDate.Equal(model.NewDate(2024, time.March, 12)) {
		t.Fatalf("dates=(%s,%s)", a.OrderDate, a.ShipDate)
	}
	if str(a.CustomerID) != "C 1" {
		t.Fatalf("CustomerID=%q, want trimmed %q", str(a.CustomerID), "C 1")
	}
	if str(a.SubCategory) != "Chairs" || str(a.ProductName) != "Chair, Big" {
		t.Fatalf("SubCategory=%q ProductName=%q", str(a.SubCategory), str(a.ProductName))
	}
	if !a.Sales.Valid || !a.Sales.Decimal.Equal(decimal.RequireFromString("99.999")) {
		t.Fatalf("Sales=%v, want 99.999", a.Sales)
	}

	b := rows[1]
	if b.RowID != nil {
		t.Fatalf("invalid row id should be absent, got %d", *b.RowID)
	}
	if b.OrderDate.Valid || b.ShipDate.Valid {
		t.Fatalf("unparseable or blank dates should be absent: %v %v", b.OrderDate, b.ShipDate)
	}
	if b.ShipMode != nil || b.CustomerName != nil {
		t.Fatalf("blank cells should be absent")
	}
	if b.Sales.Valid {
		t.Fatalf("unparseable sales should be absent")
	}

	mar10, mar12 := model.NewDate(2024, time.March, 10), model.NewDate(2024, time.March, 12)
	dates := []struct {
		row         int
		order, ship model.Date
	}{
		{2, mar10, mar12},
		{3, mar10, mar12},
		{4, mar10, model.Date{}},
	}
	for _, tc := range dates {
		got := rows[tc.row]
		if !got.OrderDate.Equal(tc.order) || !got.ShipDate.Equal(tc.ship) {
			t.Fatalf("row %d dates=(%s,%s), want (%s,%s)", tc.row, got.OrderDate, got.ShipDate, tc.order, tc.ship)
		}
	}

	if s := rows[2].Sales; !s.Valid || !s.Decimal.Equal(decimal.RequireFromString("1234.56")) {
		t.Fatalf("grouped sales=%v, want 1234.56", s)
	}
	for _, i := range []int{3, 4} {
		if rows[i].Sales.Valid {
			t.Fatalf("row %d: comma decimal sales should be absent, got %v", i, rows[i].Sales.Decimal)
		}
	}
}

func TestParseSales(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in    string
		want  string
		valid bool
	}{
		{"1,234.56", "1234.56", true},
		{"-12,345", "-12345", true},
		{"1,234,567.8", "1234567.8", true},
		{"99,99", "", false},
		{"1,23", "", false},
		{"12,34,567", "", false},
		{"261.96", "261.96", true},
	}
	for _, tc := range cases {
		in := tc.in
		got := parseSales(&in)
		if got.Valid != tc.valid {
			t.Fatalf("parseSales(%q).Valid=%v, want %v", tc.in, got.Valid, tc.valid)
		}
		if tc.valid && !got.Decimal.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("parseSales(%q)=%s, want %s", tc.in, got.Decimal, tc.want)
		}
	}
}

func TestCSVReader_SnakeCaseHeaderAndMissingColumns(t *testing.T) {
	t.Parallel()

	src := "order_id,customer_id,sales\nO1,C1,10\n"
	r, err := NewCSVReader(strings.NewReader(src), CSVOptions{})
	if err != nil {
		t.Fatalf("NewCSVReader() err=%v", err)
	}
	row, err := r.Next()
	if err != nil {
		t.Fatalf("Next() err=%v", err)
	}
	if str(row.OrderID) != "O1" || str(row.CustomerID) != "C1" || row.ProductID != nil {
		t.Fatalf("unexpected row %+v", row)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next() err=%v, want io.EOF", err)
	}
}

func TestCSVReader_NoKnownColumns(t *testing.T) {
	t.Parallel()

	_, err := NewCSVReader(strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	if !errors.Is(err, ErrNoKnownColumns) {
		t.Fatalf("err=%v, want ErrNoKnownColumns", err)
	}
}

func TestCSVReader_Windows1252(t *testing.T) {
	t.Parallel()

	utf8 := "Customer ID,Customer Name\nC1,Zoë Ñuñez\n"
	raw, err := charmap.Windows1252.NewEncoder().String(utf8)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	r, err := NewCSVReader(strings.NewReader(raw), CSVOptions{Encoding: "windows-1252"})
	if err != nil {
		t.Fatalf("NewCSVReader() err=%v", err)
	}
	row, err := r.Next()
	if err != nil {
		t.Fatalf("Next() err=%v", err)
	}
	if str(row.CustomerName) != "Zoë Ñuñez" {
		t.Fatalf("CustomerName=%q", str(row.CustomerName))
	}
}

func TestCSVReader_MalformedRecords(t *testing.T) {
	t.Parallel()

	src := "Order ID,Customer ID\n\"O1,C1\nO2,C2\n"

	r, err := NewCSVReader(strings.NewReader(src), CSVOptions{})
	if err != nil {
		t.Fatalf("NewCSVReader() err=%v", err)
	}
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Fatalf("Next() err=%v, want parse error", err)
	}
}

func TestLookupEncoding(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "UTF-8", "windows-1252", " latin1 "} {
		if err := ValidateEncoding(name); err != nil {
			t.Fatalf("ValidateEncoding(%q) err=%v", name, err)
		}
	}
	if err := ValidateEncoding("ebcdic"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}

func TestHTMLReader(t *testing.T) {
	t.Parallel()

	doc := `<html><body>
<table id="other"><tr><td>ignore</td></tr></table>
<table class="sales">
  <thead><tr><th>Row ID</th><th>Order ID</th><th>Order Date</th><th>Customer ID</th><th>Sub-Category</th><th>Sales</th></tr></thead>
  <tbody>
    <tr><td>7</td><td> CA-9 </td><td>01/02/2024</td><td>C9</td><td>Binders</td><td>12.5</td></tr>
    <tr><td>8</td><td>CA-10</td><td>02.01.2024</td><td></td><td>Paper</td><td></td></tr>
  </tbody>
</table></body></html>`

	r, err := NewHTMLReader(strings.NewReader(doc), "table.sales")
	if err != nil {
		t.Fatalf("NewHTMLReader() err=%v", err)
	}
	rows, err := Collect(r)
	if err != nil {
		t.Fatalf("Collect() err=%v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows=%d, want 5", len(rows))
	}
	if str(rows[0].OrderID) != "CA-9" || str(rows[0].SubCategory) != "Binders" {
		t.Fatalf("row0=%+v", rows[0])
	}
	want := model.NewDate(2024, time.January, 2)
	if !rows[0].OrderDate.Equal(want) || !rows[1].OrderDate.Equal(want) {
		t.Fatalf("dates=(%s,%s), want both %s", rows[0].OrderDate, rows[1].OrderDate, want)
	}
	if rows[1].CustomerID != nil || rows[1].Sales.Valid {
		t.Fatalf("blank cells should be absent: %+v", rows[1])
	}
}

func TestHTMLReader_NoTable(t *testing.T) {
	t.Parallel()

	if _, err := NewHTMLReader(strings.NewReader("<p>nothing</p>"), ""); err == nil {
		t.Fatalf("expected error when no table matches")
	}
}

// recordingTx captures InsertRows calls; other methods are not used by Loader.
type recordingTx struct {
	storage.Tx
	batches [][][]any
	table   string
	failAt  int
}

func (tx *recordingTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if tx.failAt > 0 && len(tx.batches)+1 == tx.failAt {
		return 0, errors.New("disk full")
	}
	tx.table = table
	cp := make([][]any, len(rows))
	copy(cp, rows)
	tx.batches = append(tx.batches, cp)
	return int64(len(rows)), nil
}

type sliceReader struct {
	rows []model.StagingRow
	pos  int
}

func (s *sliceReader) Next() (model.StagingRow, error) {
	if s.pos >= len(s.rows) {
		return model.StagingRow{}, io.EOF
	}
	s.pos++
	return s.rows[s.pos-1], nil
}

func TestLoader_Chunks(t *testing.T) {
	t.Parallel()

	id := "O1"
	src := &sliceReader{rows: make([]model.StagingRow, 5)}
	for i := range src.rows {
		n := int64(i + 1)
		src.rows[i] = model.StagingRow{RowID: &n, OrderID: &id}
	}

	tx := &recordingTx{}
	n, err := Loader{Table: "staging.sales_raw", BatchSize: 2}.Load(context.Background(), tx, src)
	if err != nil {
		t.Fatalf("Load() err=%v", err)
	}
	if n != 5 {
		t.Fatalf("Load()=%d, want 5", n)
	}
	if len(tx.batches) != 3 || len(tx.batches[2]) != 1 {
		t.Fatalf("batches=%d, want 3 with a final single row", len(tx.batches))
	}
	if tx.table != "staging.sales_raw" {
		t.Fatalf("table=%q", tx.table)
	}
	first := tx.batches[0][0]
	if len(first) != len(storage.StagingColumns) || first[0] != int64(1) || first[1] != "O1" || first[2] != nil {
		t.Fatalf("unexpected args %v", first)
	}
}

func TestLoader_PropagatesInsertError(t *testing.T) {
	t.Parallel()

	src := &sliceReader{rows: make([]model.StagingRow, 3)}
	tx := &recordingTx{failAt: 2}
	n, err := Loader{Table: "staging.sales_raw", BatchSize: 1}.Load(context.Background(), tx, src)
	if err == nil {
		t.Fatalf("expected error")
	}
	if n != 1 {
		t.Fatalf("rows written before failure=%d, want 1", n)
	}
}

func TestLoader_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Loader{Table: "staging.sales_raw"}.Load(ctx, &recordingTx{}, &sliceReader{rows: make([]model.StagingRow, 1)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	args := Args(model.StagingRow{
		OrderDate: model.NewDate(2024, time.March, 10),
		Sales:     decimal.NewNullDecimal(decimal.RequireFromString("1.50")),
	})
	if args[0] != nil || args[3] != nil {
		t.Fatalf("absent values must bind as nil: %v", args)
	}
	if tm, ok := args[2].(time.Time); !ok || tm.Day() != 10 {
		t.Fatalf("order_date arg=%v", args[2])
	}
	if d, ok := args[17].(decimal.Decimal); !ok || !d.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("sales arg=%v, want 1.5", args[17])
	}
}

func TestSniffFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		sample string
		want   string
	}{
		{"csv header", "Row ID,Order ID\n1,O1\n", FormatCSV},
		{"html", "  \n<html><table></table></html>", FormatHTML},
		{"bom html", "\uFEFF<table></table>", FormatHTML},
		{"empty", "", FormatCSV},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SniffFormat([]byte(tc.sample)); got != tc.want {
				t.Fatalf("SniffFormat = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPeek_KeepsInput(t *testing.T) {
	t.Parallel()

	in := "<table><tr><th>Order ID</th></tr><tr><td>O1</td></tr></table>"
	format, r, err := Peek(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if format != FormatHTML {
		t.Fatalf("format = %q", format)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(b) != in {
		t.Fatalf("input not preserved: %q", b)
	}
}
