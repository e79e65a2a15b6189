package mssql

import (
	"errors"
	"strings"
	"testing"

	"salesdw/internal/storage"
)

func TestDedupeRowsByColumns_StableAndCorrect(t *testing.T) {
	// SQL Server does not collapse duplicate keys inside one VALUES source, so
	// the backend keeps exactly one row per key, the first occurrence.
	columns := []string{"order_id", "customer_sk", "order_date"}
	rows := [][]any{
		{"O1", int64(1), "2024-01-01"},
		{"O1", int64(1), "2024-01-02"},
		{"O2", int64(9), "2024-02-01"},
		{" O1", int64(2), "2024-03-01"},
		{"O3", int64(3), "2024-04-01"},
	}

	got, err := dedupeRowsByColumns(rows, columns, []string{"order_id"})
	if err != nil {
		t.Fatalf("dedupeRowsByColumns returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after dedupe, got %d", len(got))
	}
	if got[0][2] != "2024-01-01" {
		t.Fatalf("first O1 row not preserved; got=%v", got[0])
	}
	if got[1][0] != "O2" || got[2][0] != "O3" {
		t.Fatalf("order of first occurrences not preserved; got=%v", got)
	}
}

func TestDedupeRowsByColumns_MissingColumnErrors(t *testing.T) {
	_, err := dedupeRowsByColumns([][]any{{1, 2}}, []string{"a", "b"}, []string{"missing"})
	if err == nil {
		t.Fatalf("expected error for missing key column, got nil")
	}
}

func TestBuildInsertNotExistsSQL(t *testing.T) {
	t.Parallel()

	q, args, err := buildInsertNotExistsSQL("oltp.sales_order",
		[]string{"order_id", "customer_sk"},
		[][]any{{"O1", int64(1)}, {"O2", int64(2)}},
		[]string{"order_id"})
	if err != nil {
		t.Fatalf("buildInsertNotExistsSQL: %v", err)
	}
	want := "INSERT INTO [oltp].[sales_order] ([order_id], [customer_sk]) SELECT v.[order_id], v.[customer_sk] " +
		"FROM (VALUES (@p1, @p2), (@p3, @p4)) AS v([order_id], [customer_sk]) " +
		"WHERE NOT EXISTS (SELECT 1 FROM [oltp].[sales_order] t WHERE t.[order_id] = v.[order_id])"
	if q != want {
		t.Fatalf("sql mismatch\n got: %s\nwant: %s", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
}

func TestBuildMergeSQL(t *testing.T) {
	t.Parallel()

	q, _, err := buildMergeSQL("oltp.product",
		[]string{"product_id", "category"},
		[][]any{{"P1", "Furniture"}},
		[]string{"product_id"}, []string{"category"})
	if err != nil {
		t.Fatalf("buildMergeSQL: %v", err)
	}
	for _, want := range []string{
		"MERGE INTO [oltp].[product] AS t USING (VALUES (@p1, @p2)) AS v([product_id], [category])",
		"ON t.[product_id] = v.[product_id]",
		"WHEN MATCHED THEN UPDATE SET t.[category] = v.[category]",
		"WHEN NOT MATCHED THEN INSERT ([product_id], [category]) VALUES (v.[product_id], v.[category]);",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("MERGE missing %q:\n%s", want, q)
		}
	}
}

func TestBuildResetSQL(t *testing.T) {
	t.Parallel()

	q, err := buildResetSQL(storage.TableDimCustomer)
	if err != nil {
		t.Fatalf("buildResetSQL: %v", err)
	}
	if !strings.HasPrefix(q, "DELETE FROM [dw].[dim_customer];") {
		t.Fatalf("unexpected reset: %s", q)
	}
	if !strings.Contains(q, "DBCC CHECKIDENT (N'[dw].[dim_customer]', RESEED, 0)") {
		t.Fatalf("missing reseed: %s", q)
	}

	if _, err := buildResetSQL("dw.fact_sales'; DROP TABLE x; --"); !errors.Is(err, storage.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestBuildCreateSQL_Catalog(t *testing.T) {
	t.Parallel()

	specs, err := storage.Catalog("")
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	for _, s := range specs {
		schemaSQL, tableSQL, err := buildCreateSQL(s)
		if err != nil {
			t.Fatalf("buildCreateSQL(%s): %v", s.Name, err)
		}
		if !strings.HasPrefix(schemaSQL, "IF SCHEMA_ID(N'") {
			t.Fatalf("%s: unexpected schema DDL %q", s.Name, schemaSQL)
		}
		if !strings.HasPrefix(tableSQL, "IF OBJECT_ID(N'") {
			t.Fatalf("%s: unexpected table DDL %q", s.Name, tableSQL)
		}
	}
}

func TestBuildCreateSQL_Customer(t *testing.T) {
	t.Parallel()

	_, q, err := buildCreateSQL(storage.OLTPSpecs()[0])
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	for _, want := range []string{
		"[customer_sk] BIGINT IDENTITY(1,1) PRIMARY KEY",
		"[customer_id] NVARCHAR(255) NOT NULL",
		"[segment] NVARCHAR(255) NULL",
		"UNIQUE ([customer_id])",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("DDL missing %q:\n%s", want, q)
		}
	}
}

func TestChunkRows(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ncols int
		want  int
	}{
		{0, 1000},
		{1, 1000},
		{2, 1000},
		{3, 666},
		{18, 111},
		{2500, 1},
	}
	for _, tc := range cases {
		if got := chunkRows(tc.ncols); got != tc.want {
			t.Errorf("chunkRows(%d) = %d, want %d", tc.ncols, got, tc.want)
		}
		if got := chunkRows(tc.ncols); got*max(1, tc.ncols) > 2100 && got > 1 {
			t.Errorf("chunkRows(%d) = %d exceeds the parameter limit", tc.ncols, got)
		}
	}
}
