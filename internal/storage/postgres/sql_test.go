package postgres

import (
	"errors"
	"strings"
	"testing"

	"salesdw/internal/storage"
)

func TestBuildInsertSQL_PlaceholdersAndArgs(t *testing.T) {
	t.Parallel()

	q, args, err := buildInsertSQL("oltp.order_line",
		[]string{"order_sk", "product_sk"},
		[][]any{{int64(1), int64(2)}, {int64(3), int64(4)}},
		nil, nil)
	if err != nil {
		t.Fatalf("buildInsertSQL: %v", err)
	}
	want := `INSERT INTO "oltp"."order_line" ("order_sk", "product_sk") VALUES ($1, $2), ($3, $4)`
	if q != want {
		t.Fatalf("sql mismatch\n got: %s\nwant: %s", q, want)
	}
	if len(args) != 4 || args[3] != int64(4) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildInsertSQL_OnConflictDoNothing(t *testing.T) {
	t.Parallel()

	q, _, err := buildInsertSQL("oltp.sales_order", []string{"order_id"}, [][]any{{"O1"}}, []string{"order_id"}, nil)
	if err != nil {
		t.Fatalf("buildInsertSQL: %v", err)
	}
	if !strings.HasSuffix(q, `ON CONFLICT ("order_id") DO NOTHING`) {
		t.Fatalf("missing DO NOTHING: %s", q)
	}
}

func TestBuildInsertSQL_OnConflictDoUpdate(t *testing.T) {
	t.Parallel()

	q, _, err := buildInsertSQL("oltp.customer",
		[]string{"customer_id", "segment", "region"},
		[][]any{{"C1", "Consumer", nil}},
		[]string{"customer_id"}, []string{"segment", "region"})
	if err != nil {
		t.Fatalf("buildInsertSQL: %v", err)
	}
	want := `ON CONFLICT ("customer_id") DO UPDATE SET "segment" = EXCLUDED."segment", "region" = EXCLUDED."region"`
	if !strings.HasSuffix(q, want) {
		t.Fatalf("unexpected upsert clause: %s", q)
	}
}

func TestBuildInsertSQL_Rejects(t *testing.T) {
	t.Parallel()

	if _, _, err := buildInsertSQL("staging.x;--", []string{"a"}, [][]any{{1}}, nil, nil); !errors.Is(err, storage.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for table, got %v", err)
	}
	if _, _, err := buildInsertSQL("t", []string{`a"b`}, [][]any{{1}}, nil, nil); !errors.Is(err, storage.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for column, got %v", err)
	}
	if _, _, err := buildInsertSQL("t", []string{"a", "b"}, [][]any{{1}}, nil, nil); err == nil {
		t.Fatalf("expected error for short row")
	}
	if _, _, err := buildInsertSQL("t", []string{"a"}, [][]any{{1}}, nil, []string{"a"}); err == nil {
		t.Fatalf("expected error for update without conflict target")
	}
}

func TestBuildTruncateSQL(t *testing.T) {
	t.Parallel()

	q, err := buildTruncateSQL([]string{storage.TableFactSales, storage.TableDimDate})
	if err != nil {
		t.Fatalf("buildTruncateSQL: %v", err)
	}
	want := `TRUNCATE TABLE "dw"."fact_sales", "dw"."dim_date" RESTART IDENTITY CASCADE`
	if q != want {
		t.Fatalf("got %s", q)
	}
}

func TestBuildSelectSQL_OrderBy(t *testing.T) {
	t.Parallel()

	q, err := buildSelectSQL("staging.sales_raw", []string{"row_id", "order_id"}, []string{"row_id"})
	if err != nil {
		t.Fatalf("buildSelectSQL: %v", err)
	}
	if q != `SELECT "row_id", "order_id" FROM "staging"."sales_raw" ORDER BY "row_id"` {
		t.Fatalf("got %s", q)
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
		if !strings.HasPrefix(schemaSQL, "CREATE SCHEMA IF NOT EXISTS") {
			t.Fatalf("%s: expected schema statement, got %q", s.Name, schemaSQL)
		}
		if !strings.HasPrefix(tableSQL, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("%s: unexpected DDL %q", s.Name, tableSQL)
		}
	}
}

func TestBuildCreateSQL_FactTable(t *testing.T) {
	t.Parallel()

	var fact storage.TableSpec
	for _, s := range storage.WarehouseSpecs() {
		if s.Name == storage.TableFactSales {
			fact = s
		}
	}
	_, q, err := buildCreateSQL(fact)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	for _, want := range []string{
		`"sales_sk" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY`,
		`"customer_sk" BIGINT NOT NULL REFERENCES "dw"."dim_customer" ("customer_sk")`,
		`"ship_date_sk" INTEGER REFERENCES "dw"."dim_date" ("date_sk")`,
		`"sales" NUMERIC(14,2) NOT NULL`,
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("DDL missing %q:\n%s", want, q)
		}
	}
}
