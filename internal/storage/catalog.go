package storage

import "fmt"

// Fixed table names. Only the staging table name is configurable.
const (
	StagingSchema       = "staging"
	DefaultStagingTable = "sales_raw"

	TableCustomer  = "oltp.customer"
	TableProduct   = "oltp.product"
	TableOrder     = "oltp.sales_order"
	TableOrderLine = "oltp.order_line"

	TableDimCustomer = "dw.dim_customer"
	TableDimProduct  = "dw.dim_product"
	TableDimShipMode = "dw.dim_ship_mode"
	TableDimDate     = "dw.dim_date"
	TableFactSales   = "dw.fact_sales"
)

// StagingColumns is the fixed staging column set, in load order.
var StagingColumns = []string{
	"row_id", "order_id", "order_date", "ship_date", "ship_mode",
	"customer_id", "customer_name", "segment", "country", "city", "state",
	"postal_code", "region",
	"product_id", "category", "sub_category", "product_name",
	"sales",
}

// CustomerAttributes are the descriptive customer columns shared by the OLTP
// and DW customer tables.
var CustomerAttributes = []string{
	"customer_name", "segment", "country", "city", "state", "postal_code", "region",
}

// ProductAttributes are the descriptive product columns shared by the OLTP
// and DW product tables.
var ProductAttributes = []string{"product_name", "category", "sub_category"}

// WarehouseTables lists every DW table, dependents first. This is the order
// the rebuild truncates in.
var WarehouseTables = []string{
	TableFactSales, TableDimShipMode, TableDimDate, TableDimProduct, TableDimCustomer,
}

// StagingTableName qualifies a configured staging table name. An empty name
// selects DefaultStagingTable.
func StagingTableName(name string) (string, error) {
	if name == "" {
		name = DefaultStagingTable
	}
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("staging table: %w", err)
	}
	return StagingSchema + "." + name, nil
}

func text(name string) ColumnSpec { return ColumnSpec{Name: name, Type: TypeText, Nullable: true} }

func textCols(names []string) []ColumnSpec {
	out := make([]ColumnSpec, 0, len(names))
	for _, n := range names {
		out = append(out, text(n))
	}
	return out
}

func ref(name, typ, table, column string, nullable bool) ColumnSpec {
	return ColumnSpec{Name: name, Type: typ, Nullable: nullable, References: &RefSpec{Table: table, Column: column}}
}

func identity(name string) *PrimaryKeySpec { return &PrimaryKeySpec{Name: name, Type: TypeIdentity} }

func unique(cols ...string) []ConstraintSpec {
	return []ConstraintSpec{{Kind: "unique", Columns: cols}}
}

// StagingSpec describes the append-only staging table.
func StagingSpec(qualified string) TableSpec {
	cols := []ColumnSpec{
		{Name: "row_id", Type: TypeBigInt, Nullable: true},
		text("order_id"),
		{Name: "order_date", Type: TypeDate, Nullable: true},
		{Name: "ship_date", Type: TypeDate, Nullable: true},
	}
	for _, c := range StagingColumns[4:17] {
		cols = append(cols, text(c))
	}
	cols = append(cols, ColumnSpec{Name: "sales", Type: TypeAmount, Nullable: true})
	return TableSpec{Name: qualified, Columns: cols}
}

// OLTPSpecs describes the normalized transactional tables, parents first.
func OLTPSpecs() []TableSpec {
	return []TableSpec{
		{
			Name:        TableCustomer,
			PrimaryKey:  identity("customer_sk"),
			Columns:     append([]ColumnSpec{{Name: "customer_id", Type: TypeText}}, textCols(CustomerAttributes)...),
			Constraints: unique("customer_id"),
		},
		{
			Name:        TableProduct,
			PrimaryKey:  identity("product_sk"),
			Columns:     append([]ColumnSpec{{Name: "product_id", Type: TypeText}}, textCols(ProductAttributes)...),
			Constraints: unique("product_id"),
		},
		{
			Name:       TableOrder,
			PrimaryKey: identity("order_sk"),
			Columns: []ColumnSpec{
				{Name: "order_id", Type: TypeText},
				ref("customer_sk", TypeBigInt, TableCustomer, "customer_sk", false),
				{Name: "order_date", Type: TypeDate},
				{Name: "ship_date", Type: TypeDate, Nullable: true},
				text("ship_mode"),
			},
			Constraints: unique("order_id"),
		},
		{
			Name:       TableOrderLine,
			PrimaryKey: identity("order_line_sk"),
			Columns: []ColumnSpec{
				ref("order_sk", TypeBigInt, TableOrder, "order_sk", false),
				ref("product_sk", TypeBigInt, TableProduct, "product_sk", false),
				{Name: "quantity", Type: TypeInt},
				{Name: "unit_price", Type: TypeMoney},
				{Name: "line_total", Type: TypeMoney},
			},
		},
	}
}

// WarehouseSpecs describes the star schema, dimensions before the fact table.
func WarehouseSpecs() []TableSpec {
	return []TableSpec{
		{
			Name:        TableDimCustomer,
			PrimaryKey:  identity("customer_sk"),
			Columns:     append([]ColumnSpec{{Name: "customer_id", Type: TypeText}}, textCols(CustomerAttributes)...),
			Constraints: unique("customer_id"),
		},
		{
			Name:        TableDimProduct,
			PrimaryKey:  identity("product_sk"),
			Columns:     append([]ColumnSpec{{Name: "product_id", Type: TypeText}}, textCols(ProductAttributes)...),
			Constraints: unique("product_id"),
		},
		{
			Name:        TableDimShipMode,
			PrimaryKey:  identity("ship_mode_sk"),
			Columns:     []ColumnSpec{{Name: "ship_mode", Type: TypeText}},
			Constraints: unique("ship_mode"),
		},
		{
			Name:       TableDimDate,
			PrimaryKey: &PrimaryKeySpec{Name: "date_sk", Type: TypeInt},
			Columns: []ColumnSpec{
				{Name: "full_date", Type: TypeDate},
				{Name: "year", Type: TypeInt},
				{Name: "quarter", Type: TypeInt},
				{Name: "month", Type: TypeInt},
				{Name: "day", Type: TypeInt},
				{Name: "day_of_week", Type: TypeInt},
				{Name: "is_weekend", Type: TypeBool},
			},
			Constraints: unique("full_date"),
		},
		{
			Name:       TableFactSales,
			PrimaryKey: identity("sales_sk"),
			Columns: []ColumnSpec{
				ref("customer_sk", TypeBigInt, TableDimCustomer, "customer_sk", false),
				ref("product_sk", TypeBigInt, TableDimProduct, "product_sk", false),
				ref("order_date_sk", TypeInt, TableDimDate, "date_sk", false),
				ref("ship_date_sk", TypeInt, TableDimDate, "date_sk", true),
				ref("ship_mode_sk", TypeBigInt, TableDimShipMode, "ship_mode_sk", true),
				{Name: "dd_order_id", Type: TypeText},
				{Name: "sales", Type: TypeMoney},
			},
		},
	}
}

// Catalog returns every table the pipeline owns in creation order: staging,
// then OLTP, then DW.
func Catalog(stagingTable string) ([]TableSpec, error) {
	name, err := StagingTableName(stagingTable)
	if err != nil {
		return nil, err
	}
	out := []TableSpec{StagingSpec(name)}
	out = append(out, OLTPSpecs()...)
	out = append(out, WarehouseSpecs()...)
	return out, nil
}
