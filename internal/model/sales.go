// Package model holds the staging, transactional and dimensional records the
// pipeline moves between stages.
//
// Text attributes are *string: nil means absent (SQL NULL). Money is carried
// as decimal.Decimal so rounding follows NUMERIC semantics rather than float.
package model

import "github.com/shopspring/decimal"

// StagingRow is one raw sales record as landed in the staging table.
type StagingRow struct {
	RowID        *int64
	OrderID      *string
	OrderDate    Date
	ShipDate     Date
	ShipMode     *string
	CustomerID   *string
	CustomerName *string
	Segment      *string
	Country      *string
	City         *string
	State        *string
	PostalCode   *string
	Region       *string
	ProductID    *string
	Category     *string
	SubCategory  *string
	ProductName  *string
	Sales        decimal.NullDecimal
}

// Customer is the canonical customer entity keyed by CustomerID.
type Customer struct {
	SK           int64
	CustomerID   string
	CustomerName *string
	Segment      *string
	Country      *string
	City         *string
	State        *string
	PostalCode   *string
	Region       *string
}

// Product is the canonical product entity keyed by ProductID.
type Product struct {
	SK          int64
	ProductID   string
	ProductName *string
	Category    *string
	SubCategory *string
}

// Order is an immutable order header.
type Order struct {
	SK         int64
	OrderID    string
	CustomerSK int64
	OrderDate  Date
	ShipDate   Date
	ShipMode   *string
}

// OrderLine is one synthetic line per staging row.
type OrderLine struct {
	SK        int64
	OrderSK   int64
	ProductSK int64
	Quantity  int64
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// DimDate is one calendar day of the date dimension.
type DimDate struct {
	DateSK    int64
	FullDate  Date
	Year      int
	Quarter   int
	Month     int
	Day       int
	DayOfWeek int
	IsWeekend bool
}

// FactSales is one row of the sales fact table. Nil pointers are NULL keys.
type FactSales struct {
	CustomerSK  int64
	ProductSK   int64
	OrderDateSK int64
	ShipDateSK  *int64
	ShipModeSK  *int64
	OrderID     string
	Sales       decimal.Decimal
}

// MoneyScale is the number of fractional digits kept for unit prices and
// the sales measure.
const MoneyScale = 2

// RoundMoney rounds half away from zero to MoneyScale places, matching a
// NUMERIC(14,2) cast.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}
