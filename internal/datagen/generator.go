// Package datagen produces synthetic staging files shaped like the public
// Superstore sales export, for local runs and demos.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

// Header is the column title row of the export.
var Header = []string{
	"Row ID", "Order ID", "Order Date", "Ship Date", "Ship Mode",
	"Customer ID", "Customer Name", "Segment", "Country", "City", "State",
	"Postal Code", "Region",
	"Product ID", "Category", "Sub-Category", "Product Name",
	"Sales",
}

var (
	shipModes = []string{"Standard Class", "Second Class", "First Class", "Same Day"}
	segments  = []string{"Consumer", "Corporate", "Home Office"}
	regions   = []string{"West", "East", "Central", "South"}

	subCategories = map[string][]string{
		"Furniture":       {"Bookcases", "Chairs", "Furnishings", "Tables"},
		"Office Supplies": {"Appliances", "Art", "Binders", "Envelopes", "Paper", "Storage"},
		"Technology":      {"Accessories", "Copiers", "Machines", "Phones"},
	}
	categories = []string{"Furniture", "Office Supplies", "Technology"}
	catCodes   = map[string]string{"Furniture": "FUR", "Office Supplies": "OFF", "Technology": "TEC"}
)

type customer struct {
	id, name, segment, city, state, zip, region string
}

type product struct {
	id, category, subCategory, name string
	price                           float64
}

// Options controls generation.
type Options struct {
	// Rows is the number of data rows to write.
	Rows int
	// Seed makes output reproducible; zero picks a time-based seed.
	Seed uint64
	// From and To bound order dates; zero values select 2021-01-01..2024-12-31.
	From, To time.Time
	// DirtyKeys pads some customer ids with whitespace so key normalization
	// has something to do.
	DirtyKeys bool
}

// Generator writes synthetic rows drawn from fixed customer and product pools.
type Generator struct {
	faker     *gofakeit.Faker
	opts      Options
	customers []customer
	products  []product
}

// New creates a Generator with pools sized to the requested row count.
func New(opts Options) *Generator {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if opts.From.IsZero() {
		opts.From = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if opts.To.IsZero() {
		opts.To = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	}

	g := &Generator{faker: gofakeit.New(seed), opts: opts}
	g.customers = g.makeCustomers(max(1, opts.Rows/8))
	g.products = g.makeProducts(max(1, opts.Rows/5))
	return g
}

func (g *Generator) makeCustomers(n int) []customer {
	out := make([]customer, 0, n)
	for i := range n {
		first, last := g.faker.FirstName(), g.faker.LastName()
		out = append(out, customer{
			id:      fmt.Sprintf("%c%c-%05d", first[0], last[0], 10000+i),
			name:    first + " " + last,
			segment: g.faker.RandomString(segments),
			city:    g.faker.City(),
			state:   g.faker.State(),
			zip:     g.faker.Zip(),
			region:  g.faker.RandomString(regions),
		})
	}
	return out
}

func (g *Generator) makeProducts(n int) []product {
	out := make([]product, 0, n)
	for i := range n {
		cat := g.faker.RandomString(categories)
		sub := g.faker.RandomString(subCategories[cat])
		out = append(out, product{
			id:          fmt.Sprintf("%s-%s-%08d", catCodes[cat], sub[:2], 10000000+i),
			category:    cat,
			subCategory: sub,
			name:        g.faker.ProductName(),
			price:       g.faker.Price(2, 900),
		})
	}
	return out
}

// WriteCSV writes the header and opts.Rows rows to w. Orders carry one to
// four lines that share the order header.
func (g *Generator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	rowID := 1
	for rowID <= g.opts.Rows {
		lines := g.faker.IntRange(1, 4)
		c := g.customers[g.faker.IntRange(0, len(g.customers)-1)]
		orderDate := g.faker.DateRange(g.opts.From, g.opts.To).UTC()
		shipDate := orderDate.AddDate(0, 0, g.faker.IntRange(0, 7))
		orderID := fmt.Sprintf("CA-%d-%06d", orderDate.Year(), g.faker.IntRange(100000, 999999))
		mode := g.faker.RandomString(shipModes)

		custID := c.id
		if g.opts.DirtyKeys && g.faker.IntRange(0, 9) == 0 {
			custID = " " + custID[:2] + " " + custID[2:] + " "
		}

		for l := 0; l < lines && rowID <= g.opts.Rows; l++ {
			p := g.products[g.faker.IntRange(0, len(g.products)-1)]
			qty := g.faker.IntRange(1, 5)
			sales := decimal.NewFromFloat(p.price).Mul(decimal.NewFromInt(int64(qty))).Round(4)

			rec := []string{
				strconv.Itoa(rowID), orderID,
				orderDate.Format("1/2/2006"), shipDate.Format("1/2/2006"), mode,
				custID, c.name, c.segment, "United States", c.city, c.state, c.zip, c.region,
				p.id, p.category, p.subCategory, p.name,
				sales.String(),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
			rowID++
		}
	}

	cw.Flush()
	return cw.Error()
}
