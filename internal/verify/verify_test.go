package verify

import (
	"context"
	"errors"
	"testing"

	"salesdw/internal/metrics"
	"salesdw/internal/storage"
)

type countTx struct {
	storage.Tx
	counts map[string]int64
	failOn string
}

func (c *countTx) CountRows(ctx context.Context, table string) (int64, error) {
	if table == c.failOn {
		return 0, errors.New("no such table")
	}
	return c.counts[table], nil
}

type gaugeBackend struct {
	gauges map[string]float64
}

func (g *gaugeBackend) IncCounter(string, float64, metrics.Labels)       {}
func (g *gaugeBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (g *gaugeBackend) SetGauge(name string, v float64, l metrics.Labels) {
	g.gauges[l["table"]] = v
}
func (g *gaugeBackend) Flush() error { return nil }

func TestCount(t *testing.T) {
	gb := &gaugeBackend{gauges: map[string]float64{}}
	metrics.SetBackend(gb)
	t.Cleanup(func() { metrics.SetBackend(nil) })

	tx := &countTx{counts: map[string]int64{
		"staging.sales_raw":    4,
		storage.TableCustomer:  2,
		storage.TableFactSales: 3,
	}}
	rep, err := Count(context.Background(), tx, "staging.sales_raw")
	if err != nil {
		t.Fatalf("Count() err=%v", err)
	}
	if len(rep) != 10 {
		t.Fatalf("report has %d tables, want 10", len(rep))
	}
	if rep[0].Table != "staging.sales_raw" || rep[len(rep)-1].Table != storage.TableFactSales {
		t.Fatalf("unexpected order: %s", rep)
	}
	if n, ok := rep.Rows(storage.TableFactSales); !ok || n != 3 {
		t.Fatalf("Rows(fact)=%d,%v", n, ok)
	}
	if _, ok := rep.Rows("dw.nope"); ok {
		t.Fatalf("unknown table should not be found")
	}
	if gb.gauges[storage.TableCustomer] != 2 {
		t.Fatalf("gauge not published: %v", gb.gauges)
	}
}

func TestCount_Error(t *testing.T) {
	t.Parallel()

	_, err := Count(context.Background(), &countTx{failOn: storage.TableOrder}, "staging.sales_raw")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestReportString(t *testing.T) {
	t.Parallel()

	r := Report{{Table: "a.b", Rows: 1}, {Table: "c.d", Rows: 0}}
	if got := r.String(); got != "a.b=1 c.d=0" {
		t.Fatalf("String()=%q", got)
	}
}
