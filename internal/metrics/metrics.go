// Package metrics is the backend-agnostic metrics seam used by the pipeline.
//
// Pipeline code only calls the package-level helpers. A backend (Datadog, or
// none) is installed once by the binary through SetBackend; until then every
// call is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions, e.g. {"step": "normalize_customers"}.
type Labels map[string]string

// Backend receives metric observations.
//
// Metric names in use:
//   - etl_step_total             counter   labels: step, status
//   - etl_step_duration_seconds  histogram labels: step, status
//   - etl_records_total          counter   labels: kind
//   - etl_batches_total          counter
//   - etl_table_rows             gauge     labels: table
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	SetGauge(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// SetGauge records the latest value of a gauge.
func SetGauge(name string, value float64, labels Labels) {
	current().SetGauge(name, value, labels)
}

// Flush asks the backend to submit buffered observations.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one finished pipeline step and its duration.
// status is "ok" or "error".
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter("etl_step_total", 1, l)
	ObserveHistogram("etl_step_duration_seconds", d.Seconds(), l)
}

// RecordRecords counts records of a kind, e.g. "staging_loaded" or
// "order_lines_inserted".
func RecordRecords(kind string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter("etl_records_total", float64(n), Labels{"kind": kind})
}

// RecordBatch counts one write batch.
func RecordBatch() {
	IncCounter("etl_batches_total", 1, nil)
}

// RecordTableRows publishes the current row count of a table.
func RecordTableRows(table string, n int64) {
	SetGauge("etl_table_rows", float64(n), Labels{"table": table})
}
