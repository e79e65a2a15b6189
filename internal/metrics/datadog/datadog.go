// Package datadog is a metrics.Backend that buffers observations in memory
// and submits them to the Datadog v2 intake.
//
// Observations are aggregated per metric name and label set until the next
// flush. A background loop flushes every FlushEvery; Close stops the loop and
// flushes whatever is left. Delivery is at most once: a failed submission
// drops its batch.
package datadog

import (
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"salesdw/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

const (
	defaultJob        = "salesdw"
	defaultPrefix     = "salesdw"
	defaultFlushEvery = time.Minute
)

// Options configures NewBackend.
type Options struct {
	// JobName is sent as tag job:<name>. Defaults to "salesdw".
	JobName string
	// Tags are extra tags on every series, e.g. "env:prod".
	Tags []string
	// FlushEvery is the submit period. Defaults to one minute.
	FlushEvery time.Duration
	// Prefix replaces the "etl_" prefix of metric names. Defaults to "salesdw",
	// so etl_step_total is sent as salesdw.step.total.
	Prefix string

	clock  func() time.Time
	submit submitFunc
}

type submitFunc func(ctx context.Context, payload datadogV2.MetricPayload) error

type kind int

const (
	kindCount kind = iota
	kindGauge
	kindSummary
)

// series is one buffered metric+tags combination.
type series struct {
	metric  string
	tags    []string
	kind    kind
	value   float64
	samples []float64
}

// Backend buffers observations and submits them periodically.
type Backend struct {
	submit   submitFunc
	ddCtx    context.Context
	prefix   string
	tags     []string
	interval time.Duration
	clock    func() time.Time

	mu      sync.Mutex
	pending map[string]*series

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
	closeErr error
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend starts a backend. API key and site are read by the Datadog
// client from DD_API_KEY and DD_SITE. The environment tag comes from DD_ENV,
// then ENV, and is omitted when neither is set.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if opts.JobName == "" {
		opts.JobName = defaultJob
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = defaultFlushEvery
	}
	if opts.clock == nil {
		opts.clock = time.Now
	}
	if opts.submit == nil {
		api := datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
		opts.submit = func(ctx context.Context, payload datadogV2.MetricPayload) error {
			_, _, err := api.SubmitMetrics(ctx, payload)
			return err
		}
	}

	tags := []string{"job:" + opts.JobName}
	if env := envTag(); env != "" {
		tags = append(tags, env)
	}
	tags = append(tags, opts.Tags...)

	loopCtx, cancel := context.WithCancel(parent)
	b := &Backend{
		submit: opts.submit,
		// The final flush in Close must survive cancellation of parent.
		ddCtx:    dd.NewDefaultContext(context.WithoutCancel(parent)),
		prefix:   opts.Prefix,
		tags:     tags,
		interval: opts.FlushEvery,
		clock:    opts.clock,
		pending:  make(map[string]*series),
		cancel:   cancel,
	}

	b.wg.Add(1)
	go b.run(loopCtx)
	return b, nil
}

func envTag() string {
	for _, k := range []string{"DD_ENV", "ENV"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return "env:" + v
		}
	}
	return ""
}

func (b *Backend) run(ctx context.Context) {
	defer b.wg.Done()
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = b.Flush()
		}
	}
}

// Close stops the flush loop and submits what is still buffered. Later
// calls return the first call's result.
func (b *Backend) Close() error {
	b.once.Do(func() {
		b.cancel()
		b.wg.Wait()
		b.closeErr = b.Flush()
	})
	return b.closeErr
}

// IncCounter implements metrics.Backend. Non-positive deltas are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	b.observe(name, kindCount, labels, func(s *series) { s.value += delta })
}

// ObserveHistogram implements metrics.Backend. Negative samples are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || math.IsNaN(value) {
		return
	}
	b.observe(name, kindSummary, labels, func(s *series) { s.samples = append(s.samples, value) })
}

// SetGauge implements metrics.Backend. The last value before a flush wins.
func (b *Backend) SetGauge(name string, value float64, labels metrics.Labels) {
	b.observe(name, kindGauge, labels, func(s *series) { s.value = value })
}

func (b *Backend) observe(name string, k kind, labels metrics.Labels, apply func(*series)) {
	metric := b.metricName(name)
	tags := labelTags(labels)
	key := metric + "|" + strings.Join(tags, ",")

	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.pending[key]
	if !ok {
		s = &series{metric: metric, tags: tags, kind: k}
		b.pending[key] = s
	}
	apply(s)
}

// metricName maps etl_step_total to <prefix>.step.total.
func (b *Backend) metricName(name string) string {
	name = strings.TrimPrefix(name, "etl_")
	return b.prefix + "." + strings.ReplaceAll(name, "_", ".")
}

// labelTags renders labels as sorted key:value tags, skipping empty values.
func labelTags(labels metrics.Labels) []string {
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		if v != "" {
			tags = append(tags, k+":"+v)
		}
	}
	slices.Sort(tags)
	return tags
}

// Flush implements metrics.Backend. It returns nil without a request when
// nothing is buffered.
func (b *Backend) Flush() error {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]*series)
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.build(pending, b.clock().Unix())}
	if err := b.submit(b.ddCtx, payload); err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// build renders buffered series in key order.
func (b *Backend) build(pending map[string]*series, ts int64) []datadogV2.MetricSeries {
	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]datadogV2.MetricSeries, 0, len(keys))
	for _, k := range keys {
		s := pending[k]
		tags := append(slices.Clone(b.tags), s.tags...)
		switch s.kind {
		case kindCount:
			ms := point(s.metric, datadogV2.METRICINTAKETYPE_COUNT, s.value, tags, ts)
			ms.Interval = dd.PtrInt64(int64(b.interval / time.Second))
			out = append(out, ms)
		case kindGauge:
			out = append(out, point(s.metric, datadogV2.METRICINTAKETYPE_GAUGE, s.value, tags, ts))
		case kindSummary:
			out = append(out, summarize(s.metric, s.samples, tags, ts)...)
		}
	}
	return out
}

// summarize turns samples into count, avg, p95 and max gauges.
func summarize(metric string, samples []float64, tags []string, ts int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return nil
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	g := datadogV2.METRICINTAKETYPE_GAUGE
	return []datadogV2.MetricSeries{
		point(metric+".count", g, float64(len(sorted)), tags, ts),
		point(metric+".avg", g, sum/float64(len(sorted)), tags, ts),
		point(metric+".p95", g, nearestRank(sorted, 0.95), tags, ts),
		point(metric+".max", g, sorted[len(sorted)-1], tags, ts),
	}
}

// nearestRank returns the p-th percentile of sorted, p in (0, 1].
func nearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(len(sorted))))
	return sorted[min(max(rank, 1), len(sorted))-1]
}

func point(metric string, t datadogV2.MetricIntakeType, v float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   t.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
		Tags:   tags,
	}
}

// ParseTagsCSV splits "env:prod, team:data" into tags, dropping blanks.
func ParseTagsCSV(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// WrapInitErr prefixes backend construction errors.
func WrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
