package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the CLI and HTTP API.
const (
	MetricValidations        = "descriptor.validations"
	MetricValidationFailures = "descriptor.validation_failures"
	MetricExports            = "descriptor.exports"
	MetricExportFailures     = "descriptor.export_failures"
	MetricPublishes          = "descriptor.publishes"
	MetricPlans              = "plan.builds"
	MetricPlanReleases       = "plan.releases"
	MetricPlanCommits        = "plan.commits"
	MetricPlanDuration       = "plan.duration_ms"
	MetricStoredDescriptors  = "store.descriptors"
)

type Counter struct {
	value int64
}

func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

type Gauge struct {
	value int64
}

func (g *Gauge) Set(v int64) {
	atomic.StoreInt64(&g.value, v)
}

func (g *Gauge) Value() int64 {
	return atomic.LoadInt64(&g.value)
}

// Histogram aggregates observations into count, sum and max; raw values are
// not retained.
type Histogram struct {
	mu    sync.Mutex
	sum   float64
	count int64
	max   float64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	if v > h.max {
		h.max = v
	}
}

// ObserveSince records the milliseconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(float64(time.Since(start).Microseconds()) / 1000)
}

type HistogramSnapshot struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
}

func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return HistogramSnapshot{}
	}
	return HistogramSnapshot{Count: h.count, Sum: h.sum, Avg: h.sum / float64(h.count), Max: h.max}
}

type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func (r *Registry) Counter(name string) *Counter {
	return metric(r, r.counters, name)
}

func (r *Registry) Gauge(name string) *Gauge {
	return metric(r, r.gauges, name)
}

func (r *Registry) Histogram(name string) *Histogram {
	return metric(r, r.histograms, name)
}

// metric returns the named entry of set, creating it on first use.
func metric[T any](r *Registry, set map[string]*T, name string) *T {
	r.mu.RLock()
	m, ok := set[name]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := set[name]; ok {
		return m
	}
	m = new(T)
	set[name] = m
	return m
}

// Snapshot flattens every metric into "kind.name[.field]" keys.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]interface{})
	for name, c := range r.counters {
		result["counter."+name] = c.Value()
	}
	for name, g := range r.gauges {
		result["gauge."+name] = g.Value()
	}
	for name, h := range r.histograms {
		s := h.Snapshot()
		result["histogram."+name+".count"] = s.Count
		result["histogram."+name+".sum"] = s.Sum
		result["histogram."+name+".avg"] = s.Avg
		result["histogram."+name+".max"] = s.Max
	}
	return result
}
