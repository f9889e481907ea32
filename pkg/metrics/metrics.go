// Package metrics provides minimal Prometheus-text counters, gauges, and
// histograms plus an HTTP middleware, exposed without a client dependency.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	v    uint64
	name string
	help string
}

func NewCounter(name, help string) *Counter { return &Counter{name: name, help: help} }

func (c *Counter) Inc()          { atomic.AddUint64(&c.v, 1) }
func (c *Counter) Add(n uint64)  { atomic.AddUint64(&c.v, n) }
func (c *Counter) Value() uint64 { return atomic.LoadUint64(&c.v) }

func (c *Counter) expose(w io.Writer) {
	if c.help != "" {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	}
	fmt.Fprintf(w, "# TYPE %s counter\n%s %d\n", c.name, c.name, c.Value())
}

type Gauge struct {
	v    uint64
	name string
	help string
}

func NewGauge(name, help string) *Gauge { return &Gauge{name: name, help: help} }

func (g *Gauge) Set(n uint64)  { atomic.StoreUint64(&g.v, n) }
func (g *Gauge) Value() uint64 { return atomic.LoadUint64(&g.v) }

func (g *Gauge) expose(w io.Writer) {
	if g.help != "" {
		fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help)
	}
	fmt.Fprintf(w, "# TYPE %s gauge\n%s %d\n", g.name, g.name, g.Value())
}

// Histogram is a cumulative bucket histogram; the +Inf bucket is implied.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	cnt     uint64
}

func defaultBuckets() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
}

func NewHistogram(name, help string, buckets []float64) *Histogram {
	if len(buckets) == 0 {
		buckets = defaultBuckets()
	}
	cp := append([]float64(nil), buckets...)
	sort.Float64s(cp)
	return &Histogram{name: name, help: help, buckets: cp, counts: make([]uint64, len(cp))}
}

func (h *Histogram) Observe(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := sort.SearchFloat64s(h.buckets, v); i < len(h.counts) {
		h.counts[i]++
	}
	h.cnt++
	h.sum += v
}

func (h *Histogram) expose(w io.Writer) {
	if h.help != "" {
		fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help)
	}
	fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)
	h.mu.Lock()
	defer h.mu.Unlock()
	var cum uint64
	for i, b := range h.buckets {
		cum += h.counts[i]
		fmt.Fprintf(w, "%s_bucket{le=\"%g\"} %d\n", h.name, b, cum)
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.cnt)
	fmt.Fprintf(w, "%s_sum %g\n", h.name, h.sum)
	fmt.Fprintf(w, "%s_count %d\n", h.name, h.cnt)
}

// LabeledCounter is a counter keyed by a fixed label order.
type LabeledCounter struct {
	name       string
	help       string
	labelOrder []string
	mu         sync.Mutex
	m          map[string]uint64
}

const labelSep = "\x1f"

func NewLabeledCounter(name, help string, labelOrder []string) *LabeledCounter {
	return &LabeledCounter{name: name, help: help, labelOrder: labelOrder, m: map[string]uint64{}}
}

func (c *LabeledCounter) Inc(labels map[string]string) {
	vals := make([]string, len(c.labelOrder))
	for i, k := range c.labelOrder {
		vals[i] = labels[k]
	}
	key := strings.Join(vals, labelSep)
	c.mu.Lock()
	c.m[key]++
	c.mu.Unlock()
}

func (c *LabeledCounter) expose(w io.Writer) {
	if c.help != "" {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	}
	fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := strings.Split(k, labelSep)
		fmt.Fprintf(w, "%s{", c.name)
		for i, name := range c.labelOrder {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			v := ""
			if i < len(vals) {
				v = vals[i]
			}
			fmt.Fprintf(w, "%s=%q", name, v)
		}
		fmt.Fprintf(w, "} %d\n", c.m[k])
	}
}

// Registry collects metrics for one /metrics endpoint. No package-level
// registry exists; each service owns its own.
type Registry struct {
	mu       sync.Mutex
	counters []*Counter
	gauges   []*Gauge
	histos   []*Histogram
	labeled  []*LabeledCounter
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(c *Counter) {
	r.mu.Lock()
	r.counters = append(r.counters, c)
	r.mu.Unlock()
}

func (r *Registry) RegisterGauge(g *Gauge) {
	r.mu.Lock()
	r.gauges = append(r.gauges, g)
	r.mu.Unlock()
}

func (r *Registry) RegisterHistogram(h *Histogram) {
	r.mu.Lock()
	r.histos = append(r.histos, h)
	r.mu.Unlock()
}

func (r *Registry) RegisterLabeledCounter(c *LabeledCounter) {
	r.mu.Lock()
	r.labeled = append(r.labeled, c)
	r.mu.Unlock()
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.counters {
		c.expose(w)
	}
	for _, g := range r.gauges {
		g.expose(w)
	}
	for _, h := range r.histos {
		h.expose(w)
	}
	for _, c := range r.labeled {
		c.expose(w)
	}
}

// HTTPMetrics instruments a handler with request count, error count, and
// latency, plus an outcome counter labeled by route and decision.
type HTTPMetrics struct {
	RequestsTotal *Counter
	ErrorsTotal   *Counter
	Duration      *Histogram
}

func NewHTTPMetrics(reg *Registry, service string) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: NewCounter(service+"_http_requests_total", "Total HTTP requests"),
		ErrorsTotal:   NewCounter(service+"_http_errors_total", "Total HTTP 5xx responses"),
		Duration:      NewHistogram(service+"_http_request_duration_seconds", "HTTP request latency", nil),
	}
	reg.Register(m.RequestsTotal)
	reg.Register(m.ErrorsTotal)
	reg.RegisterHistogram(m.Duration)
	return m
}

func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.RequestsTotal.Inc()
		if sw.status >= 500 {
			m.ErrorsTotal.Inc()
		}
		m.Duration.Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
