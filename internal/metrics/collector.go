// Package metrics provides a lightweight Prometheus-compatible collector.
// It renders text/plain exposition format without pulling in the full
// prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewCollector()

// MetricsCollector aggregates counters and gauges.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	gauges    sync.Map // name -> *Gauge
	order     []string
	orderMu   sync.Mutex
	startTime time.Time
}

func NewCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	if v, ok := c.counters.Load(name); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help}
	actual, loaded := c.counters.LoadOrStore(name, ctr)
	if !loaded {
		c.remember(name)
	}
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	if v, ok := c.gauges.Load(name); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help}
	actual, loaded := c.gauges.LoadOrStore(name, g)
	if !loaded {
		c.remember(name)
	}
	return actual.(*Gauge)
}

func (c *MetricsCollector) remember(name string) {
	c.orderMu.Lock()
	c.order = append(c.order, name)
	c.orderMu.Unlock()
}

// Handler renders metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# HELP evcore_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE evcore_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "evcore_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

		c.orderMu.Lock()
		names := make([]string, len(c.order))
		copy(names, c.order)
		c.orderMu.Unlock()

		for _, name := range names {
			if v, ok := c.counters.Load(name); ok {
				ctr := v.(*Counter)
				fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
				fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
				fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
				continue
			}
			if v, ok := c.gauges.Load(name); ok {
				g := v.(*Gauge)
				fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
				fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
				fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
			}
		}

		fmt.Fprint(w, sb.String())
	}
}

// Pre-defined metrics used across the application.
var (
	Dispatches     = Collector.Counter("evcore_dispatches_total", "Total commands dispatched")
	DispatchErrors = Collector.Counter("evcore_dispatch_errors_total", "Total dispatch and handler failures")
	Fallbacks      = Collector.Counter("evcore_fallbacks_total", "Total commands delegated to the fallback")
	ActionFires    = Collector.Counter("evcore_action_fires_total", "Total proactive actions executed")
	ActionErrors   = Collector.Counter("evcore_action_errors_total", "Total proactive action failures")
	MemoryOps      = Collector.Counter("evcore_memory_ops_total", "Total memory store operations")
	Monitoring     = Collector.Gauge("evcore_monitoring", "1 while the trigger monitor loop is running")
)
