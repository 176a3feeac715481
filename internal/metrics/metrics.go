// Package metrics exposes route table loads and lookups as Prometheus
// metrics, written in the text exposition format for node_exporter's
// textfile collector.
package metrics

import (
	"net/netip"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tkjaer/rtq/pkg/addr"
	"github.com/tkjaer/rtq/pkg/netstat"
	"github.com/tkjaer/rtq/pkg/route"
)

// Lookup results.
const (
	ResultMatched = "matched"
	ResultDefault = "default"
	ResultNoRoute = "no_route"
)

type Metrics struct {
	registry *prometheus.Registry

	routes       *prometheus.GaugeVec
	skipped      *prometheus.GaugeVec
	sections     prometheus.Gauge
	loadDuration prometheus.Gauge
	lastLoad     prometheus.Gauge
	lookups      *prometheus.CounterVec
}

// New returns Metrics registered with a fresh registry.
func New() *Metrics {
	return newMetricsWithRegistry(prometheus.NewRegistry())
}

func newMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		routes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rtq_routes",
				Help: "Number of routes in the loaded table",
			},
			[]string{"source", "family"},
		),
		skipped: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rtq_skipped_lines",
				Help: "Number of input lines skipped while parsing the loaded table",
			},
			[]string{"source", "reason"},
		),
		sections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rtq_sections",
				Help: "Number of route table sections in the loaded table",
			},
		),
		loadDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rtq_load_duration_seconds",
				Help: "Time taken to read and parse the route table",
			},
		),
		lastLoad: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rtq_last_load_timestamp",
				Help: "Timestamp of the last route table load",
			},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rtq_lookups_total",
				Help: "Total number of address lookups by result",
			},
			[]string{"family", "result"},
		),
	}

	registry.MustRegister(m.routes)
	registry.MustRegister(m.skipped)
	registry.MustRegister(m.sections)
	registry.MustRegister(m.loadDuration)
	registry.MustRegister(m.lastLoad)
	registry.MustRegister(m.lookups)

	return m
}

// reasonLabel turns "short row" into "short_row".
func reasonLabel(r netstat.Reason) string {
	return strings.ReplaceAll(r.String(), " ", "_")
}

// ObserveLoad records a table built from source at the given time.
func (m *Metrics) ObserveLoad(source string, table *route.Table, res *netstat.Result, took time.Duration, at time.Time) {
	for _, f := range []addr.Family{addr.V4, addr.V6} {
		m.routes.WithLabelValues(source, f.String()).Set(float64(table.Len(f)))
	}

	m.skipped.Reset()
	for reason, n := range res.SkippedBy() {
		m.skipped.WithLabelValues(source, reasonLabel(reason)).Set(float64(n))
	}

	m.sections.Set(float64(res.Sections))
	m.loadDuration.Set(took.Seconds())
	m.lastLoad.Set(float64(at.Unix()))
}

// ObserveLookup records the outcome of resolving a.
func (m *Metrics) ObserveLookup(a netip.Addr, e route.Entry, found bool) {
	result := ResultNoRoute
	switch {
	case found && e.IsDefault():
		result = ResultDefault
	case found:
		result = ResultMatched
	}
	m.lookups.WithLabelValues(addr.FamilyOf(a).String(), result).Inc()
}

// WriteFile writes all metrics to path, replacing it atomically.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
