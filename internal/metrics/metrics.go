// Package metrics exposes keyspace statistics in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/eternalApril/moonkv/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moonkv"

// StatsSource is the part of the storage the collector reads on every scrape
type StatsSource interface {
	Stats() storage.Stats
}

// Collector turns storage counters into metrics at scrape time
type Collector struct {
	source  StatsSource
	keys    *prometheus.Desc
	expired *prometheus.Desc
}

// NewCollector creates a collector reading from source
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "keys"),
			"Number of keys held by the keyspace, including expired keys not reclaimed yet.",
			nil, nil,
		),
		expired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "expired_keys_total"),
			"Number of expired keys removed, by reclaim mode.",
			[]string{"mode"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.expired
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.Keys))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(st.LazyExpired), "lazy")
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(st.ActiveExpired), "active")
}

// Metrics owns the registry served on /metrics
type Metrics struct {
	registry *prometheus.Registry
	commands *prometheus.CounterVec
}

// New registers the keyspace collector, the command counter and the process collectors
func New(source StatsSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Number of commands executed, by command name and result.",
		}, []string{"command", "result"}),
	}

	m.registry.MustRegister(
		NewCollector(source),
		m.commands,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCommand counts one executed command
func (m *Metrics) ObserveCommand(name string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.commands.WithLabelValues(name, result).Inc()
}

// Handler returns an HTTP handler for /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
