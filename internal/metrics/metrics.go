// Package metrics holds the Prometheus collectors of the memo server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors. Each instance owns its own
// registry so tests and multiple servers never collide.
type Metrics struct {
	registry *prometheus.Registry

	Saves          *prometheus.CounterVec
	SaveLatency    prometheus.Histogram
	Renders        *prometheus.CounterVec
	LinkResolution prometheus.Histogram
	VaultImports   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// result: "created", "updated", "unchanged", "rejected", "failed"
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memos_saves_total",
			Help: "Total number of memo saves by result",
		}, []string{"result"}),

		SaveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memos_save_duration_seconds",
			Help:    "Memo save latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		// cache: "hit" or "miss"
		Renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memos_renders_total",
			Help: "Total number of memo renders by cache outcome",
		}, []string{"cache"}),

		LinkResolution: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "memos_link_resolution_duration_seconds",
			Help:    "Link graph resolution latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		// result: "imported", "skipped", "failed"
		VaultImports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "memos_vault_imports_total",
			Help: "Total number of vault file imports by result",
		}, []string{"result"}),
	}
}

// RegisterGaugeFunc exposes a value computed at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, fn))
}

// RecordSave records the result and duration of a save.
func (m *Metrics) RecordSave(result string, started time.Time) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(result).Inc()
	m.SaveLatency.Observe(time.Since(started).Seconds())
}

// RecordRender records a render served from or missing the cache.
func (m *Metrics) RecordRender(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.Renders.WithLabelValues(label).Inc()
}

// RecordLinkResolution records how long a link graph took to resolve.
func (m *Metrics) RecordLinkResolution(started time.Time) {
	if m == nil {
		return
	}
	m.LinkResolution.Observe(time.Since(started).Seconds())
}

// RecordVaultImport records the outcome of a vault file import.
func (m *Metrics) RecordVaultImport(result string) {
	if m == nil {
		return
	}
	m.VaultImports.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
