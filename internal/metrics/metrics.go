// Package metrics exposes import engine events as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/tabimport/internal/core"
)

const namespace = "tabimport"

// Collectors implements core.Metrics.
type Collectors struct {
	importsStarted  *prometheus.CounterVec
	importsFinished *prometheus.CounterVec
	importDuration  *prometheus.HistogramVec
	rowsSubmitted   *prometheus.CounterVec
	submitDuration  *prometheus.HistogramVec
	sessionsActive  prometheus.Gauge

	gatherer prometheus.Gatherer
}

var _ core.Metrics = (*Collectors)(nil)

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry, which is also what Handler serves.
func New(reg *prometheus.Registry) *Collectors {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collectors{
		importsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_started_total",
				Help:      "Imports started, by table.",
			},
			[]string{"table"},
		),
		importsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_finished_total",
				Help:      "Imports finished, by table and outcome phase.",
			},
			[]string{"table", "phase"},
		),
		importDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Wall time of whole import runs.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"table"},
		),
		rowsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_submitted_total",
				Help:      "Rows sent to table endpoints, by outcome.",
			},
			[]string{"table", "status"},
		),
		submitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "row_submit_duration_seconds",
				Help:      "Latency of single row submissions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"table"},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Import sessions currently held in memory.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		c.importsStarted,
		c.importsFinished,
		c.importDuration,
		c.rowsSubmitted,
		c.submitDuration,
		c.sessionsActive,
	)
	return c
}

func (c *Collectors) ImportStarted(table string) {
	c.importsStarted.WithLabelValues(table).Inc()
}

func (c *Collectors) ImportFinished(table string, phase core.Phase, elapsed time.Duration) {
	c.importsFinished.WithLabelValues(table, string(phase)).Inc()
	c.importDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

func (c *Collectors) RowSubmitted(table string, ok bool, elapsed time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	c.rowsSubmitted.WithLabelValues(table, status).Inc()
	c.submitDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

func (c *Collectors) SessionsActive(n int) {
	c.sessionsActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
