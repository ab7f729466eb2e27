// Package metrics exposes engine counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "face_sculptor"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	influenceBuilds   *prometheus.CounterVec
	influenceDuration *prometheus.HistogramVec
	solveDuration     *prometheus.HistogramVec
	touchedVertices   prometheus.Histogram
	activeEditors     prometheus.Gauge
	sessionOps        *prometheus.CounterVec
}

// New creates a registry with process and Go runtime collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{
		registry: reg,
		influenceBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "influence_builds_total",
			Help:      "Influence map builds by base model and outcome.",
		}, []string{"model", "result"}),
		influenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "influence_build_seconds",
			Help:      "Time spent fitting anchors and building influence maps.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"model"}),
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_seconds",
			Help:      "Deformation solve time by mode (apply or update).",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}, []string{"mode"}),
		touchedVertices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_touched_vertices",
			Help:      "Vertices recomputed per incremental solve.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		activeEditors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editors_active",
			Help:      "Open editing surfaces.",
		}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session store operations by kind and outcome.",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(m.influenceBuilds, m.influenceDuration, m.solveDuration, m.touchedVertices, m.activeEditors, m.sessionOps)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// InfluenceBuilt records one finished build attempt.
func (m *Metrics) InfluenceBuilt(model string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.influenceBuilds.WithLabelValues(model, outcome(err)).Inc()
	if err == nil {
		m.influenceDuration.WithLabelValues(model).Observe(d.Seconds())
	}
}

// Solved records a full solve.
func (m *Metrics) Solved(d time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues("apply").Observe(d.Seconds())
}

// Updated records an incremental solve.
func (m *Metrics) Updated(d time.Duration, touched int) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues("update").Observe(d.Seconds())
	m.touchedVertices.Observe(float64(touched))
}

// EditorOpened and EditorClosed track the active editor gauge.
func (m *Metrics) EditorOpened() {
	if m != nil {
		m.activeEditors.Inc()
	}
}

func (m *Metrics) EditorClosed() {
	if m != nil {
		m.activeEditors.Dec()
	}
}

// SessionOp records a session store operation.
func (m *Metrics) SessionOp(op string, err error) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
