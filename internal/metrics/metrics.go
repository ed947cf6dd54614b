// Package metrics exposes engine counters through a prometheus registry.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without observability in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "fieldops_"

// Metrics owns a private registry so several engines can coexist in one
// process.
type Metrics struct {
	registry *prometheus.Registry

	appended        *prometheus.CounterVec
	corrupt         *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	ingested        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	navResolves     *prometheus.CounterVec
	stateKeys       *prometheus.GaugeVec
	opLatency       *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "journal_appends_total",
			Help: "Records appended per journal.",
		}, []string{"log"}),
		corrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "journal_corrupt_records_total",
			Help: "Unreadable journal records skipped at read time.",
		}, []string{"log"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "persistence_failures_total",
			Help: "Snapshot, journal or mirror writes that failed.",
		}, []string{"target"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "ingested_total",
			Help: "Accepted samples by kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "rejected_total",
			Help: "Samples rejected by validation, by kind.",
		}, []string{"kind"}),
		navResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "navigation_resolves_total",
			Help: "Navigation resolves by outcome.",
		}, []string{"result"}),
		stateKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "state_keys",
			Help: "Keys held in the keyed state, by map.",
		}, []string{"map"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "operation_latency_seconds",
			Help:    "Latency of engine operations including persistence.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.appended, m.corrupt, m.persistFailures, m.ingested, m.rejected,
		m.navResolves, m.stateKeys, m.opLatency,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordAppend(log string) {
	if m == nil {
		return
	}
	m.appended.WithLabelValues(log).Inc()
}

func (m *Metrics) RecordCorrupt(log string) {
	if m == nil {
		return
	}
	m.corrupt.WithLabelValues(log).Inc()
}

func (m *Metrics) RecordPersistFailure(target string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(target).Inc()
}

func (m *Metrics) RecordIngest(kind string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRejected(kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordResolve(result string) {
	if m == nil {
		return
	}
	m.navResolves.WithLabelValues(result).Inc()
}

func (m *Metrics) SetStateKeys(mapName string, n int) {
	if m == nil {
		return
	}
	m.stateKeys.WithLabelValues(mapName).Set(float64(n))
}

func (m *Metrics) ObserveLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.opLatency.WithLabelValues(op).Observe(seconds)
}
