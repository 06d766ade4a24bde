// Package metrics owns the Prometheus collectors of the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credkeeper"

// Metrics groups the collectors. It satisfies the outcome and sweep
// recorder interfaces of the services package.
type Metrics struct {
	reg *prometheus.Registry

	authOutcomes  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	tokensSwept   *prometheus.CounterVec
	databaseAlive prometheus.Gauge
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth service operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tokensSwept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_swept_total",
			Help:      "Expired or spent token rows removed by the sweeper.",
		}, []string{"table"}),
		databaseAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_up",
			Help:      "1 when the last database ping succeeded.",
		}),
	}

	m.reg.MustRegister(
		m.authOutcomes, m.httpRequests, m.httpDuration, m.tokensSwept, m.databaseAlive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) RecordOutcome(op string, kind common.ErrorKind) {
	m.authOutcomes.WithLabelValues(op, kind.String()).Inc()
}

func (m *Metrics) RecordSweep(table string, removed int64) {
	m.tokensSwept.WithLabelValues(table).Add(float64(removed))
}

// ObserveHTTP records one finished request. route is the registered path
// pattern, never the raw URL, to bound label cardinality.
func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// SetDatabaseUp records the result of a database health probe.
func (m *Metrics) SetDatabaseUp(up bool) {
	if up {
		m.databaseAlive.Set(1)
		return
	}
	m.databaseAlive.Set(0)
}
