// Package metrics holds the gateway's Prometheus collectors. Each Metrics
// value owns its registry so tests and multiple servers never share state.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a set of collectors registered on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	StatementsSubmitted prometheus.Counter
	StatementsRejected  prometheus.Counter
	StatementsCompleted *prometheus.CounterVec
	StatementsActive    prometheus.Gauge
	StatementDuration   *prometheus.HistogramVec
	Polls               prometheus.Counter
	RowsReturned        prometheus.Counter
	RequestTotal        *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StatementsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_statements_submitted_total",
			Help: "Total number of submitted statements",
		}),
		StatementsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_statements_rejected_total",
			Help: "Statements refused because the queue was full",
		}),
		StatementsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlgate_statements_completed_total",
			Help: "Total number of statements that reached a terminal state",
		}, []string{"state"}),
		StatementsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "sqlgate_statements_active",
			Help: "Statements that are queued or running",
		}),
		StatementDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sqlgate_statement_duration_seconds",
			Help:    "Time from submit to terminal state",
			Buckets: prometheus.DefBuckets,
		}, []string{"state"}),
		Polls: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_polls_total",
			Help: "Total number of statement polls",
		}),
		RowsReturned: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlgate_rows_returned_total",
			Help: "Total number of result rows produced",
		}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlgate_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sqlgate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Submitted records a new statement.
func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.StatementsSubmitted.Inc()
	m.StatementsActive.Inc()
}

// Rejected records a statement refused at submit.
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.StatementsRejected.Inc()
}

// Completed records a statement reaching a terminal state.
func (m *Metrics) Completed(state string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StatementsActive.Dec()
	m.StatementsCompleted.WithLabelValues(state).Inc()
	m.StatementDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}

// Polled records one poll.
func (m *Metrics) Polled() {
	if m == nil {
		return
	}
	m.Polls.Inc()
}

// Rows records produced result rows.
func (m *Metrics) Rows(n int) {
	if m == nil {
		return
	}
	m.RowsReturned.Add(float64(n))
}

// Request records one HTTP request.
func (m *Metrics) Request(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
