// Package metrics provides Prometheus metrics for the lead capture service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	submissionsTotal   *prometheus.CounterVec
	ledgerRows         prometheus.Gauge
	ledgerRecoveries   *prometheus.CounterVec
	ledgerWriteRetry   prometheus.Counter
	replicaPushTotal   *prometheus.CounterVec
	replicaSyncSkipped prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinwin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spinwin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spinwin_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinwin_submissions_total",
				Help: "Submissions by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ledgerRows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spinwin_ledger_rows",
				Help: "Data rows in the ledger after the last successful write",
			},
		),
		ledgerRecoveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinwin_ledger_recoveries_total",
				Help: "Ledger rebuilds on load, by reason",
			},
			[]string{"reason"},
		),
		ledgerWriteRetry: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spinwin_ledger_write_retries_total",
				Help: "Ledger writes that needed a rebuild-and-retry",
			},
		),
		replicaPushTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spinwin_replica_push_total",
				Help: "Replica pushes by result",
			},
			[]string{"result"},
		),
		replicaSyncSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spinwin_replica_sync_skipped_total",
				Help: "Periodic sync cycles skipped because a write was in progress",
			},
		),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncRequestsInFlight() {
	if m != nil {
		m.requestsInFlight.Inc()
	}
}

func (m *Metrics) DecRequestsInFlight() {
	if m != nil {
		m.requestsInFlight.Dec()
	}
}

// RecordSubmission counts one submit or submit-offer outcome.
func (m *Metrics) RecordSubmission(operation, outcome string) {
	if m != nil {
		m.submissionsTotal.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) SetLedgerRows(n int) {
	if m != nil {
		m.ledgerRows.Set(float64(n))
	}
}

func (m *Metrics) RecordLedgerRecovery(reason string) {
	if m != nil {
		m.ledgerRecoveries.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordWriteRetry() {
	if m != nil {
		m.ledgerWriteRetry.Inc()
	}
}

func (m *Metrics) RecordReplicaPush(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.replicaPushTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSyncSkipped() {
	if m != nil {
		m.replicaSyncSkipped.Inc()
	}
}
