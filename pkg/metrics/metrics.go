// Package metrics exposes the Prometheus collectors of the stock service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Movement outcomes
const (
	OutcomeCommitted    = "committed"
	OutcomeInsufficient = "insufficient_stock"
	OutcomeRejected     = "rejected"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	movements      *prometheus.CounterVec
	retries        prometheus.Counter
	batchesTouched prometheus.Histogram
	expiring       prometheus.Gauge
	outboxRelayed  prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates and registers the stock service collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		movements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stock",
				Name:      "movements_total",
				Help:      "Stock movements by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stock",
				Name:      "movement_retries_total",
				Help:      "Movement transactions retried after an isolation conflict.",
			},
		),
		batchesTouched: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "stock",
				Name:      "fefo_batches_touched",
				Help:      "Number of batches drawn from by one FEFO allocation.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		expiring: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stock",
				Name:      "expiring_records",
				Help:      "Stock records expiring inside the scan window at the last scan.",
			},
		),
		outboxRelayed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stock",
				Name:      "audit_events_relayed_total",
				Help:      "Audit outbox rows published to the broker.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stock",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stock",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "route"},
		),
	}

	m.Registry.MustRegister(
		m.movements,
		m.retries,
		m.batchesTouched,
		m.expiring,
		m.outboxRelayed,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveMovement counts one finished movement.
func (m *Metrics) ObserveMovement(kind, outcome string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(kind, outcome).Inc()
}

// IncRetry counts one retried movement attempt.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// ObserveBatchesTouched records how many batches an allocation consumed from.
func (m *Metrics) ObserveBatchesTouched(n int) {
	if m == nil {
		return
	}
	m.batchesTouched.Observe(float64(n))
}

// SetExpiring records the size of the last expiry scan.
func (m *Metrics) SetExpiring(n int) {
	if m == nil {
		return
	}
	m.expiring.Set(float64(n))
}

// AddRelayed counts audit events handed to the broker.
func (m *Metrics) AddRelayed(n int) {
	if m == nil {
		return
	}
	m.outboxRelayed.Add(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
