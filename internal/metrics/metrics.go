package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/factbot/internal/model"
)

const namespace = "factbot"

// Request outcomes
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeLimited  = "limited"
	OutcomeRejected = "rejected"
)

// Metrics holds the bot's Prometheus collectors on a dedicated registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	sourcesTotal     *prometheus.CounterVec
	paymentsTotal    *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "User requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Latency of search API calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		sourcesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Cited sources by reliability bucket.",
		}, []string{"bucket"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment events.",
		}, []string{"event"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.upstreamDuration,
		m.sourcesTotal,
		m.paymentsTotal,
	)

	return m
}

// ObserveRequest counts one user request
func (m *Metrics) ObserveRequest(kind, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveUpstream records how long a search API call took
func (m *Metrics) ObserveUpstream(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveReport counts the sources of a report per bucket
func (m *Metrics) ObserveReport(report model.SourceReport) {
	if m == nil {
		return
	}
	add := func(bucket model.Bucket, n int) {
		if n > 0 {
			m.sourcesTotal.WithLabelValues(string(bucket)).Add(float64(n))
		}
	}
	add(model.BucketHigh, report.Counts.High)
	add(model.BucketMedium, report.Counts.Medium)
	add(model.BucketBiased, report.Counts.Biased)
	add(model.BucketLow, report.Counts.Low)
}

// ObservePayment counts a payment event (created, succeeded, canceled, duplicate, rejected)
func (m *Metrics) ObservePayment(event string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(event).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
