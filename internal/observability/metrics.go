package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the admission gateway.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	authOutcomes       *prometheus.CounterVec
	signatureFailures  *prometheus.CounterVec
	throttleRejections *prometheus.CounterVec
	auditRecords       *prometheus.CounterVec
	backendErrors      *prometheus.CounterVec
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method", "route", "status"},
	)

	m.authOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Authentication outcomes by required level",
		},
		[]string{"level", "outcome"},
	)

	m.signatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_failures_total",
			Help:      "Signed request verification failures by reason",
		},
		[]string{"reason"},
	)

	m.throttleRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_rejections_total",
			Help:      "Requests rejected by the throttle service",
		},
		[]string{"kind"},
	)

	m.auditRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Audit records closed by category and result",
		},
		[]string{"category", "result"},
	)

	m.backendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Errors returned by backend collaborators",
		},
		[]string{"backend"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.authOutcomes,
		m.signatureFailures,
		m.throttleRejections,
		m.auditRecords,
		m.backendErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, route, statusLabel).Inc()
	m.requestDuration.WithLabelValues(method, route, statusLabel).Observe(elapsed.Seconds())
}

// ObserveAuth records an authentication outcome for the given level.
func (m *Metrics) ObserveAuth(level string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.authOutcomes.WithLabelValues(level, outcome).Inc()
}

// ObserveSignatureFailure records a signed request verification failure.
func (m *Metrics) ObserveSignatureFailure(reason string) {
	m.signatureFailures.WithLabelValues(reason).Inc()
}

// ObserveThrottleRejection records a throttle rejection of the given kind.
func (m *Metrics) ObserveThrottleRejection(kind string) {
	m.throttleRejections.WithLabelValues(kind).Inc()
}

// ObserveAuditRecord records a closed audit record.
func (m *Metrics) ObserveAuditRecord(category, result string) {
	m.auditRecords.WithLabelValues(category, result).Inc()
}

// ObserveBackendError records a backend collaborator error.
func (m *Metrics) ObserveBackendError(backend string) {
	m.backendErrors.WithLabelValues(backend).Inc()
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
