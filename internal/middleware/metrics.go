package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricGateChecks            = "gate_checks_total"
	MetricGateBlocked           = "gate_blocked_total"
	MetricGateStoreErrors       = "gate_store_errors_total"
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitStoreErrors  = "rate_limit_store_errors_total"
	MetricHoneypotTriggers      = "honeypot_triggers_total"
	MetricAuthAttempts          = "auth_attempts_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

// Gate block reasons used as metric label values.
const (
	BlockReasonCircuit   = "circuit_open"
	BlockReasonBlocklist = "blocklisted"
	BlockReasonThreshold = "threshold_exceeded"
)

// Auth attempt results used as metric label values.
const (
	AuthResultSuccess      = "success"
	AuthResultFailed       = "failed"
	AuthResultTOTPRequired = "totp_required"
)

// Metrics contains Prometheus metrics for the admission-control and auth
// components. All operations are thread-safe.
type Metrics struct {
	gateChecks          prometheus.Counter
	gateBlocked         *prometheus.CounterVec
	gateStoreErrors     prometheus.Counter
	rateLimitRequests   *prometheus.CounterVec
	rateLimitBlocked    *prometheus.CounterVec
	rateLimitStoreErrs  prometheus.Counter
	honeypotTriggers    *prometheus.CounterVec
	authAttempts        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpResponseSize    *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		gateChecks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricGateChecks,
				Help: "Total number of requests evaluated by the edge gate",
			},
		),
		gateBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGateBlocked,
				Help: "Total number of requests rejected at the edge gate by reason",
			},
			[]string{"reason"},
		),
		gateStoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricGateStoreErrors,
				Help: "Total number of store errors during gate checks (fail-open events)",
			},
		),
		rateLimitRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitRequests,
				Help: "Total number of rate limit checks by route",
			},
			[]string{"route"},
		),
		rateLimitBlocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimitBlocked,
				Help: "Total number of rate limit violations (blocked requests) by route",
			},
			[]string{"route"},
		),
		rateLimitStoreErrs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRateLimitStoreErrors,
				Help: "Total number of store errors during rate limiting (fail-open events)",
			},
		),
		honeypotTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHoneypotTriggers,
				Help: "Total number of honeytoken trap triggers by decoy path",
			},
			[]string{"path"},
		),
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuthAttempts,
				Help: "Total number of admin login attempts by result",
			},
			[]string{"result"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSizeBytes,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6), // 100 B to ~10 MB
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.gateChecks,
		m.gateBlocked,
		m.gateStoreErrors,
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitStoreErrs,
		m.honeypotTriggers,
		m.authAttempts,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpResponseSize,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncGateChecks increments the gate check counter.
func (m *Metrics) IncGateChecks() {
	m.gateChecks.Inc()
}

// IncGateBlocked increments the gate rejection counter for a reason.
func (m *Metrics) IncGateBlocked(reason string) {
	m.gateBlocked.WithLabelValues(reason).Inc()
}

// IncGateStoreErrors increments the gate store-error (fail-open) counter.
func (m *Metrics) IncGateStoreErrors() {
	m.gateStoreErrors.Inc()
}

// IncRateLimitRequests increments the rate limit check counter for a route.
func (m *Metrics) IncRateLimitRequests(route string) {
	m.rateLimitRequests.WithLabelValues(route).Inc()
}

// IncRateLimitBlocked increments the rate limit violation counter for a route.
func (m *Metrics) IncRateLimitBlocked(route string) {
	m.rateLimitBlocked.WithLabelValues(route).Inc()
}

// IncRateLimitStoreErrors increments the rate limit store-error (fail-open) counter.
func (m *Metrics) IncRateLimitStoreErrors() {
	m.rateLimitStoreErrs.Inc()
}

// IncHoneypotTriggers increments the trap trigger counter for a decoy path.
func (m *Metrics) IncHoneypotTriggers(path string) {
	m.honeypotTriggers.WithLabelValues(path).Inc()
}

// IncAuthAttempts increments the login attempt counter for a result.
func (m *Metrics) IncAuthAttempts(result string) {
	m.authAttempts.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records duration and response size for a completed request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, responseSize int64) {
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}
