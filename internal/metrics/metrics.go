package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the verifier
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Verification flow metrics
	VerificationsStartedTotal prometheus.Counter
	VerificationOutcomesTotal prometheus.CounterVec
	TokenExchangeDuration     prometheus.Histogram
	RoleMutationsTotal        prometheus.CounterVec
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ionverifier_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ionverifier_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ionverifier_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method"},
		),

		VerificationsStartedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ionverifier_verifications_started_total",
				Help: "Total verification flows initiated via /start-verify",
			},
		),
		VerificationOutcomesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ionverifier_verification_outcomes_total",
				Help: "Terminal verification outcomes by taxonomy code or success",
			},
			[]string{"outcome"},
		),
		TokenExchangeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ionverifier_token_exchange_duration_seconds",
				Help:    "ION token exchange latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		RoleMutationsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ionverifier_role_mutations_total",
				Help: "Role mutation attempts by result",
			},
			[]string{"result"},
		),
	}
}
