package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the authorization server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Request latency by route pattern
	EndpointLatency *prometheus.HistogramVec

	// /authorize outcomes: dialog, skipped, redirected, rejected
	AuthorizeOutcome *prometheus.CounterVec

	// /callback outcomes: completed, denied, invalid_state, upstream_error
	CallbackOutcome *prometheus.CounterVec

	// Upstream call latency by operation (token, identity)
	UpstreamLatency *prometheus.HistogramVec

	// Consent cookies whose signature did not verify
	ConsentIntegrityFailures prometheus.Counter

	// Downstream tokens issued by grant type
	TokensIssued *prometheus.CounterVec

	// Dynamically registered clients
	ClientsRegistered prometheus.Counter
}

// New registers all collectors with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers all collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcpauth_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),

		AuthorizeOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpauth_authorize_outcomes_total",
			Help: "Authorization requests by outcome",
		}, []string{"outcome"}),

		CallbackOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpauth_callback_outcomes_total",
			Help: "Upstream callbacks by outcome",
		}, []string{"outcome"}),

		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcpauth_upstream_duration_seconds",
			Help:    "Duration of calls to the upstream identity provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "result"}),

		ConsentIntegrityFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mcpauth_consent_integrity_failures_total",
			Help: "Consent cookies rejected because their signature did not verify",
		}),

		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mcpauth_tokens_issued_total",
			Help: "Downstream access tokens issued by grant type",
		}, []string{"grant_type"}),

		ClientsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "mcpauth_clients_registered_total",
			Help: "Clients created through dynamic registration",
		}),
	}
}

// ObserveEndpointLatency records the duration of one HTTP request.
func (m *Metrics) ObserveEndpointLatency(route, method string, d time.Duration) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(route, method).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementAuthorizeOutcome(outcome string) {
	if m != nil {
		m.AuthorizeOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementCallbackOutcome(outcome string) {
	if m != nil {
		m.CallbackOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveUpstreamLatency records an upstream round trip. result is "ok" or "error".
func (m *Metrics) ObserveUpstreamLatency(operation, result string, d time.Duration) {
	if m != nil {
		m.UpstreamLatency.WithLabelValues(operation, result).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementConsentIntegrityFailures() {
	if m != nil {
		m.ConsentIntegrityFailures.Inc()
	}
}

func (m *Metrics) IncrementTokensIssued(grantType string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(grantType).Inc()
	}
}

func (m *Metrics) IncrementClientsRegistered() {
	if m != nil {
		m.ClientsRegistered.Inc()
	}
}
