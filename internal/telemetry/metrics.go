package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the portal core.
type Metrics struct {
	FetchTotal        *prometheus.CounterVec
	ProviderLatencyMs *prometheus.HistogramVec
	RateLimitHitTotal *prometheus.CounterVec
	DegradedTotal     *prometheus.CounterVec
	QuotaRemaining    *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FetchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_fetch_total",
			Help: "Total coordinated fetches by provider, endpoint, and outcome.",
		}, []string{"provider", "endpoint", "outcome"}),

		ProviderLatencyMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulseboard_provider_latency_ms",
			Help:    "Live provider call latency in milliseconds.",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"provider"}),

		RateLimitHitTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_rate_limit_hit_total",
			Help: "Fetches refused by quota, split by whether the local window or the provider said no.",
		}, []string{"provider", "source"}),

		DegradedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_degraded_total",
			Help: "Responses served stale from the degradation cache.",
		}, []string{"provider", "endpoint"}),

		QuotaRemaining: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulseboard_quota_remaining",
			Help: "Remaining calls in the local quota window per provider.",
		}, []string{"provider"}),
	}
}

// RecordFetch records the outcome of one coordinated fetch.
func (m *Metrics) RecordFetch(provider, endpoint, outcome string) {
	m.FetchTotal.WithLabelValues(provider, endpoint, outcome).Inc()
}

// RecordProviderLatency records live call latency.
func (m *Metrics) RecordProviderLatency(provider string, ms float64) {
	m.ProviderLatencyMs.WithLabelValues(provider).Observe(ms)
}

// RecordRateLimitHit records a quota refusal. source is "local" or "server".
func (m *Metrics) RecordRateLimitHit(provider, source string) {
	m.RateLimitHitTotal.WithLabelValues(provider, source).Inc()
}

// RecordDegraded records a stale cache fallback being served.
func (m *Metrics) RecordDegraded(provider, endpoint string) {
	m.DegradedTotal.WithLabelValues(provider, endpoint).Inc()
}

// SetQuotaRemaining publishes the local window's remaining budget.
func (m *Metrics) SetQuotaRemaining(provider string, remaining int) {
	m.QuotaRemaining.WithLabelValues(provider).Set(float64(remaining))
}
