package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.FetchTotal == nil {
		t.Error("FetchTotal should not be nil")
	}
	if m.ProviderLatencyMs == nil {
		t.Error("ProviderLatencyMs should not be nil")
	}
	if m.RateLimitHitTotal == nil {
		t.Error("RateLimitHitTotal should not be nil")
	}
	if m.DegradedTotal == nil {
		t.Error("DegradedTotal should not be nil")
	}
	if m.QuotaRemaining == nil {
		t.Error("QuotaRemaining should not be nil")
	}
}

// testMetrics builds unregistered vecs so tests never collide with the
// default registry.
func testMetrics() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_fetch_total", Help: "t",
		}, []string{"provider", "endpoint", "outcome"}),
		ProviderLatencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "test_provider_latency_ms", Help: "t", Buckets: []float64{50, 500},
		}, []string{"provider"}),
		RateLimitHitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_rate_limit_hit_total", Help: "t",
		}, []string{"provider", "source"}),
		DegradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_degraded_total", Help: "t",
		}, []string{"provider", "endpoint"}),
		QuotaRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "test_quota_remaining", Help: "t",
		}, []string{"provider"}),
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestMetrics_RecordFetch(t *testing.T) {
	m := testMetrics()

	m.RecordFetch("github", "issues", "success")
	m.RecordFetch("github", "issues", "success")
	m.RecordFetch("github", "issues", "degraded")

	got := counterValue(t, m.FetchTotal.WithLabelValues("github", "issues", "success"))
	if got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	got = counterValue(t, m.FetchTotal.WithLabelValues("github", "issues", "degraded"))
	if got != 1 {
		t.Errorf("degraded count = %v, want 1", got)
	}
}

func TestMetrics_RecordRateLimitHit(t *testing.T) {
	m := testMetrics()

	m.RecordRateLimitHit("gitlab", "local")
	m.RecordRateLimitHit("gitlab", "server")
	m.RecordRateLimitHit("gitlab", "server")

	got := counterValue(t, m.RateLimitHitTotal.WithLabelValues("gitlab", "server"))
	if got != 2 {
		t.Errorf("server hits = %v, want 2", got)
	}
}

func TestMetrics_QuotaRemaining(t *testing.T) {
	m := testMetrics()

	m.SetQuotaRemaining("jira", 42)

	var metric dto.Metric
	if err := m.QuotaRemaining.WithLabelValues("jira").Write(&metric); err != nil {
		t.Fatal(err)
	}
	if metric.GetGauge().GetValue() != 42 {
		t.Errorf("gauge = %v, want 42", metric.GetGauge().GetValue())
	}
}
