package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/factbot/internal/model"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveRequest("fact", OutcomeOK)
	m.ObserveRequest("fact", OutcomeOK)
	m.ObserveRequest("fact", OutcomeLimited)
	m.ObservePayment("succeeded")

	if v := counterValue(t, m, "factbot_requests_total", map[string]string{"kind": "fact", "outcome": "ok"}); v != 2 {
		t.Errorf("Expected 2 ok requests, got %v", v)
	}
	if v := counterValue(t, m, "factbot_requests_total", map[string]string{"kind": "fact", "outcome": "limited"}); v != 1 {
		t.Errorf("Expected 1 limited request, got %v", v)
	}
	if v := counterValue(t, m, "factbot_payments_total", map[string]string{"event": "succeeded"}); v != 1 {
		t.Errorf("Expected 1 payment, got %v", v)
	}
}

func TestMetrics_ObserveReport(t *testing.T) {
	m := New()

	m.ObserveReport(model.SourceReport{
		TotalFound: 4,
		Counts:     model.BucketCounts{High: 2, Biased: 1, Low: 1},
	})

	if v := counterValue(t, m, "factbot_sources_total", map[string]string{"bucket": "high"}); v != 2 {
		t.Errorf("Expected 2 high sources, got %v", v)
	}
	if v := counterValue(t, m, "factbot_sources_total", map[string]string{"bucket": "medium"}); v != 0 {
		t.Errorf("Expected no medium sources, got %v", v)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.ObserveRequest("fact", OutcomeOK)
	m.ObserveUpstream("fact", time.Second)
	m.ObserveReport(model.SourceReport{})
	m.ObservePayment("created")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveUpstream("deep_research", 3*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `factbot_upstream_duration_seconds_count{kind="deep_research"} 1`) {
		t.Errorf("Expected histogram in output, got:\n%s", body)
	}
}
