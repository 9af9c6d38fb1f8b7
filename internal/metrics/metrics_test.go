package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{201, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/api/calls", tt.status, 0.01)

			if got := value(t, reg, "http_requests_total", "GET", "/api/calls", tt.expected); got != 1 {
				t.Errorf("status %d: expected one request labelled %s, got %v", tt.status, tt.expected, got)
			}
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	if got := value(t, reg, "http_requests_in_flight"); got != 1 {
		t.Errorf("expected in-flight gauge to be 1, got %v", got)
	}
}

func TestRegistry_DurationHistogram(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("POST", "/resolve-outcomes", 200, 0.123)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "http_request_duration_seconds" {
			continue
		}
		hist := mf.GetMetric()[0].GetHistogram()
		if hist.GetSampleCount() != 1 {
			t.Errorf("expected sample count 1, got %d", hist.GetSampleCount())
		}
		if hist.GetSampleSum() < 0.12 || hist.GetSampleSum() > 0.13 {
			t.Errorf("expected sample sum ~0.123, got %v", hist.GetSampleSum())
		}
		return
	}
	t.Error("expected http_request_duration_seconds metric")
}

func TestRegistry_ImplementsGatherer(t *testing.T) {
	var _ prometheus.Gatherer = NewRegistry()
}

func TestRegistry_ResolutionMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.RecordCycle("success", 0.4)
	reg.RecordCycle("success", 0.6)
	reg.RecordCycle("failure", 1.2)
	reg.RecordResolved("point_sample", true)
	reg.RecordResolved("point_sample", false)
	reg.RecordResolved("path_dependent", true)
	reg.RecordSkipped(2)
	reg.RecordPurged(3)
	reg.RecordConflict()
	reg.ObserveOracleRequest("binance", "quote", "ok")

	if got := value(t, reg, "verdict_cycles_total", "success"); got != 2 {
		t.Errorf("expected 2 successful cycles, got %v", got)
	}
	if got := value(t, reg, "verdict_calls_resolved_total", "incorrect", "point_sample"); got != 1 {
		t.Errorf("expected 1 incorrect point_sample call, got %v", got)
	}
	if got := value(t, reg, "verdict_calls_skipped_total"); got != 2 {
		t.Errorf("expected 2 skipped, got %v", got)
	}
	if got := value(t, reg, "verdict_calls_purged_total"); got != 3 {
		t.Errorf("expected 3 purged, got %v", got)
	}
	if got := value(t, reg, "verdict_ledger_conflicts_total"); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
	if got := value(t, reg, "verdict_oracle_requests_total", "quote", "binance", "ok"); got != 1 {
		t.Errorf("expected 1 oracle request, got %v", got)
	}
}

func TestRegistry_SetStats(t *testing.T) {
	reg := NewRegistry()
	reg.SetStats(60, 55.5, 50, 2, 4, 7)

	if got := value(t, reg, "verdict_accuracy_percent", "30d"); got != 55.5 {
		t.Errorf("expected 30d accuracy 55.5, got %v", got)
	}
	if got := value(t, reg, "verdict_streak", "best"); got != 4 {
		t.Errorf("expected best streak 4, got %v", got)
	}
	if got := value(t, reg, "verdict_pending_calls"); got != 7 {
		t.Errorf("expected 7 pending, got %v", got)
	}
}

// value returns the counter or gauge sample of name whose label values match
// labels, given in label-name order.
func value(t *testing.T, reg *Registry, name string, labels ...string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			pairs := m.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			for i, pair := range pairs {
				if pair.GetValue() != labels[i] {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}
