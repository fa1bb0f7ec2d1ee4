package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// touch metrics so they are exported
	decisionLatency.Observe(0.1)
	incidentOutcomes.WithLabelValues("assigned").Inc()
	degradedDispatches.Inc()
	lostRaces.Inc()
	queueDepth.Set(2)
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	expected := []string{
		"dispatch_decision_latency_seconds",
		"dispatch_outcomes_total",
		"dispatch_degraded_total",
		"dispatch_lost_races_total",
		"dispatch_queue_depth",
	}
	for _, n := range expected {
		if !names[n] {
			t.Errorf("metric %s not registered", n)
		}
	}
}
