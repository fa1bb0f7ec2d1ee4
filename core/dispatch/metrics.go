package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionLatency    prometheus.Histogram
	incidentOutcomes   *prometheus.CounterVec
	degradedDispatches prometheus.Counter
	lostRaces          prometheus.Counter
	queueDepth         prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Gauge) {
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_decision_latency_seconds",
			Help:    "Time taken to decide on an incident, routing included",
			Buckets: prometheus.DefBuckets,
		},
	)
	out := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Dispatch decisions by outcome",
		},
		[]string{"outcome"},
	)
	deg := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_degraded_total",
			Help: "Dispatches made on a straight-line route",
		},
	)
	lost := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_lost_races_total",
			Help: "Commits lost to a concurrent decision on the same vehicle",
		},
	)
	depth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Incidents waiting for a dispatch worker",
		},
	)
	return lat, out, deg, lost, depth
}

func init() {
	decisionLatency, incidentOutcomes, degradedDispatches, lostRaces, queueDepth = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(decisionLatency, incidentOutcomes, degradedDispatches, lostRaces, queueDepth)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	decisionLatency, incidentOutcomes, degradedDispatches, lostRaces, queueDepth = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
