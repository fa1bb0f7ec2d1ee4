package generator

import "github.com/prometheus/client_golang/prometheus"

var (
	incidentsGenerated prometheus.Counter
	lastEmit           prometheus.Gauge
	emitInterval       prometheus.Histogram
	emitErrors         prometheus.Counter
)

func newCollectors() (prometheus.Counter, prometheus.Gauge, prometheus.Histogram, prometheus.Counter) {
	gen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "incidents_generated_total",
		Help: "Number of incidents emitted by the generator",
	})
	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "incident_last_emit_timestamp_seconds",
		Help: "Simulated time of the last generated incident",
	})
	interval := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "incident_interval_seconds",
		Help:    "Simulated time between generated incidents",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})
	errs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "incident_emit_errors_total",
		Help: "Number of generated incidents the intake refused",
	})
	return gen, last, interval, errs
}

func init() {
	incidentsGenerated, lastEmit, emitInterval, emitErrors = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers generator metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(incidentsGenerated, lastEmit, emitInterval, emitErrors)
}

// ResetMetrics recreates the collectors for tests and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	incidentsGenerated, lastEmit, emitInterval, emitErrors = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
