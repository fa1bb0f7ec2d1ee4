package routing

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	routingRequests *prometheus.CounterVec
	routingLatency  prometheus.Histogram
)

func newCollectors() (*prometheus.CounterVec, prometheus.Histogram) {
	req := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_requests_total",
			Help: "Routing engine queries by backend and result",
		},
		[]string{"backend", "result"},
	)
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routing_request_duration_seconds",
			Help:    "Latency of routing engine queries",
			Buckets: prometheus.DefBuckets,
		},
	)
	return req, lat
}

func init() {
	routingRequests, routingLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers routing metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(routingRequests, routingLatency)
}

// ResetMetrics recreates the collectors for tests and registers them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	routingRequests, routingLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observe(backend string, d time.Duration, err error) {
	routingLatency.Observe(d.Seconds())
	routingRequests.WithLabelValues(backend, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoRouteFound):
		return "no_route"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "unavailable"
	}
}
