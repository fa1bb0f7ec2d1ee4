package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/emsdispatch/core/metrics"
)

// PromSink records incident and vehicle events in Prometheus metrics.
type PromSink struct {
	incidents   *prometheus.CounterVec
	response    prometheus.Histogram
	service     prometheus.Histogram
	distance    prometheus.Histogram
	transitions *prometheus.CounterVec
	fleet       *prometheus.GaugeVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidents_total",
			Help: "Incident steps by outcome",
		}, []string{"outcome", "degraded"}),
		response: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "incident_response_time_seconds",
			Help:    "Time from incident creation to vehicle assignment",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		service: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "incident_service_time_seconds",
			Help:    "Time from incident creation to vehicle back at base",
			Buckets: prometheus.ExponentialBuckets(60, 2, 8),
		}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_route_distance_meters",
			Help:    "Route distance from vehicle to incident",
			Buckets: prometheus.ExponentialBuckets(250, 2, 8),
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vehicle_transitions_total",
			Help: "Vehicle status transitions by target status",
		}, []string{"status"}),
		fleet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleet_vehicles",
			Help: "Number of vehicles by availability",
		}, []string{"state"}),
	}
	var err error
	if s.incidents, err = register(reg, s.incidents); err != nil {
		return nil, err
	}
	if s.response, err = register(reg, s.response); err != nil {
		return nil, err
	}
	if s.service, err = register(reg, s.service); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, s.fleet); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordIncident counts the event and observes its timings.
func (s *PromSink) RecordIncident(ev coremetrics.IncidentEvent) error {
	deg := "false"
	if ev.Degraded {
		deg = "true"
	}
	s.incidents.WithLabelValues(string(ev.Outcome), deg).Inc()
	switch ev.Outcome {
	case coremetrics.OutcomeDispatched:
		s.distance.Observe(ev.DistanceM)
	case coremetrics.OutcomeServed:
		s.response.Observe(ev.ResponseTime.Seconds())
		s.service.Observe(ev.ServiceTime.Seconds())
	}
	return nil
}

// RecordVehicleState counts the transition.
func (s *PromSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.transitions.WithLabelValues(ev.To.String()).Inc()
	return nil
}

// RecordFleetSize sets the availability gauges.
func (s *PromSink) RecordFleetSize(total, available int) error {
	s.fleet.WithLabelValues("available").Set(float64(available))
	s.fleet.WithLabelValues("busy").Set(float64(total - available))
	return nil
}

var _ coremetrics.VehicleStateRecorder = (*PromSink)(nil)
