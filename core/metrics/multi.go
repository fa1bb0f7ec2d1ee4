package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordIncident forwards the event to every sink and joins their errors.
func (m *MultiSink) RecordIncident(ev IncidentEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordIncident(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordVehicleState forwards transitions to the sinks supporting them.
func (m *MultiSink) RecordVehicleState(ev VehicleStateEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(VehicleStateRecorder); ok {
			if err := rec.RecordVehicleState(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordFleetSize forwards fleet size metrics when supported by the sink.
func (m *MultiSink) RecordFleetSize(total, available int) error {
	var errs []error
	for _, s := range m.Sinks {
		if fr, ok := s.(FleetSizeRecorder); ok {
			if err := fr.RecordFleetSize(total, available); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close releases every sink holding resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		Close(s)
	}
}
