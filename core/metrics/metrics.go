package metrics

import (
	"time"

	"github.com/kilianp07/emsdispatch/core/model"
)

// Outcome names how an incident ended, or that it was dispatched.
type Outcome string

const (
	OutcomeDispatched  Outcome = "dispatched"
	OutcomeServed      Outcome = "served"
	OutcomeUnserved    Outcome = "unserved"
	OutcomeInterrupted Outcome = "interrupted"
)

// IncidentEvent is one step in the life of an incident to be recorded.
type IncidentEvent struct {
	IncidentID   string
	VehicleID    string
	HospitalID   string
	Outcome      Outcome
	Reason       string
	DistanceM    float64
	Degraded     bool
	ResponseTime time.Duration
	ServiceTime  time.Duration
	Time         time.Time
}

// MetricsSink records incident outcomes for observability purposes.
type MetricsSink interface {
	RecordIncident(ev IncidentEvent) error
}

// VehicleStateEvent is a vehicle status transition.
type VehicleStateEvent struct {
	VehicleID  string
	From       model.VehicleStatus
	To         model.VehicleStatus
	Position   model.Coordinate
	IncidentID string
	Time       time.Time
}

// VehicleStateRecorder records vehicle status transitions.
type VehicleStateRecorder interface {
	RecordVehicleState(ev VehicleStateEvent) error
}

// FleetSizeRecorder records how many vehicles exist and how many are free.
type FleetSizeRecorder interface {
	RecordFleetSize(total, available int) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordIncident(IncidentEvent) error         { return nil }
func (NopSink) RecordVehicleState(VehicleStateEvent) error { return nil }
func (NopSink) RecordFleetSize(int, int) error             { return nil }
