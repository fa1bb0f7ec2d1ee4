package eventlog

import (
	"time"

	"github.com/kilianp07/emsdispatch/core/model"
)

// Kind names an event type.
type Kind string

const (
	KindIncidentCreated     Kind = "incident_created"
	KindDispatched          Kind = "dispatched"
	KindServed              Kind = "served"
	KindUnserved            Kind = "unserved"
	KindInterrupted         Kind = "incident_interrupted"
	KindVehicleStateChanged Kind = "vehicle_state_changed"
)

// Kinds lists every event kind.
var Kinds = []Kind{KindIncidentCreated, KindDispatched, KindServed, KindUnserved, KindInterrupted, KindVehicleStateChanged}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Event is one immutable entry of the log. Only the fields relevant to its
// kind are set.
type Event struct {
	Seq  uint64    `json:"seq"`
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`

	IncidentID string            `json:"incident_id,omitempty"`
	VehicleID  string            `json:"vehicle_id,omitempty"`
	HospitalID string            `json:"hospital_id,omitempty"`
	Location   *model.Coordinate `json:"location,omitempty"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	DistanceM float64 `json:"distance_m,omitempty"`
	Degraded  bool    `json:"degraded,omitempty"`
	Reason    string  `json:"reason,omitempty"`

	ResponseTimeMS int64 `json:"response_time_ms,omitempty"`
	ServiceTimeMS  int64 `json:"service_time_ms,omitempty"`
}

// IncidentCreated builds the event for a newly registered incident.
func IncidentCreated(inc model.Incident) Event {
	loc := inc.Location
	return Event{Kind: KindIncidentCreated, Time: inc.CreatedAt, IncidentID: inc.ID, Location: &loc}
}

// Dispatched builds the event for a committed assignment.
func Dispatched(inc model.Incident, vehicleID string, route model.Route, at time.Time) Event {
	loc := inc.Location
	return Event{
		Kind:       KindDispatched,
		Time:       at,
		IncidentID: inc.ID,
		VehicleID:  vehicleID,
		Location:   &loc,
		DistanceM:  route.DistanceM,
		Degraded:   route.Degraded,
	}
}

// Served builds the event for a completed incident.
func Served(inc model.Incident) Event {
	return Event{
		Kind:           KindServed,
		Time:           inc.TerminalAt,
		IncidentID:     inc.ID,
		VehicleID:      inc.VehicleID,
		HospitalID:     inc.HospitalID,
		ResponseTimeMS: inc.ResponseTime.Milliseconds(),
		ServiceTimeMS:  inc.ServiceTime.Milliseconds(),
	}
}

// Unserved builds the event for an incident no vehicle could take.
func Unserved(inc model.Incident) Event {
	return Event{Kind: KindUnserved, Time: inc.TerminalAt, IncidentID: inc.ID, Reason: inc.Reason}
}

// Interrupted builds the event for an incident closed by shutdown.
func Interrupted(inc model.Incident) Event {
	return Event{Kind: KindInterrupted, Time: inc.TerminalAt, IncidentID: inc.ID, VehicleID: inc.VehicleID, Reason: inc.Reason}
}

// VehicleStateChanged builds the event for a vehicle status transition.
func VehicleStateChanged(snap model.VehicleSnapshot, from model.VehicleStatus) Event {
	pos := snap.Position
	return Event{
		Kind:       KindVehicleStateChanged,
		Time:       snap.UpdatedAt,
		VehicleID:  snap.ID,
		IncidentID: snap.IncidentID,
		HospitalID: snap.HospitalID,
		Location:   &pos,
		From:       from.String(),
		To:         snap.Status.String(),
	}
}
