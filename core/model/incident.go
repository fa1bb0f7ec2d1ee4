package model

import (
	"fmt"
	"strings"
	"time"
)

// IncidentStatus is the dispatch status of an incident.
type IncidentStatus int

const (
	IncidentPending IncidentStatus = iota
	IncidentAssigned
	IncidentServed
	IncidentUnserved
	IncidentInterrupted
)

var incidentStatusNames = [...]string{
	IncidentPending:     "PENDING",
	IncidentAssigned:    "ASSIGNED",
	IncidentServed:      "SERVED",
	IncidentUnserved:    "UNSERVED",
	IncidentInterrupted: "INTERRUPTED",
}

func (s IncidentStatus) String() string {
	if s < 0 || int(s) >= len(incidentStatusNames) {
		return "UNKNOWN"
	}
	return incidentStatusNames[s]
}

// ParseIncidentStatus converts a status name back to its value.
func ParseIncidentStatus(s string) (IncidentStatus, error) {
	for i, name := range incidentStatusNames {
		if strings.EqualFold(name, s) {
			return IncidentStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown incident status %q", s)
}

func (s IncidentStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *IncidentStatus) UnmarshalText(b []byte) error {
	v, err := ParseIncidentStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Terminal reports whether no further transition is allowed.
func (s IncidentStatus) Terminal() bool {
	return s == IncidentServed || s == IncidentUnserved || s == IncidentInterrupted
}

// Incident is an event requiring an emergency vehicle at a location.
type Incident struct {
	ID        string         `json:"id"`
	Location  Coordinate     `json:"location"`
	CreatedAt time.Time      `json:"created_at"`
	Status    IncidentStatus `json:"status"`

	VehicleID  string    `json:"vehicle_id,omitempty"`
	AssignedAt time.Time `json:"assigned_at,omitempty"`
	HospitalID string    `json:"hospital_id,omitempty"`
	TerminalAt time.Time `json:"terminal_at,omitempty"`
	// ResponseTime is AssignedAt minus CreatedAt, set once served.
	ResponseTime time.Duration `json:"response_time,omitempty"`
	// ServiceTime is TerminalAt minus CreatedAt, set once served.
	ServiceTime time.Duration `json:"service_time,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}
