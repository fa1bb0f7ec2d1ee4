package model

import (
	"fmt"
	"strings"
	"time"
)

// VehicleStatus is the lifecycle state of an emergency vehicle.
type VehicleStatus int

const (
	AtBase VehicleStatus = iota
	EnRouteToIncident
	AtIncident
	EnRouteToHospital
	AtHospital
	Returning
)

var vehicleStatusNames = [...]string{
	AtBase:            "AT_BASE",
	EnRouteToIncident: "EN_ROUTE_TO_INCIDENT",
	AtIncident:        "AT_INCIDENT",
	EnRouteToHospital: "EN_ROUTE_TO_HOSPITAL",
	AtHospital:        "AT_HOSPITAL",
	Returning:         "RETURNING",
}

// String returns the upper-case name of the status.
func (s VehicleStatus) String() string {
	if s < 0 || int(s) >= len(vehicleStatusNames) {
		return "UNKNOWN"
	}
	return vehicleStatusNames[s]
}

// ParseVehicleStatus converts a status name back to its value.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	for i, name := range vehicleStatusNames {
		if strings.EqualFold(name, s) {
			return VehicleStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown vehicle status %q", s)
}

func (s VehicleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *VehicleStatus) UnmarshalText(b []byte) error {
	v, err := ParseVehicleStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Serving reports whether a vehicle in this status holds an assignment.
func (s VehicleStatus) Serving() bool { return s != AtBase }

// VehicleSpec describes a vehicle at startup.
type VehicleSpec struct {
	ID   string     `json:"id" yaml:"id" validate:"required"`
	Base Coordinate `json:"base" yaml:"base"`
}

// VehicleSnapshot is a read-only copy of a vehicle's state.
type VehicleSnapshot struct {
	ID         string        `json:"id"`
	Base       Coordinate    `json:"base"`
	Position   Coordinate    `json:"position"`
	Status     VehicleStatus `json:"status"`
	IncidentID string        `json:"incident_id,omitempty"`
	HospitalID string        `json:"hospital_id,omitempty"`
	// Dispatches counts committed assignments since startup.
	Dispatches int `json:"dispatches"`
	// DistanceM is the total distance travelled in metres.
	DistanceM float64 `json:"distance_m"`
	// ResponseTime accumulates dispatch-to-scene durations.
	ResponseTime time.Duration `json:"response_time"`
	DegradedLegs int           `json:"degraded_legs"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
