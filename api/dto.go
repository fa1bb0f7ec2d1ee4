package api

import (
	"time"

	"github.com/kilianp07/emsdispatch/core/model"
)

// CreateIncidentRequest is the body of POST /api/incidents.
type CreateIncidentRequest struct {
	// ID is optional; a random one is assigned when empty.
	ID  string   `json:"id,omitempty" validate:"omitempty,max=64,printascii"`
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

// IncidentResponse is the JSON view of an incident.
type IncidentResponse struct {
	ID         string           `json:"id"`
	Location   model.Coordinate `json:"location"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	VehicleID  string           `json:"vehicle_id,omitempty"`
	AssignedAt *time.Time       `json:"assigned_at,omitempty"`
	HospitalID string           `json:"hospital_id,omitempty"`
	TerminalAt *time.Time       `json:"terminal_at,omitempty"`
	ResponseMS int64            `json:"response_time_ms,omitempty"`
	ServiceMS  int64            `json:"service_time_ms,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toIncidentResponse(inc model.Incident) IncidentResponse {
	return IncidentResponse{
		ID:         inc.ID,
		Location:   inc.Location,
		Status:     inc.Status.String(),
		CreatedAt:  inc.CreatedAt,
		VehicleID:  inc.VehicleID,
		AssignedAt: optTime(inc.AssignedAt),
		HospitalID: inc.HospitalID,
		TerminalAt: optTime(inc.TerminalAt),
		ResponseMS: inc.ResponseTime.Milliseconds(),
		ServiceMS:  inc.ServiceTime.Milliseconds(),
		Reason:     inc.Reason,
	}
}

func toIncidentResponses(incs []model.Incident) []IncidentResponse {
	out := make([]IncidentResponse, len(incs))
	for i, inc := range incs {
		out[i] = toIncidentResponse(inc)
	}
	return out
}
