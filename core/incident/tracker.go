// Package incident keeps the authoritative record of every incident and
// enforces its forward-only status transitions.
package incident

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/emsdispatch/core/model"
)

var (
	ErrUnknownIncident   = errors.New("unknown incident")
	ErrDuplicateIncident = errors.New("incident already registered")
	ErrInvalidTransition = errors.New("invalid incident transition")
	// ErrInterruptedRun is the reason recorded on incidents cut short by shutdown.
	ErrInterruptedRun = errors.New("interrupted run")
)

// Tracker stores incidents in registration order.
type Tracker struct {
	mu    sync.RWMutex
	byID  map[string]*model.Incident
	order []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byID: make(map[string]*model.Incident)}
}

// Register records a new incident as PENDING.
func (t *Tracker) Register(inc model.Incident) (model.Incident, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[inc.ID]; ok {
		return model.Incident{}, fmt.Errorf("%w: %s", ErrDuplicateIncident, inc.ID)
	}
	inc.Status = model.IncidentPending
	stored := inc
	t.byID[inc.ID] = &stored
	t.order = append(t.order, inc.ID)
	return stored, nil
}

// MarkAssigned moves a PENDING incident to ASSIGNED.
func (t *Tracker) MarkAssigned(id, vehicleID string, at time.Time) (model.Incident, error) {
	return t.transition(id, model.IncidentAssigned, func(inc *model.Incident) {
		inc.VehicleID = vehicleID
		inc.AssignedAt = at
	}, model.IncidentPending)
}

// MarkServed moves an ASSIGNED incident to SERVED and records response and
// service times.
func (t *Tracker) MarkServed(id, hospitalID string, at time.Time) (model.Incident, error) {
	return t.transition(id, model.IncidentServed, func(inc *model.Incident) {
		inc.HospitalID = hospitalID
		inc.TerminalAt = at
		inc.ResponseTime = nonNegative(inc.AssignedAt.Sub(inc.CreatedAt))
		inc.ServiceTime = nonNegative(at.Sub(inc.CreatedAt))
	}, model.IncidentAssigned)
}

// MarkUnserved moves a PENDING incident to UNSERVED.
func (t *Tracker) MarkUnserved(id, reason string, at time.Time) (model.Incident, error) {
	return t.transition(id, model.IncidentUnserved, func(inc *model.Incident) {
		inc.Reason = reason
		inc.TerminalAt = at
	}, model.IncidentPending)
}

// MarkInterrupted closes a PENDING or ASSIGNED incident at shutdown.
func (t *Tracker) MarkInterrupted(id string, at time.Time) (model.Incident, error) {
	return t.transition(id, model.IncidentInterrupted, func(inc *model.Incident) {
		inc.Reason = ErrInterruptedRun.Error()
		inc.TerminalAt = at
	}, model.IncidentPending, model.IncidentAssigned)
}

// InterruptOpen marks every non-terminal incident INTERRUPTED and returns them
// in registration order.
func (t *Tracker) InterruptOpen(at time.Time) []model.Incident {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Incident
	for _, id := range t.order {
		inc := t.byID[id]
		if inc.Status.Terminal() {
			continue
		}
		inc.Status = model.IncidentInterrupted
		inc.Reason = ErrInterruptedRun.Error()
		inc.TerminalAt = at
		out = append(out, *inc)
	}
	return out
}

// Get returns a copy of the incident.
func (t *Tracker) Get(id string) (model.Incident, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inc, ok := t.byID[id]
	if !ok {
		return model.Incident{}, false
	}
	return *inc, true
}

// List returns incidents in registration order, optionally filtered by status.
func (t *Tracker) List(statuses ...model.IncidentStatus) []model.Incident {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Incident, 0, len(t.order))
	for _, id := range t.order {
		inc := t.byID[id]
		if len(statuses) > 0 && !contains(statuses, inc.Status) {
			continue
		}
		out = append(out, *inc)
	}
	return out
}

// Counts returns the number of incidents per status.
func (t *Tracker) Counts() map[model.IncidentStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.IncidentStatus]int)
	for _, inc := range t.byID {
		out[inc.Status]++
	}
	return out
}

// Len returns the number of registered incidents.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

func (t *Tracker) transition(id string, to model.IncidentStatus, apply func(*model.Incident), from ...model.IncidentStatus) (model.Incident, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inc, ok := t.byID[id]
	if !ok {
		return model.Incident{}, fmt.Errorf("%w: %s", ErrUnknownIncident, id)
	}
	if !contains(from, inc.Status) {
		return *inc, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, id, inc.Status, to)
	}
	apply(inc)
	inc.Status = to
	return *inc, nil
}

func contains(list []model.IncidentStatus, s model.IncidentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
