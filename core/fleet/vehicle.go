package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/emsdispatch/core/geo"
	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/core/routing"
)

var (
	// ErrVehicleBusy is returned when a dispatch targets a vehicle that already
	// left its base. It means another decision won the commit.
	ErrVehicleBusy = errors.New("vehicle not at base")
	// ErrDispatchConflict reports a vehicle at base that still holds an
	// assignment. It can only result from a broken invariant.
	ErrDispatchConflict = errors.New("dispatch conflict")
)

// Assignment is the incident a vehicle is serving.
type Assignment struct {
	Incident   model.Incident
	HospitalID string
}

// Vehicle is one emergency vehicle. After a successful Dispatch, the
// goroutine calling Step is the only writer of position and status.
type Vehicle struct {
	id   string
	base model.Coordinate
	env  *env

	mu         sync.Mutex
	status     model.VehicleStatus
	position   model.Coordinate
	assignment *Assignment
	walker     *geo.Walker
	dwellUntil time.Time
	lastStep   time.Time
	dispatched time.Time
	updatedAt  time.Time

	dispatches   int
	distanceM    float64
	responseTime time.Duration
	degradedLegs int
}

func newVehicle(spec model.VehicleSpec, e *env) *Vehicle {
	return &Vehicle{id: spec.ID, base: spec.Base, position: spec.Base, env: e}
}

// ID returns the vehicle identifier.
func (v *Vehicle) ID() string { return v.id }

// Base returns the home base.
func (v *Vehicle) Base() model.Coordinate { return v.base }

// Status returns the current status.
func (v *Vehicle) Status() model.VehicleStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Position returns the current position.
func (v *Vehicle) Position() model.Coordinate {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

// Snapshot returns a consistent copy of the vehicle state.
func (v *Vehicle) Snapshot() model.VehicleSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *Vehicle) snapshotLocked() model.VehicleSnapshot {
	s := model.VehicleSnapshot{
		ID:           v.id,
		Base:         v.base,
		Position:     v.position,
		Status:       v.status,
		Dispatches:   v.dispatches,
		DistanceM:    v.distanceM,
		ResponseTime: v.responseTime,
		DegradedLegs: v.degradedLegs,
		UpdatedAt:    v.updatedAt,
	}
	if v.assignment != nil {
		s.IncidentID = v.assignment.Incident.ID
		s.HospitalID = v.assignment.HospitalID
	}
	return s
}

// Dispatch is the single exit from AT_BASE. Under the vehicle lock it checks
// the vehicle is free, runs commit and starts the run along route. commit
// must not call back into the vehicle; if it fails nothing changes.
func (v *Vehicle) Dispatch(inc model.Incident, route model.Route, now time.Time, commit func() error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status != model.AtBase {
		return fmt.Errorf("%w: %s is %s", ErrVehicleBusy, v.id, v.status)
	}
	if v.assignment != nil {
		return fmt.Errorf("%w: %s at base still serving %s", ErrDispatchConflict, v.id, v.assignment.Incident.ID)
	}
	if commit != nil {
		if err := commit(); err != nil {
			return err
		}
	}
	v.assignment = &Assignment{Incident: inc}
	v.dispatches++
	v.dispatched = now
	v.lastStep = now
	v.startLeg(route, inc.Location)
	v.setStatus(model.EnRouteToIncident, now)
	return nil
}

// Step advances the vehicle to now. Routing for the hospital and return legs
// happens here, without holding the lock.
func (v *Vehicle) Step(ctx context.Context, now time.Time) {
	v.mu.Lock()
	dt := now.Sub(v.lastStep)
	if dt < 0 {
		dt = 0
	}
	v.lastStep = now
	switch v.status {
	case model.EnRouteToIncident, model.EnRouteToHospital, model.Returning:
		v.move(dt)
		if v.walker.Done() {
			v.arrive(now)
		}
		v.mu.Unlock()
	case model.AtIncident:
		if now.Before(v.dwellUntil) {
			v.mu.Unlock()
			return
		}
		from := v.position
		v.mu.Unlock()
		h, route := v.env.chooseHospital(ctx, from)
		v.mu.Lock()
		if v.status != model.AtIncident {
			// Interrupted while routing.
			v.mu.Unlock()
			return
		}
		v.assignment.HospitalID = h.ID
		v.startLeg(route, h.Location)
		v.setStatus(model.EnRouteToHospital, now)
		v.mu.Unlock()
	case model.AtHospital:
		if now.Before(v.dwellUntil) {
			v.mu.Unlock()
			return
		}
		from := v.position
		v.mu.Unlock()
		route, _ := routing.Resolve(ctx, v.env.ranker.Client, from, v.base, v.env.ranker.Timeout, v.env.ranker.FallbackSpeed)
		v.mu.Lock()
		if v.status != model.AtHospital {
			v.mu.Unlock()
			return
		}
		v.startLeg(route, v.base)
		v.setStatus(model.Returning, now)
		v.mu.Unlock()
	default:
		v.mu.Unlock()
	}
}

// Interrupt resets a serving vehicle to its base. onInterrupt receives the
// incident id before the assignment is released. It returns false when the
// vehicle was already at base.
func (v *Vehicle) Interrupt(now time.Time, onInterrupt func(incidentID string)) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status == model.AtBase {
		return false
	}
	if onInterrupt != nil && v.assignment != nil {
		onInterrupt(v.assignment.Incident.ID)
	}
	v.position = v.base
	v.walker = nil
	v.setStatus(model.AtBase, now)
	v.assignment = nil
	return true
}

func (v *Vehicle) move(dt time.Duration) {
	meters := v.env.speedMPS * dt.Seconds()
	if meters <= 0 || v.walker == nil {
		return
	}
	v.distanceM += v.walker.Advance(meters)
	v.position = v.walker.Position()
}

// startLeg makes route the current path. A route without a usable path is
// replaced by the straight line to dest.
func (v *Vehicle) startLeg(route model.Route, dest model.Coordinate) {
	path := route.Path
	if len(path) < 2 {
		path = []model.Coordinate{v.position, dest}
	} else if path[0] != v.position {
		// Routing engines snap endpoints to the road network.
		path = append([]model.Coordinate{v.position}, path...)
	}
	if route.Degraded {
		v.degradedLegs++
	}
	v.walker = geo.NewWalker(path)
}

func (v *Vehicle) arrive(now time.Time) {
	switch v.status {
	case model.EnRouteToIncident:
		v.responseTime += now.Sub(v.dispatched)
		v.dwellUntil = now.Add(v.env.onScene)
		v.setStatus(model.AtIncident, now)
	case model.EnRouteToHospital:
		v.dwellUntil = now.Add(v.env.dropOff)
		v.setStatus(model.AtHospital, now)
	case model.Returning:
		v.position = v.base
		if obs := v.env.observer(); obs != nil && v.assignment != nil {
			obs.IncidentCompleted(v.id, v.assignment.Incident.ID, v.assignment.HospitalID, now)
		}
		v.walker = nil
		v.setStatus(model.AtBase, now)
		v.assignment = nil
	}
}

// setStatus must be called with the lock held. The observer is notified
// inside the critical section so per-vehicle events keep their order.
func (v *Vehicle) setStatus(s model.VehicleStatus, now time.Time) {
	from := v.status
	v.status = s
	v.updatedAt = now
	if obs := v.env.observer(); obs != nil && from != s {
		obs.VehicleStateChanged(v.snapshotLocked(), from)
	}
}
