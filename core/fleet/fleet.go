// Package fleet owns the emergency vehicles, their lifecycle state machine and
// the static scenario data they operate on.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/emsdispatch/core/geo"
	"github.com/kilianp07/emsdispatch/core/logger"
	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/core/routing"
)

const (
	DefaultSpeedKMH = 40.0
	DefaultOnScene  = 10 * time.Second
	DefaultDropOff  = 5 * time.Second
)

// Config holds the movement parameters shared by all vehicles.
type Config struct {
	SpeedKMH float64
	OnScene  time.Duration
	DropOff  time.Duration
}

func (c *Config) setDefaults() {
	if c.SpeedKMH <= 0 {
		c.SpeedKMH = DefaultSpeedKMH
	}
	if c.OnScene <= 0 {
		c.OnScene = DefaultOnScene
	}
	if c.DropOff <= 0 {
		c.DropOff = DefaultDropOff
	}
}

// Observer receives vehicle notifications. Both methods are called with the
// vehicle lock held and must not call back into the vehicle.
type Observer interface {
	VehicleStateChanged(snap model.VehicleSnapshot, from model.VehicleStatus)
	// IncidentCompleted runs when a vehicle reaches its base again, before the
	// assignment is released.
	IncidentCompleted(vehicleID, incidentID, hospitalID string, at time.Time)
}

// Stats aggregates fleet counters.
type Stats struct {
	Total        int     `json:"total"`
	Available    int     `json:"available"`
	Dispatches   int     `json:"dispatches"`
	DistanceM    float64 `json:"distance_m"`
	DegradedLegs int     `json:"degraded_legs"`
}

// env is the state shared between the fleet and its vehicles.
type env struct {
	speedMPS  float64
	onScene   time.Duration
	dropOff   time.Duration
	ranker    routing.Ranker
	hospitals []model.Hospital

	mu  sync.RWMutex
	obs Observer
}

func (e *env) observer() Observer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.obs
}

// chooseHospital ranks the hospitals from pos and returns the best one with
// its route. Routing failures fall back to the haversine-nearest hospital.
func (e *env) chooseHospital(ctx context.Context, pos model.Coordinate) (model.Hospital, model.Route) {
	cands := make([]routing.Candidate, len(e.hospitals))
	byID := make(map[string]model.Hospital, len(e.hospitals))
	for i, h := range e.hospitals {
		cands[i] = routing.Candidate{ID: h.ID, From: pos, To: h.Location}
		byID[h.ID] = h
	}
	best := e.ranker.Rank(ctx, cands)[0]
	return byID[best.ID], best.Route
}

// Fleet is the set of vehicles of a run.
type Fleet struct {
	vehicles []*Vehicle
	byID     map[string]*Vehicle
	env      *env
	log      logger.Logger
}

// New builds a fleet with every vehicle at its base.
func New(specs []model.VehicleSpec, hospitals []model.Hospital, cfg Config, ranker routing.Ranker, log logger.Logger) (*Fleet, error) {
	if len(specs) == 0 {
		return nil, errors.New("fleet: no vehicles")
	}
	if len(hospitals) == 0 {
		return nil, errors.New("fleet: no hospitals")
	}
	cfg.setDefaults()
	hs := make([]model.Hospital, len(hospitals))
	copy(hs, hospitals)
	seen := make(map[string]bool, len(hs))
	for _, h := range hs {
		if h.ID == "" || seen[h.ID] {
			return nil, fmt.Errorf("fleet: invalid or duplicate hospital id %q", h.ID)
		}
		if !h.Location.Valid() {
			return nil, fmt.Errorf("fleet: hospital %s: invalid location %s", h.ID, h.Location)
		}
		seen[h.ID] = true
	}
	if ranker.Log == nil && log != nil {
		ranker.Log = log.With(map[string]any{"leg": "hospital"})
	}
	e := &env{
		speedMPS:  cfg.SpeedKMH / 3.6,
		onScene:   cfg.OnScene,
		dropOff:   cfg.DropOff,
		ranker:    ranker,
		hospitals: hs,
	}
	f := &Fleet{byID: make(map[string]*Vehicle, len(specs)), env: e, log: log}
	for _, s := range specs {
		if s.ID == "" {
			return nil, errors.New("fleet: vehicle without id")
		}
		if _, ok := f.byID[s.ID]; ok {
			return nil, fmt.Errorf("fleet: duplicate vehicle id %q", s.ID)
		}
		if !s.Base.Valid() {
			return nil, fmt.Errorf("fleet: vehicle %s: invalid base %s", s.ID, s.Base)
		}
		v := newVehicle(s, e)
		f.vehicles = append(f.vehicles, v)
		f.byID[s.ID] = v
	}
	sort.Slice(f.vehicles, func(i, j int) bool { return f.vehicles[i].id < f.vehicles[j].id })
	if log != nil {
		log.Infof("fleet ready: %d vehicles, %d hospitals", len(f.vehicles), len(hs))
	}
	return f, nil
}

// Observe installs the observer notified of state changes and completions.
func (f *Fleet) Observe(o Observer) {
	f.env.mu.Lock()
	f.env.obs = o
	f.env.mu.Unlock()
}

// Ranker returns the ranker shared by the vehicles.
func (f *Fleet) Ranker() routing.Ranker { return f.env.ranker }

// Get returns the vehicle with the given id.
func (f *Fleet) Get(id string) (*Vehicle, bool) {
	v, ok := f.byID[id]
	return v, ok
}

// Vehicles returns all vehicles in id order.
func (f *Fleet) Vehicles() []*Vehicle {
	out := make([]*Vehicle, len(f.vehicles))
	copy(out, f.vehicles)
	return out
}

// Hospitals returns the static hospital set.
func (f *Fleet) Hospitals() []model.Hospital {
	out := make([]model.Hospital, len(f.env.hospitals))
	copy(out, f.env.hospitals)
	return out
}

// CandidatesNear returns the vehicles at base ordered by straight-line
// distance to c, ties broken by id.
func (f *Fleet) CandidatesNear(c model.Coordinate) []*Vehicle {
	type cand struct {
		v *Vehicle
		d float64
	}
	var cs []cand
	for _, v := range f.vehicles {
		v.mu.Lock()
		free := v.status == model.AtBase
		pos := v.position
		v.mu.Unlock()
		if free {
			cs = append(cs, cand{v: v, d: geo.Haversine(pos, c)})
		}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].d != cs[j].d {
			return cs[i].d < cs[j].d
		}
		return cs[i].v.id < cs[j].v.id
	})
	out := make([]*Vehicle, len(cs))
	for i, c := range cs {
		out[i] = c.v
	}
	return out
}

// Snapshot returns a copy of every vehicle state in id order.
func (f *Fleet) Snapshot() []model.VehicleSnapshot {
	out := make([]model.VehicleSnapshot, len(f.vehicles))
	for i, v := range f.vehicles {
		out[i] = v.Snapshot()
	}
	return out
}

// Stats sums the vehicle counters.
func (f *Fleet) Stats() Stats {
	st := Stats{Total: len(f.vehicles)}
	for _, s := range f.Snapshot() {
		if s.Status == model.AtBase {
			st.Available++
		}
		st.Dispatches += s.Dispatches
		st.DistanceM += s.DistanceM
		st.DegradedLegs += s.DegradedLegs
	}
	return st
}

// Step advances every vehicle to now in id order.
func (f *Fleet) Step(ctx context.Context, now time.Time) {
	for _, v := range f.vehicles {
		v.Step(ctx, now)
	}
}

// Interrupt resets every serving vehicle to its base and returns how many
// were interrupted.
func (f *Fleet) Interrupt(now time.Time, onInterrupt func(vehicleID, incidentID string)) int {
	n := 0
	for _, v := range f.vehicles {
		id := v.id
		if v.Interrupt(now, func(incID string) {
			if onInterrupt != nil {
				onInterrupt(id, incID)
			}
		}) {
			n++
		}
	}
	return n
}
