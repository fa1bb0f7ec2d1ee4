package model

import "time"

// Route is the answer of a routing query for one origin/destination pair.
type Route struct {
	DistanceM float64       `json:"distance_m"`
	Duration  time.Duration `json:"duration"`
	Path      []Coordinate  `json:"path"`
	// Degraded is set when the route was synthesized from the straight line
	// instead of being computed by the routing engine.
	Degraded bool `json:"degraded,omitempty"`
}

// NewRoute builds a Route owning its own copy of path.
func NewRoute(distanceM float64, duration time.Duration, path []Coordinate, degraded bool) Route {
	p := make([]Coordinate, len(path))
	copy(p, path)
	return Route{DistanceM: distanceM, Duration: duration, Path: p, Degraded: degraded}
}

// Origin returns the first point of the path.
func (r Route) Origin() (Coordinate, bool) {
	if len(r.Path) == 0 {
		return Coordinate{}, false
	}
	return r.Path[0], true
}

// Destination returns the last point of the path.
func (r Route) Destination() (Coordinate, bool) {
	if len(r.Path) == 0 {
		return Coordinate{}, false
	}
	return r.Path[len(r.Path)-1], true
}
