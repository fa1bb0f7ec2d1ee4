// Package store provides durable event log backends.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/emsdispatch/core/eventlog"
)

// Query filters stored events. Zero values match everything.
type Query struct {
	Start      time.Time
	End        time.Time
	Kind       eventlog.Kind
	IncidentID string
	VehicleID  string
}

// Match reports whether ev satisfies q.
func (q Query) Match(ev eventlog.Event) bool {
	if !q.Start.IsZero() && ev.Time.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ev.Time.After(q.End) {
		return false
	}
	if q.Kind != "" && ev.Kind != q.Kind {
		return false
	}
	if q.IncidentID != "" && ev.IncidentID != q.IncidentID {
		return false
	}
	if q.VehicleID != "" && ev.VehicleID != q.VehicleID {
		return false
	}
	return true
}

// Store persists events and supports querying them back.
type Store interface {
	eventlog.Sink
	Query(ctx context.Context, q Query) ([]eventlog.Event, error)
}
