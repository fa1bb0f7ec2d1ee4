package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/emsdispatch/core/eventlog"
	coremetrics "github.com/kilianp07/emsdispatch/core/metrics"
	"github.com/kilianp07/emsdispatch/core/model"
)

// EventSource is the subscription side of the event log.
type EventSource interface {
	Subscribe() <-chan eventlog.Event
	Unsubscribe(ch <-chan eventlog.Event)
}

// StartEventCollector subscribes to the event log and records metrics for
// events. The fleet size is tracked from the vehicle transitions, starting
// from the given snapshot. It stops when the context is canceled or the log
// is closed; the returned channel is closed then.
func StartEventCollector(ctx context.Context, src EventSource, sink coremetrics.MetricsSink, initial []model.VehicleSnapshot) <-chan struct{} {
	done := make(chan struct{})
	if src == nil || sink == nil {
		close(done)
		return done
	}
	c := newCollector(sink, initial)
	sub := src.Subscribe()
	go func() {
		defer close(done)
		defer src.Unsubscribe(sub)
		c.recordFleet()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				c.handle(ev)
			}
		}
	}()
	return done
}

type collector struct {
	sink     coremetrics.MetricsSink
	statuses map[string]model.VehicleStatus
}

func newCollector(sink coremetrics.MetricsSink, initial []model.VehicleSnapshot) *collector {
	c := &collector{sink: sink, statuses: make(map[string]model.VehicleStatus, len(initial))}
	for _, s := range initial {
		c.statuses[s.ID] = s.Status
	}
	return c
}

func (c *collector) handle(ev eventlog.Event) {
	if ev.Kind == eventlog.KindVehicleStateChanged {
		c.vehicleState(ev)
		return
	}
	if ie, ok := IncidentEventFrom(ev); ok {
		_ = c.sink.RecordIncident(ie)
	}
}

func (c *collector) vehicleState(ev eventlog.Event) {
	from, err := model.ParseVehicleStatus(ev.From)
	if err != nil {
		return
	}
	to, err := model.ParseVehicleStatus(ev.To)
	if err != nil {
		return
	}
	if r, ok := c.sink.(coremetrics.VehicleStateRecorder); ok {
		rec := coremetrics.VehicleStateEvent{
			VehicleID:  ev.VehicleID,
			From:       from,
			To:         to,
			IncidentID: ev.IncidentID,
			Time:       ev.Time,
		}
		if ev.Location != nil {
			rec.Position = *ev.Location
		}
		_ = r.RecordVehicleState(rec)
	}
	c.statuses[ev.VehicleID] = to
	c.recordFleet()
}

func (c *collector) recordFleet() {
	fr, ok := c.sink.(coremetrics.FleetSizeRecorder)
	if !ok {
		return
	}
	available := 0
	for _, s := range c.statuses {
		if !s.Serving() {
			available++
		}
	}
	_ = fr.RecordFleetSize(len(c.statuses), available)
}

// IncidentEventFrom converts a log event into an incident metric. It reports
// false for kinds that carry no incident outcome.
func IncidentEventFrom(ev eventlog.Event) (coremetrics.IncidentEvent, bool) {
	out := coremetrics.IncidentEvent{
		IncidentID: ev.IncidentID,
		VehicleID:  ev.VehicleID,
		HospitalID: ev.HospitalID,
		Reason:     ev.Reason,
		Time:       ev.Time,
	}
	switch ev.Kind {
	case eventlog.KindDispatched:
		out.Outcome = coremetrics.OutcomeDispatched
		out.DistanceM = ev.DistanceM
		out.Degraded = ev.Degraded
	case eventlog.KindServed:
		out.Outcome = coremetrics.OutcomeServed
		out.ResponseTime = time.Duration(ev.ResponseTimeMS) * time.Millisecond
		out.ServiceTime = time.Duration(ev.ServiceTimeMS) * time.Millisecond
	case eventlog.KindUnserved:
		out.Outcome = coremetrics.OutcomeUnserved
	case eventlog.KindInterrupted:
		out.Outcome = coremetrics.OutcomeInterrupted
	default:
		return coremetrics.IncidentEvent{}, false
	}
	return out, true
}
