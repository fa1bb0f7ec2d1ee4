// Package dispatch decides which vehicle serves each incident and feeds the
// decisions through a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/fleet"
	"github.com/kilianp07/emsdispatch/core/incident"
	"github.com/kilianp07/emsdispatch/core/logger"
	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/core/monitoring"
	"github.com/kilianp07/emsdispatch/core/routing"
)

var (
	// ErrNoVehicleAvailable is the reason recorded on unserved incidents.
	ErrNoVehicleAvailable = errors.New("no vehicle available")
	// ErrStopped is returned by Submit once the coordinator was stopped.
	ErrStopped = errors.New("coordinator stopped")
	// ErrQueueFull is the reason recorded on incidents that could not be
	// queued before the caller gave up.
	ErrQueueFull = errors.New("dispatch queue full")
)

// Outcome is the result of one dispatch decision.
type Outcome struct {
	IncidentID string
	VehicleID  string
	Route      model.Route
	Reason     string
	Err        error
}

// Assigned reports whether a vehicle was committed to the incident.
func (o Outcome) Assigned() bool { return o.Err == nil && o.VehicleID != "" }

// Coordinator registers incidents, decides their vehicle and records the
// results. It implements fleet.Observer to close incidents when vehicles
// return to base.
type Coordinator struct {
	cfg     Config
	fleet   *fleet.Fleet
	tracker *incident.Tracker
	events  *eventlog.Log
	ranker  routing.Ranker
	clk     clock.Clock
	log     logger.Logger

	queue chan model.Incident

	mu       sync.Mutex
	sendMu   sync.RWMutex
	quit     chan struct{}
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New builds a coordinator and registers it as the fleet observer.
func New(cfg Config, fl *fleet.Fleet, tracker *incident.Tracker, events *eventlog.Log, clk clock.Clock, log logger.Logger) (*Coordinator, error) {
	if fl == nil || tracker == nil || events == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	r := fl.Ranker()
	r.TopK = cfg.TopK
	r.Timeout = cfg.RoutingTimeout()
	r.FallbackSpeed = cfg.FallbackSpeedKMH
	if r.Log == nil && log != nil {
		r.Log = log.With(map[string]any{"leg": "incident"})
	}
	c := &Coordinator{
		cfg:     cfg,
		fleet:   fl,
		tracker: tracker,
		events:  events,
		ranker:  r,
		clk:     clk,
		log:     log,
		queue:   make(chan model.Incident, cfg.QueueSize),
		quit:    make(chan struct{}),
	}
	fl.Observe(c)
	return c, nil
}

// Accept registers a new incident as PENDING and records its creation.
func (c *Coordinator) Accept(inc model.Incident) (model.Incident, error) {
	reg, err := c.tracker.Register(inc)
	if err != nil {
		return model.Incident{}, err
	}
	c.append(eventlog.IncidentCreated(reg))
	return reg, nil
}

// Submit accepts inc and queues it for a worker. It blocks while the queue is
// full. An incident accepted but not queued is closed at once: INTERRUPTED
// when the coordinator stops, UNSERVED with ErrQueueFull when ctx ends.
func (c *Coordinator) Submit(ctx context.Context, inc model.Incident) error {
	// Stop drains the queue only once no Submit is between Accept and enqueue.
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return ErrStopped
	}
	reg, err := c.Accept(inc)
	if err != nil {
		return err
	}
	select {
	case c.queue <- reg:
		queueDepth.Set(float64(len(c.queue)))
		return nil
	case <-c.quit:
		c.Interrupt(reg.ID, c.clk.Now())
		return ErrStopped
	case <-ctx.Done():
		c.unserve(reg, ErrQueueFull)
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	}
}

// Run handles queued incidents with the configured number of workers until
// ctx is done or Stop is called.
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	// Added under mu so Stop never waits before the workers are counted.
	c.wg.Add(c.cfg.Workers)
	c.mu.Unlock()
	for i := 0; i < c.cfg.Workers; i++ {
		go c.worker(ctx)
	}
	c.wg.Wait()
}

func (c *Coordinator) worker(ctx context.Context) {
	defer c.wg.Done()
	defer func() { monitoring.Recover("dispatch", recover()) }()
	for {
		select {
		case <-c.quit:
			return
		case <-ctx.Done():
			return
		case inc := <-c.queue:
			queueDepth.Set(float64(len(c.queue)))
			c.Handle(ctx, inc)
		}
	}
}

// Stop ends the workers after their in-flight decision and returns the
// incidents still queued, in arrival order.
func (c *Coordinator) Stop() []model.Incident {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.quit)
	})
	c.wg.Wait()
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	var left []model.Incident
	for {
		select {
		case inc := <-c.queue:
			left = append(left, inc)
		default:
			queueDepth.Set(0)
			return left
		}
	}
}

// Handle decides on one registered incident: the nearest free vehicles are
// ranked by routed distance and the best one still free is committed.
func (c *Coordinator) Handle(ctx context.Context, inc model.Incident) Outcome {
	start := time.Now()
	defer func() { decisionLatency.Observe(time.Since(start).Seconds()) }()

	vehicles := c.fleet.CandidatesNear(inc.Location)
	if len(vehicles) == 0 {
		return c.unserve(inc, ErrNoVehicleAvailable)
	}
	cands := make([]routing.Candidate, len(vehicles))
	for i, v := range vehicles {
		cands[i] = routing.Candidate{ID: v.ID(), From: v.Position(), To: inc.Location}
	}
	// Only the ranked top-K are tried. Losing all of them to concurrent
	// commits leaves the incident UNSERVED even if vehicles outside the
	// top-K are still at base.
	for _, ch := range c.ranker.Rank(ctx, cands) {
		v, _ := c.fleet.Get(ch.ID)
		out, err := c.commit(v, inc, ch)
		switch {
		case err == nil:
			return out
		case errors.Is(err, fleet.ErrVehicleBusy):
			lostRaces.Inc()
			if c.log != nil {
				c.log.Debugf("incident %s: %v, trying next vehicle", inc.ID, err)
			}
		case errors.Is(err, fleet.ErrDispatchConflict):
			monitoring.CaptureException(err, map[string]string{"vehicle_id": ch.ID, "incident_id": inc.ID})
			panic(err)
		default:
			incidentOutcomes.WithLabelValues("error").Inc()
			if c.log != nil {
				c.log.Errorf("incident %s not dispatched: %v", inc.ID, err)
			}
			return Outcome{IncidentID: inc.ID, Err: err}
		}
	}
	return c.unserve(inc, ErrNoVehicleAvailable)
}

func (c *Coordinator) commit(v *fleet.Vehicle, inc model.Incident, ch routing.Choice) (Outcome, error) {
	now := c.clk.Now()
	err := v.Dispatch(inc, ch.Route, now, func() error {
		assigned, err := c.tracker.MarkAssigned(inc.ID, v.ID(), now)
		if err != nil {
			return err
		}
		c.append(eventlog.Dispatched(assigned, v.ID(), ch.Route, now))
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	incidentOutcomes.WithLabelValues("assigned").Inc()
	if ch.Route.Degraded {
		degradedDispatches.Inc()
	}
	if c.log != nil {
		c.log.Infof("incident %s assigned to %s (%.0f m, degraded=%t)", inc.ID, v.ID(), ch.Route.DistanceM, ch.Route.Degraded)
	}
	return Outcome{IncidentID: inc.ID, VehicleID: v.ID(), Route: ch.Route}, nil
}

func (c *Coordinator) unserve(inc model.Incident, reason error) Outcome {
	u, err := c.tracker.MarkUnserved(inc.ID, reason.Error(), c.clk.Now())
	if err != nil {
		incidentOutcomes.WithLabelValues("error").Inc()
		if c.log != nil {
			c.log.Errorf("incident %s: %v", inc.ID, err)
		}
		return Outcome{IncidentID: inc.ID, Err: err}
	}
	c.append(eventlog.Unserved(u))
	incidentOutcomes.WithLabelValues("unserved").Inc()
	if c.log != nil {
		c.log.Warnf("incident %s unserved: %v", inc.ID, reason)
	}
	return Outcome{IncidentID: inc.ID, Reason: reason.Error(), Err: reason}
}

// Interrupt marks an open incident INTERRUPTED and records it.
func (c *Coordinator) Interrupt(incidentID string, at time.Time) {
	i, err := c.tracker.MarkInterrupted(incidentID, at)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("interrupt %s: %v", incidentID, err)
		}
		return
	}
	c.append(eventlog.Interrupted(i))
}

// VehicleStateChanged records a vehicle status change.
func (c *Coordinator) VehicleStateChanged(snap model.VehicleSnapshot, from model.VehicleStatus) {
	c.append(eventlog.VehicleStateChanged(snap, from))
}

// IncidentCompleted marks the incident served when its vehicle is back at base.
func (c *Coordinator) IncidentCompleted(vehicleID, incidentID, hospitalID string, at time.Time) {
	s, err := c.tracker.MarkServed(incidentID, hospitalID, at)
	if err != nil {
		if c.log != nil {
			c.log.Errorf("vehicle %s completed %s: %v", vehicleID, incidentID, err)
		}
		return
	}
	c.append(eventlog.Served(s))
	if c.log != nil {
		c.log.Infof("incident %s served by %s via hospital %s in %s", incidentID, vehicleID, hospitalID, s.ServiceTime)
	}
}

func (c *Coordinator) append(ev eventlog.Event) {
	if _, err := c.events.Append(ev); err != nil && c.log != nil {
		c.log.Errorf("event log: %v", err)
	}
}
