// Package sim runs the dispatch simulation, either against a live clock or
// as a deterministic lockstep replay.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/emsdispatch/core/dispatch"
	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/fleet"
	"github.com/kilianp07/emsdispatch/core/generator"
	"github.com/kilianp07/emsdispatch/core/incident"
	"github.com/kilianp07/emsdispatch/core/logger"
	"github.com/kilianp07/emsdispatch/core/monitoring"
)

const (
	DefaultTickInterval = time.Second
	// closeTimeout bounds the final flush of the event sinks.
	closeTimeout = 10 * time.Second
)

// ErrReplayClock is returned by Replay when the engine clock is not a mock.
var ErrReplayClock = errors.New("replay needs a mock clock")

// Config holds the engine timing settings.
type Config struct {
	TickInterval time.Duration
	// DrainTimeout lets in-flight runs finish after the intake stopped.
	DrainTimeout time.Duration
}

// Deps are the components driven by the engine.
type Deps struct {
	Fleet       *fleet.Fleet
	Tracker     *incident.Tracker
	Events      *eventlog.Log
	Coordinator *dispatch.Coordinator
	Generator   *generator.Generator
	Clock       clock.Clock
	Log         logger.Logger
}

// Engine owns the lifecycle of a run.
type Engine struct {
	Deps
	cfg Config
}

// New checks the dependencies and returns an engine.
func New(d Deps, cfg Config) (*Engine, error) {
	if d.Fleet == nil || d.Tracker == nil || d.Events == nil || d.Coordinator == nil || d.Generator == nil {
		return nil, fmt.Errorf("sim: missing dependency")
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Engine{Deps: d, cfg: cfg}, nil
}

// Run drives the simulation in real time until ctx is done, then shuts down
// and returns the run summary.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	var vehicles sync.WaitGroup
	for _, v := range e.Fleet.Vehicles() {
		vehicles.Add(1)
		go e.drive(runCtx, v, &vehicles)
	}
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		e.Coordinator.Run(runCtx)
	}()
	if err := e.Generator.Start(runCtx, e.Coordinator); err != nil {
		cancelRun()
		vehicles.Wait()
		return Summary{}, err
	}
	e.infof("simulation started with %d vehicles", len(e.Fleet.Vehicles()))

	<-ctx.Done()
	e.infof("shutting down")

	e.Generator.Stop()
	e.interruptQueued()
	<-workersDone
	e.drain(func() {
		t := e.Clock.Ticker(e.cfg.TickInterval)
		defer t.Stop()
		deadline := e.Clock.Now().Add(e.cfg.DrainTimeout)
		for e.busy() && e.Clock.Now().Before(deadline) {
			<-t.C
		}
	})
	cancelRun()
	vehicles.Wait()
	return e.finish()
}

func (e *Engine) drive(ctx context.Context, v *fleet.Vehicle, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() { monitoring.Recover("vehicle", recover()) }()
	t := e.Clock.Ticker(e.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			v.Step(ctx, e.Clock.Now())
		}
	}
}

// Replay runs a deterministic simulation of duration on the engine's mock
// clock. Incidents are decided synchronously at their creation time and the
// vehicles step in id order on every tick.
func (e *Engine) Replay(ctx context.Context, duration time.Duration) (Summary, error) {
	m, ok := e.Clock.(*clock.Mock)
	if !ok {
		return Summary{}, ErrReplayClock
	}
	now := m.Now()
	end := now.Add(duration)
	next := e.Generator.Next(now)
	for now.Before(end) && ctx.Err() == nil {
		tick := now.Add(e.cfg.TickInterval)
		if tick.After(end) {
			tick = end
		}
		for !next.CreatedAt.After(tick) {
			m.Set(next.CreatedAt)
			inc, err := e.Coordinator.Accept(next)
			if err != nil {
				return Summary{}, err
			}
			e.Coordinator.Handle(ctx, inc)
			next = e.Generator.Next(next.CreatedAt)
		}
		m.Set(tick)
		e.Fleet.Step(ctx, tick)
		now = tick
	}
	e.Coordinator.Stop()
	e.drain(func() {
		deadline := m.Now().Add(e.cfg.DrainTimeout)
		for e.busy() && m.Now().Before(deadline) {
			m.Add(e.cfg.TickInterval)
			e.Fleet.Step(ctx, m.Now())
		}
	})
	return e.finish()
}

func (e *Engine) busy() bool {
	st := e.Fleet.Stats()
	return st.Available < st.Total
}

func (e *Engine) drain(wait func()) {
	if e.cfg.DrainTimeout <= 0 || !e.busy() {
		return
	}
	e.infof("draining in-flight runs for up to %s", e.cfg.DrainTimeout)
	wait()
}

func (e *Engine) interruptQueued() {
	now := e.Clock.Now()
	for _, inc := range e.Coordinator.Stop() {
		e.Coordinator.Interrupt(inc.ID, now)
	}
}

// finish closes every open incident, flushes the event log and summarizes.
func (e *Engine) finish() (Summary, error) {
	now := e.Clock.Now()
	if n := e.Fleet.Interrupt(now, func(_, incidentID string) {
		e.Coordinator.Interrupt(incidentID, now)
	}); n > 0 {
		e.infof("%d vehicles interrupted", n)
	}
	for _, inc := range e.Tracker.InterruptOpen(now) {
		if _, err := e.Events.Append(eventlog.Interrupted(inc)); err != nil && e.Log != nil {
			e.Log.Errorf("event log: %v", err)
		}
	}
	sum := Summarize(e.Tracker, e.Fleet, e.Events.Len())
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := e.Events.Close(ctx)
	e.infof("run finished: %s", sum)
	return sum, err
}

func (e *Engine) infof(format string, args ...any) {
	if e.Log != nil {
		e.Log.Infof(format, args...)
	}
}
