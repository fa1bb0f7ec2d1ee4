package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/emsdispatch/api"
	"github.com/kilianp07/emsdispatch/app/plugins"
	"github.com/kilianp07/emsdispatch/config"
	"github.com/kilianp07/emsdispatch/core/dispatch"
	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/fleet"
	"github.com/kilianp07/emsdispatch/core/generator"
	"github.com/kilianp07/emsdispatch/core/incident"
	coremetrics "github.com/kilianp07/emsdispatch/core/metrics"
	"github.com/kilianp07/emsdispatch/core/model"
	coremon "github.com/kilianp07/emsdispatch/core/monitoring"
	"github.com/kilianp07/emsdispatch/core/routing"
	"github.com/kilianp07/emsdispatch/core/sim"
	"github.com/kilianp07/emsdispatch/infra/logger"
	"github.com/kilianp07/emsdispatch/infra/metrics"
	"github.com/kilianp07/emsdispatch/infra/monitoring"
	infrarouting "github.com/kilianp07/emsdispatch/infra/routing"
	"github.com/kilianp07/emsdispatch/internal/simclock"
)

// Mode selects how simulated time advances.
type Mode int

const (
	// Realtime runs on the (optionally scaled) wall clock until canceled.
	Realtime Mode = iota
	// Replay runs a fixed simulated duration on a mock clock, as fast as
	// possible and deterministically for a given seed.
	Replay
)

const (
	monitorFlushTimeout = 2 * time.Second
	snapshotTimeout     = 5 * time.Second
)

// snapshotPublisher is implemented by sinks that mirror the fleet state.
type snapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snaps []model.VehicleSnapshot) error
}

// Service wires the simulation components from the configuration.
type Service struct {
	Scenario    fleet.Scenario
	Seed        uint64
	Fleet       *fleet.Fleet
	Tracker     *incident.Tracker
	Events      *eventlog.Log
	Coordinator *dispatch.Coordinator
	Engine      *sim.Engine
	Clock       clock.Clock

	cfg     *config.Config
	mode    Mode
	sinks   []eventlog.Sink
	metrics coremetrics.MetricsSink
	log     logger.Logger
}

// New creates a Service from the configuration. Extra sinks are fed by the
// event log next to the configured ones.
func New(cfg *config.Config, mode Mode, extra ...eventlog.Sink) (*Service, error) {
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sc, err := cfg.Fleet.LoadScenario()
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	client, err := infrarouting.NewClient(cfg.Routing)
	if err != nil {
		return nil, fmt.Errorf("routing client: %w", err)
	}
	fl, err := fleet.New(sc.Vehicles, sc.Hospitals, cfg.Fleet.Build(), routing.Ranker{Client: client}, logger.New("fleet"))
	if err != nil {
		return nil, err
	}
	msink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	clk, err := newClock(cfg.Simulation, mode)
	if err != nil {
		return nil, err
	}
	seed := cfg.Simulation.Seed
	if seed == 0 && mode == Realtime {
		seed = uint64(time.Now().UnixNano())
	}

	sinks, err := plugins.NewEventSinks(cfg.EventLog.Sinks)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, extra...)
	events := eventlog.New(logger.New("eventlog"), sinks...)

	s, err := build(cfg, sc, seed, fl, events, clk)
	if err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		return nil, errors.Join(err, events.Close(ctx))
	}
	s.cfg = cfg
	s.mode = mode
	s.sinks = sinks
	s.metrics = msink
	s.log = log
	log.Infof("scenario %q: %d vehicles, %d hospitals, routing %s, seed %d",
		sc.Name, len(sc.Vehicles), len(sc.Hospitals), cfg.Routing.Type, seed)
	return s, nil
}

func build(cfg *config.Config, sc fleet.Scenario, seed uint64, fl *fleet.Fleet, events *eventlog.Log, clk clock.Clock) (*Service, error) {
	tr := incident.NewTracker()
	coord, err := dispatch.New(cfg.Dispatch, fl, tr, events, clk, logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	gen, err := generator.New(cfg.Generator.Build(seed, sc.Area), clk, logger.New("generator"))
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	engine, err := sim.New(sim.Deps{
		Fleet:       fl,
		Tracker:     tr,
		Events:      events,
		Coordinator: coord,
		Generator:   gen,
		Clock:       clk,
		Log:         logger.New("sim"),
	}, cfg.Simulation.Engine())
	if err != nil {
		return nil, err
	}
	return &Service{
		Scenario:    sc,
		Seed:        seed,
		Fleet:       fl,
		Tracker:     tr,
		Events:      events,
		Coordinator: coord,
		Engine:      engine,
		Clock:       clk,
	}, nil
}

func newClock(cfg config.SimulationConfig, mode Mode) (clock.Clock, error) {
	if mode == Replay {
		m := clock.NewMock()
		m.Set(cfg.ReplayEpoch())
		return m, nil
	}
	epoch, err := cfg.EpochTime()
	if err != nil {
		return nil, err
	}
	return simclock.New(clock.New(), cfg.TimeScale, epoch), nil
}

// Run executes the simulation and returns its summary. In Realtime mode it
// blocks until ctx is canceled; in Replay mode it returns after the
// configured duration.
func (s *Service) Run(ctx context.Context) (sim.Summary, error) {
	defer coremon.Flush(monitorFlushTimeout)

	collectCtx, stopCollect := context.WithCancel(context.Background())
	defer stopCollect()
	defer coremetrics.Close(s.metrics)
	collected := metrics.StartEventCollector(collectCtx, s.Events, s.metrics, s.Fleet.Snapshot())

	if s.mode == Replay {
		sum, err := s.Engine.Replay(ctx, s.cfg.Simulation.ReplayDuration())
		s.waitCollector(err, stopCollect, collected)
		return sum, err
	}

	srvCtx, stopServers := context.WithCancel(context.Background())
	defer stopServers()
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(srvCtx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled() {
		h := api.NewHandler(api.Deps{
			Fleet:   s.Fleet,
			Tracker: s.Tracker,
			Events:  s.Events,
			Intake:  s.Coordinator,
			Clock:   s.Clock,
		}, logger.New("api"))
		go func() {
			if err := api.Serve(srvCtx, h, s.cfg.API); err != nil {
				s.log.Errorf("api server: %v", err)
				coremon.CaptureException(err, map[string]string{"module": "api"})
			}
		}()
	}
	s.publishSnapshot(ctx)

	sum, err := s.Engine.Run(ctx)
	s.waitCollector(err, stopCollect, collected)
	return sum, err
}

// waitCollector lets the collector drain the closed event log. A failed run
// may leave the log open, so the collector is canceled instead.
func (s *Service) waitCollector(runErr error, cancel context.CancelFunc, done <-chan struct{}) {
	if runErr != nil {
		cancel()
	}
	<-done
}

func (s *Service) publishSnapshot(ctx context.Context) {
	snaps := s.Fleet.Snapshot()
	for _, sink := range s.sinks {
		p, ok := sink.(snapshotPublisher)
		if !ok {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		if err := p.PublishSnapshot(pctx, snaps); err != nil {
			s.log.Warnf("publish fleet snapshot: %v", err)
		}
		cancel()
	}
}
