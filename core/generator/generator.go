// Package generator produces the randomized incident stream of a run.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/emsdispatch/core/logger"
	"github.com/kilianp07/emsdispatch/core/model"
	"github.com/kilianp07/emsdispatch/core/monitoring"
)

// ErrAlreadyRunning is returned by Start on a generator that is running.
var ErrAlreadyRunning = errors.New("generator already running")

// DefaultMeanInterval is the mean time between two incidents.
const DefaultMeanInterval = 15 * time.Second

// Region is a weighted sub-area of the service area.
type Region struct {
	Name   string            `json:"name,omitempty"`
	Area   model.BoundingBox `json:"area"`
	Weight float64           `json:"weight"`
}

// Config parameterizes the incident stream.
type Config struct {
	MeanInterval time.Duration
	Area         model.BoundingBox
	Regions      []Region
	Seed         uint64
}

func (c Config) validate() error {
	if err := c.Area.Validate(); err != nil && len(c.Regions) == 0 {
		return fmt.Errorf("generator area: %w", err)
	}
	var total float64
	for i, r := range c.Regions {
		if err := r.Area.Validate(); err != nil {
			return fmt.Errorf("generator region %d: %w", i, err)
		}
		if r.Weight < 0 {
			return fmt.Errorf("generator region %d: negative weight", i)
		}
		total += r.Weight
	}
	if len(c.Regions) > 0 && total == 0 {
		return errors.New("generator regions: weights sum to zero")
	}
	return nil
}

// Intake receives generated incidents.
type Intake interface {
	Submit(ctx context.Context, inc model.Incident) error
}

// Generator draws incidents from a seeded stream: exponential inter-arrival
// times and uniform locations, optionally inside weighted regions.
type Generator struct {
	cfg Config
	clk clock.Clock
	log logger.Logger

	mu      sync.Mutex
	src     *rand.ChaCha8
	uniform *rand.Rand
	gap     distuv.Exponential
	region  *distuv.Categorical

	runMu   sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New returns a generator. The seed fixes every draw, identifiers included.
func New(cfg Config, clk clock.Clock, log logger.Logger) (*Generator, error) {
	if cfg.MeanInterval <= 0 {
		cfg.MeanInterval = DefaultMeanInterval
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	var seed [32]byte
	for i := 0; i < 8; i++ {
		seed[i] = byte(cfg.Seed >> (8 * i))
	}
	src := rand.NewChaCha8(seed)
	g := &Generator{
		cfg:     cfg,
		clk:     clk,
		log:     log,
		src:     src,
		uniform: rand.New(src),
		gap:     distuv.Exponential{Rate: 1 / cfg.MeanInterval.Seconds(), Src: src},
	}
	if len(cfg.Regions) > 0 {
		w := make([]float64, len(cfg.Regions))
		for i, r := range cfg.Regions {
			w[i] = r.Weight
		}
		c := distuv.NewCategorical(w, src)
		g.region = &c
	}
	return g, nil
}

// Next draws the incident following after. Its creation time is strictly
// later than after, with millisecond resolution.
func (g *Generator) Next(after time.Time) model.Incident {
	g.mu.Lock()
	defer g.mu.Unlock()
	gap := time.Duration(g.gap.Rand() * float64(time.Second)).Round(time.Millisecond)
	if gap < time.Millisecond {
		gap = time.Millisecond
	}
	box := g.cfg.Area
	if g.region != nil {
		box = g.cfg.Regions[int(g.region.Rand())].Area
	}
	loc := model.Coordinate{
		Lat: box.MinLat + g.uniform.Float64()*(box.MaxLat-box.MinLat),
		Lon: box.MinLon + g.uniform.Float64()*(box.MaxLon-box.MinLon),
	}
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8 reads never fail.
		panic(err)
	}
	return model.Incident{
		ID:        id.String(),
		Location:  loc,
		CreatedAt: after.Add(gap),
		Status:    model.IncidentPending,
	}
}

// Start emits incidents to intake until ctx is done or Stop is called.
func (g *Generator) Start(ctx context.Context, intake Intake) error {
	if intake == nil {
		return errors.New("generator: nil intake")
	}
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if g.running {
		return ErrAlreadyRunning
	}
	g.running = true
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.loop(ctx, intake, g.stop, g.done)
	return nil
}

// Stop ends the emit loop and waits for it. Stopping an idle generator is a
// no-op; a stopped generator can be started again.
func (g *Generator) Stop() {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	if !g.running {
		return
	}
	close(g.stop)
	<-g.done
	g.running = false
}

// Running reports whether the emit loop is active.
func (g *Generator) Running() bool {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	return g.running
}

func (g *Generator) loop(ctx context.Context, intake Intake, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() { monitoring.Recover("generator", recover()) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	last := g.clk.Now()
	for {
		inc := g.Next(last)
		wait := inc.CreatedAt.Sub(last)
		t := g.clk.Timer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		inc.CreatedAt = g.clk.Now()
		last = inc.CreatedAt
		incidentsGenerated.Inc()
		lastEmit.Set(float64(inc.CreatedAt.Unix()))
		emitInterval.Observe(wait.Seconds())
		if g.log != nil {
			g.log.Debugw("incident generated", map[string]any{
				"incident_id": inc.ID,
				"lat":         inc.Location.Lat,
				"lon":         inc.Location.Lon,
			})
		}
		if err := intake.Submit(ctx, inc); err != nil {
			emitErrors.Inc()
			if ctx.Err() != nil {
				return
			}
			if g.log != nil {
				g.log.Warnf("incident %s not submitted: %v", inc.ID, err)
			}
		}
	}
}
