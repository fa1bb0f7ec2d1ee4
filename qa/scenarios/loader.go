package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/emsdispatch/config"
)

// Expected bounds the outcome of a replay.
type Expected struct {
	MinIncidents int `yaml:"min_incidents"`
	MinServed    int `yaml:"min_served"`
	// MaxUnserved is ignored when negative.
	MaxUnserved int `yaml:"max_unserved"`
	// MaxMeanResponseS is ignored when zero.
	MaxMeanResponseS float64 `yaml:"max_mean_response_s"`
}

// Scenario is a replay with expectations on its summary.
type Scenario struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	Seed          uint64   `yaml:"seed"`
	DurationS     int      `yaml:"duration_s"`
	DrainS        int      `yaml:"drain_s"`
	FleetSize     int      `yaml:"fleet_size"`
	MeanIntervalS float64  `yaml:"mean_interval_s"`
	Workers       int      `yaml:"workers,omitempty"`
	Expected      Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := Scenario{Expected: Expected{MaxUnserved: -1}}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: name required", path)
	}
	return &sc, nil
}

// Config applies the scenario to the default configuration.
func (s Scenario) Config() (*config.Config, error) {
	cfg := config.Default()
	cfg.Simulation.Seed = s.Seed
	if s.DurationS > 0 {
		cfg.Simulation.ReplayDurationS = s.DurationS
	}
	cfg.Simulation.DrainTimeoutS = s.DrainS
	cfg.Fleet.Size = s.FleetSize
	if s.MeanIntervalS > 0 {
		cfg.Generator.MeanIntervalS = s.MeanIntervalS
	}
	if s.Workers > 0 {
		cfg.Dispatch.Workers = s.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
