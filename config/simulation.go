package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/emsdispatch/core/sim"
)

// DefaultReplayEpoch is the simulated start of a replay when none is set.
const DefaultReplayEpoch = "2024-01-01T00:00:00Z"

// SimulationConfig controls time and randomness of a run.
type SimulationConfig struct {
	// Seed drives the incident generator. Zero in realtime mode picks one
	// from the wall clock.
	Seed uint64 `json:"seed"`
	// TimeScale is the number of simulated seconds per wall second.
	TimeScale      float64 `json:"time_scale"`
	TickIntervalMS int     `json:"tick_interval_ms"`
	// Epoch is the RFC3339 simulated start time. Empty uses the wall clock.
	Epoch           string `json:"epoch"`
	ReplayDurationS int    `json:"replay_duration_s"`
	DrainTimeoutS   int    `json:"drain_timeout_s"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.TimeScale == 0 {
		c.TimeScale = 1
	}
	if c.TickIntervalMS == 0 {
		c.TickIntervalMS = int(sim.DefaultTickInterval / time.Millisecond)
	}
	if c.ReplayDurationS == 0 {
		c.ReplayDurationS = 3600
	}
}

// Validate checks mandatory fields.
func (c SimulationConfig) Validate() error {
	if c.TimeScale < 1 {
		return fmt.Errorf("simulation.time_scale must be >= 1")
	}
	if c.TickIntervalMS < 1 {
		return fmt.Errorf("simulation.tick_interval_ms must be positive")
	}
	if c.ReplayDurationS < 1 {
		return fmt.Errorf("simulation.replay_duration_s must be positive")
	}
	if c.DrainTimeoutS < 0 {
		return fmt.Errorf("simulation.drain_timeout_s must be >= 0")
	}
	if _, err := c.EpochTime(); err != nil {
		return err
	}
	return nil
}

// EpochTime parses Epoch; the zero time means "now".
func (c SimulationConfig) EpochTime() (time.Time, error) {
	if c.Epoch == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("simulation.epoch: %w", err)
	}
	return t, nil
}

// ReplayEpoch is the start of a replay: Epoch or DefaultReplayEpoch.
func (c SimulationConfig) ReplayEpoch() time.Time {
	if t, err := c.EpochTime(); err == nil && !t.IsZero() {
		return t
	}
	t, _ := time.Parse(time.RFC3339, DefaultReplayEpoch)
	return t
}

// ReplayDuration returns the simulated length of a replay.
func (c SimulationConfig) ReplayDuration() time.Duration {
	return time.Duration(c.ReplayDurationS) * time.Second
}

// Engine converts the section to the engine settings.
func (c SimulationConfig) Engine() sim.Config {
	return sim.Config{
		TickInterval: time.Duration(c.TickIntervalMS) * time.Millisecond,
		DrainTimeout: time.Duration(c.DrainTimeoutS) * time.Second,
	}
}
