package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/emsdispatch/core/fleet"
)

// FleetConfig selects the scenario and vehicle behaviour.
type FleetConfig struct {
	// Scenario is a YAML or JSON file; empty uses the built-in Mumbai data.
	Scenario string `json:"scenario"`
	// Size resizes the scenario fleet when positive.
	Size     int     `json:"size"`
	SpeedKMH float64 `json:"speed_kmh"`
	OnSceneS float64 `json:"on_scene_s"`
	DropOffS float64 `json:"drop_off_s"`
}

// SetDefaults applies sane defaults.
func (c *FleetConfig) SetDefaults() {
	if c.SpeedKMH == 0 {
		c.SpeedKMH = fleet.DefaultSpeedKMH
	}
	if c.OnSceneS == 0 {
		c.OnSceneS = fleet.DefaultOnScene.Seconds()
	}
	if c.DropOffS == 0 {
		c.DropOffS = fleet.DefaultDropOff.Seconds()
	}
}

// Validate checks mandatory fields.
func (c FleetConfig) Validate() error {
	if c.Size < 0 {
		return fmt.Errorf("fleet.size must be >= 0")
	}
	if c.SpeedKMH <= 0 {
		return fmt.Errorf("fleet.speed_kmh must be positive")
	}
	if c.OnSceneS < 0 || c.DropOffS < 0 {
		return fmt.Errorf("fleet dwell times must be >= 0")
	}
	return nil
}

// LoadScenario returns the configured scenario resized to Size.
func (c FleetConfig) LoadScenario() (fleet.Scenario, error) {
	sc := fleet.DefaultScenario()
	if c.Scenario != "" {
		var err error
		if sc, err = fleet.LoadScenario(c.Scenario); err != nil {
			return fleet.Scenario{}, err
		}
	}
	sc.Vehicles = sc.Resize(c.Size)
	if sc.Area.IsZero() {
		sc.Area = fleet.MumbaiArea
	}
	return sc, nil
}

// Build converts the section to the fleet settings.
func (c FleetConfig) Build() fleet.Config {
	return fleet.Config{
		SpeedKMH: c.SpeedKMH,
		OnScene:  time.Duration(c.OnSceneS * float64(time.Second)),
		DropOff:  time.Duration(c.DropOffS * float64(time.Second)),
	}
}
