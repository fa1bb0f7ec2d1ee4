package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/emsdispatch/core/generator"
	"github.com/kilianp07/emsdispatch/core/model"
)

// GeneratorConfig shapes the synthetic incident stream.
type GeneratorConfig struct {
	MeanIntervalS float64 `json:"mean_interval_s"`
	// Area overrides the scenario area when set.
	Area    *model.BoundingBox `json:"area"`
	Regions []generator.Region `json:"regions"`
}

// SetDefaults applies sane defaults.
func (c *GeneratorConfig) SetDefaults() {
	if c.MeanIntervalS == 0 {
		c.MeanIntervalS = generator.DefaultMeanInterval.Seconds()
	}
}

// Validate checks mandatory fields.
func (c GeneratorConfig) Validate() error {
	if c.MeanIntervalS <= 0 {
		return fmt.Errorf("generator.mean_interval_s must be positive")
	}
	if c.Area != nil {
		if err := c.Area.Validate(); err != nil {
			return fmt.Errorf("generator.area: %w", err)
		}
	}
	return nil
}

// Build returns the generator settings. The area falls back to fallback,
// typically the scenario area.
func (c GeneratorConfig) Build(seed uint64, fallback model.BoundingBox) generator.Config {
	area := fallback
	if c.Area != nil {
		area = *c.Area
	}
	return generator.Config{
		MeanInterval: time.Duration(c.MeanIntervalS * float64(time.Second)),
		Area:         area,
		Regions:      c.Regions,
		Seed:         seed,
	}
}
