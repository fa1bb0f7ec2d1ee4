package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/emsdispatch/core/dispatch"
	"github.com/kilianp07/emsdispatch/core/factory"
	"github.com/kilianp07/emsdispatch/core/metrics"
)

// EnvPrefix starts every environment override, e.g. K_DISPATCH__TOP_K=5.
const EnvPrefix = "K_"

type Config struct {
	Simulation SimulationConfig     `json:"simulation"`
	Generator  GeneratorConfig      `json:"generator"`
	Fleet      FleetConfig          `json:"fleet"`
	Dispatch   dispatch.Config      `json:"dispatch"`
	Routing    factory.ModuleConfig `json:"routing"`
	EventLog   EventLogConfig       `json:"event_log"`
	Metrics    metrics.Config       `json:"metrics"`
	API        APIConfig            `json:"api"`
	Sentry     SentryConfig         `json:"sentry"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads a YAML or JSON file, applies environment overrides, fills
// defaults and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Generator.SetDefaults()
	c.Fleet.SetDefaults()
	c.Dispatch.SetDefaults()
	if c.Routing.Type == "" {
		c.Routing.Type = "straight"
	}
	c.API.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section and joins the errors.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs,
		c.Simulation.Validate(),
		c.Generator.Validate(),
		c.Fleet.Validate(),
		c.Dispatch.Validate(),
		c.EventLog.Validate(),
		c.API.Validate(),
		c.Sentry.Validate(),
		factory.ValidateModules("metrics.sinks", c.Metrics.Sinks),
	)
	return errors.Join(errs...)
}
