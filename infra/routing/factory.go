package routing

import (
	"github.com/kilianp07/emsdispatch/core/factory"
	corerouting "github.com/kilianp07/emsdispatch/core/routing"
)

var clientRegistry = factory.NewRegistry[corerouting.Client]()

// init registers built-in routing backends.
func init() {
	_ = Register("osrm", func(conf map[string]any) (corerouting.Client, error) {
		c, err := factory.DecodeAs[OSRMConfig](conf)
		if err != nil {
			return nil, err
		}
		return NewOSRMClient(c)
	})

	_ = Register("graphhopper", func(conf map[string]any) (corerouting.Client, error) {
		c, err := factory.DecodeAs[GraphHopperConfig](conf)
		if err != nil {
			return nil, err
		}
		return NewGraphHopperClient(c)
	})

	_ = Register("straight", func(conf map[string]any) (corerouting.Client, error) {
		var c struct {
			DetourFactor float64 `json:"detour_factor"`
			SpeedKMH     float64 `json:"speed_kmh"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return corerouting.StraightClient{DetourFactor: c.DetourFactor, SpeedKMH: c.SpeedKMH}, nil
	})
}

// Register adds a routing backend factory identified by name.
func Register(name string, f factory.Factory[corerouting.Client]) error {
	return clientRegistry.Register(name, f)
}

// Types lists the registered backends.
func Types() []string { return clientRegistry.Types() }

// NewClient builds the configured backend. An empty type selects "straight".
func NewClient(cfg factory.ModuleConfig) (corerouting.Client, error) {
	if cfg.Type == "" {
		cfg.Type = "straight"
	}
	return clientRegistry.Create(cfg)
}
