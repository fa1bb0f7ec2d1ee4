package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/emsdispatch/core/routing"
)

const (
	DefaultRoutingTimeout = 2 * time.Second
	DefaultWorkers        = 1
	DefaultQueueSize      = 64
)

// Config defines dispatch-related settings.
type Config struct {
	TopK             int     `json:"top_k"`
	RoutingTimeoutMS int     `json:"routing_timeout_ms"`
	Workers          int     `json:"workers"`
	QueueSize        int     `json:"queue_size"`
	FallbackSpeedKMH float64 `json:"fallback_speed_kmh"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = routing.DefaultTopK
	}
	if c.RoutingTimeoutMS == 0 {
		c.RoutingTimeoutMS = int(DefaultRoutingTimeout / time.Millisecond)
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.FallbackSpeedKMH == 0 {
		c.FallbackSpeedKMH = routing.DefaultFallbackSpeedKMH
	}
}

// Validate checks the settings are usable.
func (c Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("dispatch.top_k must be positive")
	}
	if c.RoutingTimeoutMS < 1 {
		return fmt.Errorf("dispatch.routing_timeout_ms must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("dispatch.workers must be positive")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("dispatch.queue_size must be positive")
	}
	if c.FallbackSpeedKMH <= 0 {
		return fmt.Errorf("dispatch.fallback_speed_kmh must be positive")
	}
	return nil
}

// RoutingTimeout returns the per-decision routing budget.
func (c Config) RoutingTimeout() time.Duration {
	return time.Duration(c.RoutingTimeoutMS) * time.Millisecond
}
