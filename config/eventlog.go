package config

import "github.com/kilianp07/emsdispatch/core/factory"

// EventLogConfig lists the durable sinks fed by the event log, e.g.
// jsonl, rotating_jsonl, sqlite, mqtt, redis or nats.
type EventLogConfig struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

func (c EventLogConfig) Validate() error {
	return factory.ValidateModules("event_log.sinks", c.Sinks)
}
