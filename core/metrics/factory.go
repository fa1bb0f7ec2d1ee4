package metrics

import (
	"fmt"

	"github.com/kilianp07/emsdispatch/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewMetricsSink builds the configured sinks. No sinks yields a NopSink and
// several are combined in a MultiSink. Sinks built before a failing entry
// are closed.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			for _, built := range sinks {
				Close(built)
			}
			return nil, fmt.Errorf("metrics.sinks[%d] %s: %w", i, c.Type, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}

type closer interface {
	Close()
}

// Close releases s when it holds resources such as a client connection.
func Close(s MetricsSink) {
	if c, ok := s.(closer); ok {
		c.Close()
	}
}
