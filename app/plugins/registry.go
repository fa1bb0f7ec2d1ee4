// Package plugins builds the durable event log sinks named in the
// configuration.
package plugins

import (
	"errors"
	"fmt"

	"github.com/kilianp07/emsdispatch/core/eventlog"
	"github.com/kilianp07/emsdispatch/core/factory"
)

var eventSinks = factory.NewRegistry[eventlog.Sink]()

// RegisterEventSink adds an event sink factory identified by name.
func RegisterEventSink(name string, f factory.Factory[eventlog.Sink]) error {
	return eventSinks.Register(name, f)
}

// EventSinkTypes lists the registered sink types.
func EventSinkTypes() []string { return eventSinks.Types() }

// NewEventSinks builds every configured sink. On failure the sinks already
// built are closed.
func NewEventSinks(cfgs []factory.ModuleConfig) ([]eventlog.Sink, error) {
	sinks := make([]eventlog.Sink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := eventSinks.Create(c)
		if err != nil {
			cerr := CloseAll(sinks)
			return nil, errors.Join(fmt.Errorf("event_log.sinks[%d] %s: %w", i, c.Type, err), cerr)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// CloseAll closes every sink and joins the errors.
func CloseAll(sinks []eventlog.Sink) error {
	var errs []error
	for _, s := range sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
