// Package metrics defines the sinks recording incident outcomes and vehicle
// transitions. Implementations such as PromSink and InfluxSink live in
// infra/metrics and register themselves by type; NewMetricsSink returns a
// MultiSink when several are configured. A collector feeds the sinks from
// the event log.
package metrics
