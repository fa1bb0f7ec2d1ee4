// Package infra holds the adapters that connect the dispatch core to the
// outside: routing engines, MQTT, Redis and NATS event feeds, Prometheus and
// InfluxDB metrics, Sentry and the zerolog logger. Adapters implement the
// interfaces declared under core and are selected from configuration.
package infra
