// Package routing holds the HTTP adapters to the road routing engines and the
// registry building a routing.Client from a module configuration.
package routing
