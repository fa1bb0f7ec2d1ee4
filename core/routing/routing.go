// Package routing defines the contract with the external routing engine and
// the straight-line fallback used whenever the engine cannot answer.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/emsdispatch/core/geo"
	"github.com/kilianp07/emsdispatch/core/model"
)

var (
	// ErrRoutingUnavailable is returned when the engine cannot be reached or
	// does not answer in time.
	ErrRoutingUnavailable = errors.New("routing unavailable")
	// ErrNoRouteFound is returned when the engine has no path between the points.
	ErrNoRouteFound = errors.New("no route found")
)

// DefaultFallbackSpeedKMH is the speed used to estimate straight-line durations.
const DefaultFallbackSpeedKMH = 40.0

// Client resolves road routes between two coordinates.
type Client interface {
	Route(ctx context.Context, from, to model.Coordinate) (model.Route, error)
}

// Named is implemented by clients reporting their backend name in metrics.
type Named interface {
	Backend() string
}

// BackendName returns the metrics label of client.
func BackendName(client Client) string {
	if n, ok := client.(Named); ok {
		return n.Backend()
	}
	return "custom"
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, from, to model.Coordinate) (model.Route, error)

func (f ClientFunc) Route(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
	return f(ctx, from, to)
}

// StraightLine synthesizes a two-point route using the haversine distance.
func StraightLine(from, to model.Coordinate, speedKMH float64) model.Route {
	if speedKMH <= 0 {
		speedKMH = DefaultFallbackSpeedKMH
	}
	d := geo.Haversine(from, to)
	dur := time.Duration(d / (speedKMH / 3.6) * float64(time.Second))
	return model.NewRoute(d, dur, []model.Coordinate{from, to}, true)
}

// Unavailable wraps err as ErrRoutingUnavailable.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRoutingUnavailable, err)
}

// IsRoutingFailure reports whether err is one of the two recoverable routing errors.
func IsRoutingFailure(err error) bool {
	return errors.Is(err, ErrRoutingUnavailable) || errors.Is(err, ErrNoRouteFound)
}

// Resolve queries client once with the given timeout and falls back to the
// straight line on any failure. The boolean reports whether the engine answered.
func Resolve(ctx context.Context, client Client, from, to model.Coordinate, timeout time.Duration, speedKMH float64) (model.Route, bool) {
	if client == nil {
		return StraightLine(from, to, speedKMH), false
	}
	qctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	r, err := queryWithin(qctx, client, from, to)
	if err != nil {
		return StraightLine(from, to, speedKMH), false
	}
	return r, true
}

// queryWithin stops waiting when ctx is done, even if the client ignores
// ctx. A late answer is dropped.
func queryWithin(ctx context.Context, client Client, from, to model.Coordinate) (model.Route, error) {
	type answer struct {
		route model.Route
		err   error
	}
	done := make(chan answer, 1)
	go func() {
		r, err := query(ctx, client, from, to)
		done <- answer{r, err}
	}()
	select {
	case a := <-done:
		return a.route, a.err
	case <-ctx.Done():
		select {
		case a := <-done:
			return a.route, a.err
		default:
		}
		return model.Route{}, Unavailable(ctx.Err())
	}
}

// query calls the client and normalizes its answer. Context errors and
// unclassified errors are reported as ErrRoutingUnavailable.
func query(ctx context.Context, client Client, from, to model.Coordinate) (model.Route, error) {
	start := time.Now()
	r, err := client.Route(ctx, from, to)
	observe(BackendName(client), time.Since(start), err)
	if err != nil {
		if !IsRoutingFailure(err) {
			err = Unavailable(err)
		}
		return model.Route{}, err
	}
	if len(r.Path) < 2 {
		// Movement needs at least both endpoints.
		r = model.NewRoute(r.DistanceM, r.Duration, []model.Coordinate{from, to}, r.Degraded)
	}
	return r, nil
}
