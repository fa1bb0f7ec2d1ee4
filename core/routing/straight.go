package routing

import (
	"context"
	"time"

	"github.com/kilianp07/emsdispatch/core/geo"
	"github.com/kilianp07/emsdispatch/core/model"
)

// StraightClient is a deterministic Client answering with the haversine
// distance scaled by DetourFactor over a two-point path. It stands in for the
// routing engine in replays and tests.
type StraightClient struct {
	DetourFactor float64
	SpeedKMH     float64
}

// Backend implements Named.
func (StraightClient) Backend() string { return "straight" }

func (s StraightClient) Route(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
	if err := ctx.Err(); err != nil {
		return model.Route{}, Unavailable(err)
	}
	f := s.DetourFactor
	if f <= 0 {
		f = 1
	}
	speed := s.SpeedKMH
	if speed <= 0 {
		speed = DefaultFallbackSpeedKMH
	}
	d := geo.Haversine(from, to) * f
	dur := time.Duration(d / (speed / 3.6) * float64(time.Second))
	return model.NewRoute(d, dur, []model.Coordinate{from, to}, false), nil
}

// FailingClient always fails with Err, ErrRoutingUnavailable by default.
type FailingClient struct{ Err error }

func (f FailingClient) Route(context.Context, model.Coordinate, model.Coordinate) (model.Route, error) {
	if f.Err != nil {
		return model.Route{}, f.Err
	}
	return model.Route{}, ErrRoutingUnavailable
}
