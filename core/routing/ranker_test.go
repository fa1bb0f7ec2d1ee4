package routing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/core/model"
)

var (
	incident = model.Coordinate{Lat: 19.080, Lon: 72.880}
	baseA    = model.Coordinate{Lat: 19.085, Lon: 72.880}
	baseB    = model.Coordinate{Lat: 19.070, Lon: 72.880}
	baseC    = model.Coordinate{Lat: 19.140, Lon: 72.900}
)

// byOrigin answers with a fixed road distance per origin.
func byOrigin(dist map[model.Coordinate]float64) Client {
	return ClientFunc(func(_ context.Context, from, to model.Coordinate) (model.Route, error) {
		d, ok := dist[from]
		if !ok {
			return model.Route{}, ErrNoRouteFound
		}
		return model.NewRoute(d, time.Duration(d)*time.Millisecond, []model.Coordinate{from, to}, false), nil
	})
}

func TestRankRoutedDistanceOverridesHaversine(t *testing.T) {
	r := Ranker{Client: byOrigin(map[model.Coordinate]float64{baseA: 5000, baseB: 1500}), TopK: 3}
	out := r.Rank(context.Background(), []Candidate{
		{ID: "A", From: baseA, To: incident},
		{ID: "B", From: baseB, To: incident},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].ID)
	assert.True(t, out[0].Routed)
	assert.Equal(t, 1500.0, out[0].Route.DistanceM)
}

func TestRankAllFailuresUseHaversineOrder(t *testing.T) {
	r := Ranker{Client: FailingClient{}, TopK: 3}
	out := r.Rank(context.Background(), []Candidate{
		{ID: "C", From: baseC, To: incident},
		{ID: "B", From: baseB, To: incident},
		{ID: "A", From: baseA, To: incident},
	})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{out[0].ID, out[1].ID, out[2].ID})
	for _, c := range out {
		assert.False(t, c.Routed)
		assert.True(t, c.Route.Degraded)
		assert.Len(t, c.Route.Path, 2)
		assert.True(t, errors.Is(c.Err, ErrRoutingUnavailable))
	}
}

func TestRankSuccessesBeforeFailures(t *testing.T) {
	r := Ranker{Client: byOrigin(map[model.Coordinate]float64{baseC: 9000})}
	out := r.Rank(context.Background(), []Candidate{
		{ID: "A", From: baseA, To: incident},
		{ID: "C", From: baseC, To: incident},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "C", out[0].ID)
	assert.Equal(t, "A", out[1].ID)
}

func TestRankTieBrokenByLowerID(t *testing.T) {
	same := model.Coordinate{Lat: 19.09, Lon: 72.88}
	r := Ranker{Client: StraightClient{}}
	out := r.Rank(context.Background(), []Candidate{
		{ID: "EV_2", From: same, To: incident},
		{ID: "EV_1", From: same, To: incident},
	})
	assert.Equal(t, "EV_1", out[0].ID)
}

func TestRankQueriesOnlyTopK(t *testing.T) {
	var calls atomic.Int32
	client := ClientFunc(func(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
		calls.Add(1)
		return StraightClient{}.Route(ctx, from, to)
	})
	r := Ranker{Client: client, TopK: 2}
	out := r.Rank(context.Background(), []Candidate{
		{ID: "A", From: baseA, To: incident},
		{ID: "B", From: baseB, To: incident},
		{ID: "C", From: baseC, To: incident},
	})
	assert.Len(t, out, 2)
	assert.EqualValues(t, 2, calls.Load())
	for _, c := range out {
		assert.NotEqual(t, "C", c.ID)
	}
}

func TestRankTimeoutFallsBack(t *testing.T) {
	slow := ClientFunc(func(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
		<-ctx.Done()
		return model.Route{}, ctx.Err()
	})
	r := Ranker{Client: slow, Timeout: 20 * time.Millisecond}
	start := time.Now()
	out := r.Rank(context.Background(), []Candidate{{ID: "A", From: baseA, To: incident}})
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, out, 1)
	assert.False(t, out[0].Routed)
	assert.True(t, errors.Is(out[0].Err, ErrRoutingUnavailable))
}

func TestRankEmpty(t *testing.T) {
	assert.Nil(t, Ranker{}.Rank(context.Background(), nil))
}

func TestResolveFallback(t *testing.T) {
	r, ok := Resolve(context.Background(), FailingClient{Err: ErrNoRouteFound}, baseA, incident, time.Second, 36)
	assert.False(t, ok)
	assert.True(t, r.Degraded)
	assert.Equal(t, []model.Coordinate{baseA, incident}, r.Path)
	// 36 km/h is 10 m/s.
	assert.InDelta(t, r.DistanceM/10, r.Duration.Seconds(), 1e-6)

	r, ok = Resolve(context.Background(), StraightClient{DetourFactor: 1.3}, baseA, incident, time.Second, 0)
	assert.True(t, ok)
	assert.False(t, r.Degraded)
}

func TestResolvePadsShortPath(t *testing.T) {
	client := ClientFunc(func(context.Context, model.Coordinate, model.Coordinate) (model.Route, error) {
		return model.Route{DistanceM: 10}, nil
	})
	r, ok := Resolve(context.Background(), client, baseA, incident, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, []model.Coordinate{baseA, incident}, r.Path)
}

func TestMetricsRecorded(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)

	Resolve(context.Background(), StraightClient{}, baseA, incident, 0, 0)
	Resolve(context.Background(), FailingClient{Err: ErrNoRouteFound}, baseA, incident, 0, 0)
	Resolve(context.Background(), FailingClient{}, baseA, incident, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(routingRequests.WithLabelValues("straight", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(routingRequests.WithLabelValues("custom", "no_route")))
	assert.Equal(t, 1.0, testutil.ToFloat64(routingRequests.WithLabelValues("custom", "unavailable")))
}

// deaf ignores its context and answers after d.
func deaf(d time.Duration) Client {
	return ClientFunc(func(_ context.Context, from, to model.Coordinate) (model.Route, error) {
		time.Sleep(d)
		return StraightClient{}.Route(context.Background(), from, to)
	})
}

func TestRankStopsWaitingForClientIgnoringContext(t *testing.T) {
	r := Ranker{Client: deaf(time.Second), Timeout: 50 * time.Millisecond}
	start := time.Now()
	out := r.Rank(context.Background(), []Candidate{
		{ID: "A", From: baseA, To: incident},
		{ID: "B", From: baseB, To: incident},
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, out, 2)
	for _, c := range out {
		assert.False(t, c.Routed, c.ID)
		assert.True(t, c.Route.Degraded)
		assert.ErrorIs(t, c.Err, ErrRoutingUnavailable)
	}
	assert.Equal(t, "A", out[0].ID)
}

func TestResolveStopsWaitingForClientIgnoringContext(t *testing.T) {
	start := time.Now()
	r, ok := Resolve(context.Background(), deaf(time.Second), baseA, incident, 50*time.Millisecond, 0)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, ok)
	assert.True(t, r.Degraded)
}
