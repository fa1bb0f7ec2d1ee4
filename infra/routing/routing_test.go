package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/emsdispatch/core/factory"
	"github.com/kilianp07/emsdispatch/core/model"
	corerouting "github.com/kilianp07/emsdispatch/core/routing"
)

var (
	origin = model.Coordinate{Lat: 19.0760, Lon: 72.8777}
	dest   = model.Coordinate{Lat: 19.0176, Lon: 72.8562}
	middle = model.Coordinate{Lat: 19.05, Lon: 72.87}
)

func jsonServer(t *testing.T, status int, body any, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOSRMRoute(t *testing.T) {
	geometry := encodePath([]model.Coordinate{origin, middle, dest})
	srv := jsonServer(t, http.StatusOK, map[string]any{
		"code":   "Ok",
		"routes": []map[string]any{{"distance": 8123.4, "duration": 612.5, "geometry": geometry}},
	}, func(r *http.Request) {
		assert.Equal(t, "/route/v1/driving/72.877700,19.076000;72.856200,19.017600", r.URL.Path)
		assert.Equal(t, "polyline", r.URL.Query().Get("geometries"))
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
	})
	c, err := NewOSRMClient(OSRMConfig{URL: srv.URL + "/"})
	require.NoError(t, err)

	r, err := c.Route(context.Background(), origin, dest)
	require.NoError(t, err)
	assert.Equal(t, 8123.4, r.DistanceM)
	assert.Equal(t, 612500*time.Millisecond, r.Duration)
	assert.False(t, r.Degraded)
	require.Len(t, r.Path, 3)
	assert.InDelta(t, middle.Lat, r.Path[1].Lat, 1e-5)
	assert.InDelta(t, middle.Lon, r.Path[1].Lon, 1e-5)
}

func TestOSRMNoRoute(t *testing.T) {
	srv := jsonServer(t, http.StatusBadRequest, map[string]any{"code": "NoRoute", "message": "Impossible route"}, nil)
	c, err := NewOSRMClient(OSRMConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Route(context.Background(), origin, dest)
	assert.ErrorIs(t, err, corerouting.ErrNoRouteFound)
}

func TestOSRMServerErrorIsUnavailable(t *testing.T) {
	srv := jsonServer(t, http.StatusBadGateway, map[string]any{}, nil)
	c, err := NewOSRMClient(OSRMConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Route(context.Background(), origin, dest)
	assert.ErrorIs(t, err, corerouting.ErrRoutingUnavailable)
}

func TestOSRMUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, err := NewOSRMClient(OSRMConfig{URL: url})
	require.NoError(t, err)
	_, err = c.Route(context.Background(), origin, dest)
	assert.ErrorIs(t, err, corerouting.ErrRoutingUnavailable)
}

func TestGraphHopperRoute(t *testing.T) {
	points := encodePath([]model.Coordinate{origin, dest})
	srv := jsonServer(t, http.StatusOK, map[string]any{
		"paths": []map[string]any{{"distance": 9000.0, "time": 720000, "points": points}},
	}, func(r *http.Request) {
		assert.Equal(t, "/route", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, []string{"19.076000,72.877700", "19.017600,72.856200"}, q["point"])
		assert.Equal(t, "car", q.Get("profile"))
		assert.Equal(t, "secret", q.Get("key"))
	})
	c, err := NewGraphHopperClient(GraphHopperConfig{URL: srv.URL, Key: "secret"})
	require.NoError(t, err)

	r, err := c.Route(context.Background(), origin, dest)
	require.NoError(t, err)
	assert.Equal(t, 9000.0, r.DistanceM)
	assert.Equal(t, 12*time.Minute, r.Duration)
	require.Len(t, r.Path, 2)
	assert.InDelta(t, dest.Lat, r.Path[1].Lat, 1e-5)
}

func TestGraphHopperPointNotFound(t *testing.T) {
	srv := jsonServer(t, http.StatusBadRequest, map[string]any{"message": "Cannot find point 0"}, nil)
	c, err := NewGraphHopperClient(GraphHopperConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Route(context.Background(), origin, dest)
	assert.ErrorIs(t, err, corerouting.ErrNoRouteFound)
}

func TestGraphHopperRateLimitedIsUnavailable(t *testing.T) {
	srv := jsonServer(t, http.StatusTooManyRequests, map[string]any{"message": "limit"}, nil)
	c, err := NewGraphHopperClient(GraphHopperConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Route(context.Background(), origin, dest)
	assert.ErrorIs(t, err, corerouting.ErrRoutingUnavailable)
}

func TestContextDeadlineIsUnavailable(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	c, err := NewOSRMClient(OSRMConfig{URL: srv.URL})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Route(ctx, origin, dest)
	assert.ErrorIs(t, err, corerouting.ErrRoutingUnavailable)
}

func TestNewClientFromConfig(t *testing.T) {
	assert.Equal(t, []string{"graphhopper", "osrm", "straight"}, Types())

	c, err := NewClient(factory.ModuleConfig{})
	require.NoError(t, err)
	assert.Equal(t, "straight", corerouting.BackendName(c))

	c, err = NewClient(factory.ModuleConfig{Type: "osrm", Conf: map[string]any{"url": "http://osrm:5000", "timeout": "3s"}})
	require.NoError(t, err)
	osrm, ok := c.(*OSRMClient)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, osrm.http.Timeout)
	assert.Equal(t, "driving", osrm.profile)

	_, err = NewClient(factory.ModuleConfig{Type: "graphhopper"})
	assert.Error(t, err, "url is required")

	_, err = NewClient(factory.ModuleConfig{Type: "valhalla"})
	assert.Error(t, err)
}

func TestPathCodecRoundTrip(t *testing.T) {
	path, err := decodePath(encodePath([]model.Coordinate{origin, middle, dest}))
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.InDelta(t, origin.Lon, path[0].Lon, 1e-5)

	path, err = decodePath("")
	require.NoError(t, err)
	assert.Empty(t, path)
}
