package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/emsdispatch/core/model"
	corerouting "github.com/kilianp07/emsdispatch/core/routing"
)

// GraphHopperConfig configures the GraphHopper adapter.
type GraphHopperConfig struct {
	URL     string        `json:"url"`
	Profile string        `json:"profile"`
	Key     string        `json:"key"`
	Timeout time.Duration `json:"timeout"`
}

// GraphHopperClient queries the GraphHopper /route endpoint.
type GraphHopperClient struct {
	base    string
	profile string
	key     string
	http    *http.Client
}

type ghResponse struct {
	Message string `json:"message"`
	Paths   []struct {
		Distance float64 `json:"distance"`
		// Time is in milliseconds.
		Time   int64  `json:"time"`
		Points string `json:"points"`
	} `json:"paths"`
}

// NewGraphHopperClient validates cfg and returns a client.
func NewGraphHopperClient(cfg GraphHopperConfig) (*GraphHopperClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("graphhopper: url required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("graphhopper: %w", err)
	}
	if cfg.Profile == "" {
		cfg.Profile = "car"
	}
	return &GraphHopperClient{
		base:    strings.TrimSuffix(cfg.URL, "/"),
		profile: cfg.Profile,
		key:     cfg.Key,
		http:    newHTTPClient(cfg.Timeout),
	}, nil
}

// Backend implements routing.Named.
func (c *GraphHopperClient) Backend() string { return "graphhopper" }

// Route asks GraphHopper for a car route between the two points.
func (c *GraphHopperClient) Route(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
	q := url.Values{}
	q.Add("point", fmt.Sprintf("%.6f,%.6f", from.Lat, from.Lon))
	q.Add("point", fmt.Sprintf("%.6f,%.6f", to.Lat, to.Lon))
	q.Set("profile", c.profile)
	q.Set("points_encoded", "true")
	q.Set("instructions", "false")
	q.Set("calc_points", "true")
	if c.key != "" {
		q.Set("key", c.key)
	}
	var resp ghResponse
	status, err := getJSON(ctx, c.http, c.base+"/route?"+q.Encode(), &resp)
	if err != nil {
		return model.Route{}, err
	}
	if status != http.StatusOK {
		if status == http.StatusBadRequest {
			// Points off the graph or disconnected components.
			return model.Route{}, fmt.Errorf("%w: %s", corerouting.ErrNoRouteFound, resp.Message)
		}
		return model.Route{}, corerouting.Unavailable(&apiError{Status: status, Message: resp.Message})
	}
	if len(resp.Paths) == 0 {
		return model.Route{}, corerouting.ErrNoRouteFound
	}
	p := resp.Paths[0]
	path, err := decodePath(p.Points)
	if err != nil {
		return model.Route{}, corerouting.Unavailable(fmt.Errorf("points: %w", err))
	}
	return model.NewRoute(p.Distance, time.Duration(p.Time)*time.Millisecond, path, false), nil
}
