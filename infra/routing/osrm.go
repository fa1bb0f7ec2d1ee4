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

// OSRMConfig configures the OSRM adapter.
type OSRMConfig struct {
	URL     string        `json:"url"`
	Profile string        `json:"profile"`
	Timeout time.Duration `json:"timeout"`
}

// OSRMClient queries the OSRM route service.
type OSRMClient struct {
	base    string
	profile string
	http    *http.Client
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry string  `json:"geometry"`
	} `json:"routes"`
}

// NewOSRMClient validates cfg and returns a client.
func NewOSRMClient(cfg OSRMConfig) (*OSRMClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("osrm: url required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("osrm: %w", err)
	}
	if cfg.Profile == "" {
		cfg.Profile = "driving"
	}
	return &OSRMClient{
		base:    strings.TrimSuffix(cfg.URL, "/"),
		profile: cfg.Profile,
		http:    newHTTPClient(cfg.Timeout),
	}, nil
}

// Backend implements routing.Named.
func (c *OSRMClient) Backend() string { return "osrm" }

// Route asks OSRM for the fastest road route. Coordinates go lon,lat on the wire.
func (c *OSRMClient) Route(ctx context.Context, from, to model.Coordinate) (model.Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=polyline",
		c.base, c.profile, from.Lon, from.Lat, to.Lon, to.Lat)
	var resp osrmResponse
	status, err := getJSON(ctx, c.http, endpoint, &resp)
	if err != nil {
		return model.Route{}, err
	}
	switch resp.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return model.Route{}, fmt.Errorf("%w: %s", corerouting.ErrNoRouteFound, resp.Message)
	default:
		return model.Route{}, corerouting.Unavailable(&apiError{Status: status, Message: resp.Code + " " + resp.Message})
	}
	if len(resp.Routes) == 0 {
		return model.Route{}, corerouting.ErrNoRouteFound
	}
	r := resp.Routes[0]
	path, err := decodePath(r.Geometry)
	if err != nil {
		return model.Route{}, corerouting.Unavailable(fmt.Errorf("geometry: %w", err))
	}
	return model.NewRoute(r.Distance, time.Duration(r.Duration*float64(time.Second)), path, false), nil
}
