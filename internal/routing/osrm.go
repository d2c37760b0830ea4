package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	httpclient "github.com/hirelocal/dispatch/internal/pkg/http"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// Route is a computed path between two points.
type Route struct {
	Path            []models.Coordinates
	DistanceMeters  float64
	DurationSeconds float64
	ComputedAt      time.Time
}

// Router computes a path between two points.
type Router interface {
	Route(ctx context.Context, from, to models.Coordinates) (*Route, error)
}

// OSRMClient performs route lookups against an OSRM HTTP server.
type OSRMClient struct {
	client *httpclient.Client
}

// NewOSRMClient creates a router backed by the given OSRM endpoint.
func NewOSRMClient(cfg models.RoutingConfig) *OSRMClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &OSRMClient{
		client: httpclient.NewClient(cfg.OSRMURL, timeout),
	}
}

// Route queries OSRM /route/v1/driving with full geojson geometry.
func (o *OSRMClient) Route(ctx context.Context, from, to models.Coordinates) (*Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.client.BaseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm returned status %d", resp.StatusCode)
	}

	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry struct {
				Coordinates []models.Coordinates `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, fmt.Errorf("osrm no route: %v", out.Code)
	}

	best := out.Routes[0]
	return &Route{
		Path:            best.Geometry.Coordinates,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
		ComputedAt:      time.Now(),
	}, nil
}
