package geosampler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpclient "github.com/hirelocal/dispatch/internal/pkg/http"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// Device is the platform positioning capability (a GPS bridge, a mobile shim
// or a simulator). Implementations classify their failures with SampleError.
type Device interface {
	// CurrentPosition returns a fresh fix, never a cached one.
	CurrentPosition(ctx context.Context) (*models.PositionSample, error)
	// WatchPosition starts continuous reporting at device cadence and returns
	// a release function for the underlying resource.
	WatchPosition(onSample func(*models.PositionSample), onError func(error)) (func(), error)
}

// Source is one strategy for obtaining a single position fix. Sources are
// tried in strict sequence by the sampler; no parallel racing.
type Source interface {
	Name() models.PositionSource
	Attempt(ctx context.Context) (*models.PositionSample, error)
}

// DeviceSource asks the device for a precise fix within a bounded wait.
type DeviceSource struct {
	device  Device
	timeout time.Duration
}

// NewDeviceSource creates the device-precise source.
func NewDeviceSource(device Device, timeout time.Duration) *DeviceSource {
	return &DeviceSource{device: device, timeout: timeout}
}

func (s *DeviceSource) Name() models.PositionSource {
	return models.SourceDevice
}

func (s *DeviceSource) Attempt(ctx context.Context) (*models.PositionSample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sample, err := s.device.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewSampleError(FailureTimeout, models.SourceDevice, err)
		}
		var se *SampleError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, NewSampleError(FailureUnavailable, models.SourceDevice, err)
	}
	return sample, nil
}

// NetworkSource queries a network-based coarse geolocation service.
type NetworkSource struct {
	client *httpclient.Client
	apiKey string
}

// NewNetworkSource creates the network geolocation source over a client bound
// to the service URL.
func NewNetworkSource(client *httpclient.Client, apiKey string) *NetworkSource {
	return &NetworkSource{client: client, apiKey: apiKey}
}

func (s *NetworkSource) Name() models.PositionSource {
	return models.SourceNetwork
}

func (s *NetworkSource) Attempt(ctx context.Context) (*models.PositionSample, error) {
	if s.client.BaseURL == "" {
		return nil, NewSampleError(FailureUnavailable, models.SourceNetwork, errors.New("geolocation service not configured"))
	}

	body, _ := json.Marshal(map[string]interface{}{"considerIp": true})
	url := s.client.BaseURL
	if s.apiKey != "" {
		url = fmt.Sprintf("%s?key=%s", s.client.BaseURL, s.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewSampleError(FailureUnavailable, models.SourceNetwork,
			fmt.Errorf("geolocation service returned status %d", resp.StatusCode))
	}

	var out struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		Accuracy float64 `json:"accuracy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceNetwork, err)
	}

	return &models.PositionSample{
		Coordinates: models.Coordinates{Longitude: out.Location.Lng, Latitude: out.Location.Lat},
		Accuracy:    out.Accuracy,
		Source:      models.SourceNetwork,
		CapturedAt:  time.Now(),
	}, nil
}

// IPSource resolves a very coarse position from the caller's IP address.
type IPSource struct {
	client *httpclient.Client
}

// ipAccuracyMeters reflects the typical ~10km accuracy of IP geolocation.
const ipAccuracyMeters = 10000

// NewIPSource creates the IP-based fallback source over a client bound to the
// lookup URL.
func NewIPSource(client *httpclient.Client) *IPSource {
	return &IPSource{client: client}
}

func (s *IPSource) Name() models.PositionSource {
	return models.SourceIP
}

func (s *IPSource) Attempt(ctx context.Context) (*models.PositionSample, error) {
	if s.client.BaseURL == "" {
		return nil, NewSampleError(FailureUnavailable, models.SourceIP, errors.New("ip lookup service not configured"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.client.BaseURL, nil)
	if err != nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceIP, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceIP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewSampleError(FailureUnavailable, models.SourceIP,
			fmt.Errorf("ip lookup returned status %d", resp.StatusCode))
	}

	var out struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceIP, err)
	}
	if out.Latitude == nil || out.Longitude == nil {
		return nil, NewSampleError(FailureUnavailable, models.SourceIP, errors.New("ip lookup returned no coordinates"))
	}

	return &models.PositionSample{
		Coordinates: models.Coordinates{Longitude: *out.Longitude, Latitude: *out.Latitude},
		Accuracy:    ipAccuracyMeters,
		Source:      models.SourceIP,
		CapturedAt:  time.Now(),
	}, nil
}
