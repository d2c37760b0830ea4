package geosampler

import (
	"context"
	"errors"
	"sync"
	"time"

	httpclient "github.com/hirelocal/dispatch/internal/pkg/http"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// Sampler resolves positions through an ordered fallback chain: the precise
// device fix first, then network geolocation, then IP lookup. A permission
// denial stops the chain immediately.
type Sampler struct {
	sources []Source
	device  Device
	cfg     models.LocationConfig

	mu     sync.Mutex
	active *Watcher
}

// NewSampler builds a sampler with the standard fallback chain.
func NewSampler(device Device, cfg models.LocationConfig) *Sampler {
	sources := []Source{
		NewDeviceSource(device, time.Duration(cfg.DeviceTimeoutSeconds)*time.Second),
		NewNetworkSource(httpclient.NewClient(cfg.GeolocationURL, 0), cfg.GeolocationAPIKey),
		NewIPSource(httpclient.NewClient(cfg.IPLookupURL, 0)),
	}
	return &Sampler{sources: sources, device: device, cfg: cfg}
}

// NewSamplerWithSources builds a sampler over an explicit source chain.
func NewSamplerWithSources(device Device, cfg models.LocationConfig, sources ...Source) *Sampler {
	return &Sampler{sources: sources, device: device, cfg: cfg}
}

// StopWatch stops the active watch, if any. Safe to call from any goroutine
// and with no watch running.
func (s *Sampler) StopWatch() {
	s.mu.Lock()
	w := s.active
	s.active = nil
	s.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// RequestOneShot tries each source in order and returns the first usable fix.
// A DENIED failure is terminal: later sources are not consulted. When every
// source fails the last failure is returned.
func (s *Sampler) RequestOneShot(ctx context.Context) (*models.PositionSample, error) {
	var lastErr error

	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return nil, NewSampleError(FailureUnavailable, src.Name(), err)
		}

		sample, err := src.Attempt(ctx)
		if err == nil {
			if !sample.Coordinates.Valid() {
				err = NewSampleError(FailureUnavailable, src.Name(), errors.New("source returned out-of-range coordinates"))
			} else {
				if sample.Source == "" {
					sample.Source = src.Name()
				}
				return sample, nil
			}
		}

		if IsDenied(err) {
			logger.Warn("location access denied, aborting fallback chain",
				logger.String("source", string(src.Name())))
			return nil, err
		}

		logger.Debug("position source failed, trying next",
			logger.String("source", string(src.Name())),
			logger.Err(err))
		lastErr = err
	}

	if lastErr == nil {
		lastErr = NewSampleError(FailureUnavailable, "", errors.New("no position sources configured"))
	}
	return nil, lastErr
}
