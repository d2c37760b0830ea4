package geosampler

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// SimulatedDevice is a Device that walks a straight line at a fixed speed.
// It backs the demo agents and lets tests drive the watch path without
// hardware.
type SimulatedDevice struct {
	interval time.Duration
	stepLon  float64
	stepLat  float64

	mu      sync.Mutex
	current models.Coordinates
	heading float64
	release func()
}

// NewSimulatedDevice creates a device starting at start and moving along
// headingDegrees at roughly speedMetersPerSec, reporting every interval.
func NewSimulatedDevice(start models.Coordinates, headingDegrees, speedMetersPerSec float64, interval time.Duration) *SimulatedDevice {
	// Meters per degree at the equator; longitude shrinks with latitude.
	const metersPerDegree = 111320.0
	rad := headingDegrees * math.Pi / 180
	stepMeters := speedMetersPerSec * interval.Seconds()
	latScale := math.Cos(start.Latitude * math.Pi / 180)
	if latScale == 0 {
		latScale = 1e-9
	}

	return &SimulatedDevice{
		interval: interval,
		stepLat:  stepMeters * math.Cos(rad) / metersPerDegree,
		stepLon:  stepMeters * math.Sin(rad) / (metersPerDegree * latScale),
		current:  start,
		heading:  headingDegrees,
	}
}

func (d *SimulatedDevice) snapshot() *models.PositionSample {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &models.PositionSample{
		Coordinates: d.current,
		Accuracy:    5,
		Source:      models.SourceDevice,
		CapturedAt:  time.Now(),
	}
}

func (d *SimulatedDevice) advance() {
	d.mu.Lock()
	d.current.Longitude += d.stepLon
	d.current.Latitude += d.stepLat
	d.mu.Unlock()
}

// CurrentPosition returns the simulated position immediately.
func (d *SimulatedDevice) CurrentPosition(ctx context.Context) (*models.PositionSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.snapshot(), nil
}

// WatchPosition reports the walk at the configured interval until released.
func (d *SimulatedDevice) WatchPosition(onSample func(*models.PositionSample), onError func(error)) (func(), error) {
	done := make(chan struct{})
	var once sync.Once
	release := func() { once.Do(func() { close(done) }) }

	d.mu.Lock()
	prior := d.release
	d.release = release
	d.mu.Unlock()
	if prior != nil {
		prior()
	}

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				d.advance()
				onSample(d.snapshot())
			}
		}
	}()

	return release, nil
}
