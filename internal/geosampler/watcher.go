package geosampler

import (
	"errors"
	"sync"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/pkg/observability"
	"github.com/hirelocal/dispatch/internal/utils"
)

// Watcher is a running continuous-position subscription. Raw device samples
// arrive at device cadence; only significant ones reach the callback.
type Watcher struct {
	onSample func(models.PositionSample)
	onError  func(error)

	minDisplacement float64
	maxStaleness    time.Duration

	mu            sync.Mutex
	stopped       bool
	release       func()
	lastForwarded *models.PositionSample
	forwardedAt   time.Time
}

// Watch starts continuous position reporting. A sample is forwarded when it
// is the first, when it moved more than the displacement threshold from the
// last forwarded sample, or when the last forward is older than the staleness
// bound. Starting a new watch replaces any active one so the device resource
// is never held twice.
func (s *Sampler) Watch(onSample func(models.PositionSample), onError func(error)) (*Watcher, error) {
	w := &Watcher{
		onSample:        onSample,
		onError:         onError,
		minDisplacement: s.cfg.MinDisplacementMeters,
		maxStaleness:    time.Duration(s.cfg.MaxStalenessSeconds) * time.Second,
	}

	release, err := s.device.WatchPosition(w.handleSample, w.handleError)
	if err != nil {
		var se *SampleError
		if !errors.As(err, &se) {
			err = NewSampleError(FailureUnavailable, models.SourceDevice, err)
		}
		return nil, err
	}
	w.release = release

	s.mu.Lock()
	prior := s.active
	s.active = w
	s.mu.Unlock()

	if prior != nil {
		logger.Warn("replacing active position watch")
		prior.Stop()
	}
	return w, nil
}

func (w *Watcher) handleSample(sample *models.PositionSample) {
	if sample == nil || !sample.Coordinates.Valid() {
		return
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if !w.significantLocked(sample) {
		w.mu.Unlock()
		observability.SamplesFiltered.Inc()
		return
	}
	w.lastForwarded = sample
	w.forwardedAt = time.Now()
	cb := w.onSample
	w.mu.Unlock()

	observability.SamplesForwarded.Inc()
	if cb != nil {
		cb(*sample)
	}
}

// significantLocked applies the forwarding filter against the last forwarded
// sample, not the last raw one, so slow drift still surfaces eventually.
func (w *Watcher) significantLocked(sample *models.PositionSample) bool {
	if w.lastForwarded == nil {
		return true
	}
	if utils.DistanceMeters(w.lastForwarded.Coordinates, sample.Coordinates) > w.minDisplacement {
		return true
	}
	return time.Since(w.forwardedAt) > w.maxStaleness
}

func (w *Watcher) handleError(err error) {
	w.mu.Lock()
	stopped := w.stopped
	cb := w.onError
	w.mu.Unlock()

	if stopped {
		return
	}
	logger.Warn("position watch error", logger.Err(err))
	if cb != nil {
		cb(err)
	}
}

// Stop releases the device resource. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	release := w.release
	w.mu.Unlock()

	if release != nil {
		release()
	}
}
