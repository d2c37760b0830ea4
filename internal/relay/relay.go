package relay

import (
	"sync"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/pkg/observability"
	"github.com/hirelocal/dispatch/internal/utils"
)

// Emitter is the outbound slice of the realtime channel.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// Relay streams a provider's position over the channel for one tracking
// session. Emissions are throttled to the configured interval; between
// flushes each new sample replaces the pending one, so the freshest position
// always wins and nothing queues up.
type Relay struct {
	requestID string
	emitter   Emitter
	interval  time.Duration

	mu       sync.Mutex
	pending  *models.PositionSample
	lastSent *models.PositionSample
	lastEmit time.Time
	heading  *float64
	closed   bool
	done     chan struct{}
}

func newRelay(requestID string, emitter Emitter, cfg models.RelayConfig) *Relay {
	r := &Relay{
		requestID: requestID,
		emitter:   emitter,
		interval:  time.Duration(cfg.EmitIntervalMs) * time.Millisecond,
		done:      make(chan struct{}),
	}
	go r.flushLoop()
	return r
}

// Offer hands the relay a fresh sample. Emits immediately when the interval
// has elapsed, otherwise coalesces until the next flush.
func (r *Relay) Offer(sample models.PositionSample) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if time.Since(r.lastEmit) >= r.interval {
		r.emitLocked(&sample)
		r.mu.Unlock()
		return
	}
	r.pending = &sample
	r.mu.Unlock()
}

func (r *Relay) flushLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.pending != nil && time.Since(r.lastEmit) >= r.interval {
				sample := r.pending
				r.pending = nil
				r.emitLocked(sample)
			}
			r.mu.Unlock()
		}
	}
}

// emitLocked sends one location:update. The heading is derived from the
// movement since the previously sent sample; standstill keeps the old value.
func (r *Relay) emitLocked(sample *models.PositionSample) {
	if r.lastSent != nil && utils.DistanceMeters(r.lastSent.Coordinates, sample.Coordinates) > 1 {
		bearing := utils.BearingDegrees(r.lastSent.Coordinates, sample.Coordinates)
		r.heading = &bearing
	}

	payload := models.LocationUpdatePayload{
		SessionID: r.requestID,
		Location:  models.GeoLocation{Coordinates: sample.Coordinates},
		Heading:   r.heading,
		Accuracy:  sample.Accuracy,
		Geohash:   utils.EncodeLocation(sample.Coordinates),
	}

	if err := r.emitter.Emit(constants.EventLocationUpdate, payload); err != nil {
		logger.Debug("location update dropped",
			logger.String("request_id", r.requestID),
			logger.Err(err))
		return
	}

	r.lastSent = sample
	r.lastEmit = time.Now()
	observability.LocationEmits.Inc()
}

// RequestID returns the tracking session this relay serves.
func (r *Relay) RequestID() string {
	return r.requestID
}

// Close stops the flush loop. Idempotent.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.pending = nil
	close(r.done)
	r.mu.Unlock()
}
