package relay

import (
	"encoding/json"
	"sync"

	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
)

// Subscriber is the inbound slice of the realtime channel.
type Subscriber interface {
	On(event string, handler realtime.Handler) realtime.Subscription
}

// Tracker follows the provider's position for one tracking session on the
// requester side. Each update supersedes the previous one; only the latest
// smoothed pose is retained.
type Tracker struct {
	requestID string
	smoother  *Smoother
	sub       realtime.Subscription

	mu     sync.Mutex
	latest *models.ProviderLocationUpdate
	closed bool

	onPose func(Pose)
}

func newTracker(requestID string, subscriber Subscriber, cfg models.RelayConfig, onPose func(Pose)) *Tracker {
	t := &Tracker{
		requestID: requestID,
		smoother:  NewSmoother(cfg),
		onPose:    onPose,
	}
	t.sub = subscriber.On(constants.EventLocationUpdated, t.handleUpdate)
	return t
}

func (t *Tracker) handleUpdate(data json.RawMessage) {
	var payload models.LocationUpdatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("discarding malformed location event", logger.Err(err))
		return
	}
	if !payload.Coordinates.Valid() {
		logger.Warn("discarding out-of-range location event",
			logger.String("request_id", t.requestID))
		return
	}

	update := models.ProviderLocationUpdate{
		SessionID:   t.requestID,
		Coordinates: payload.Coordinates,
		Heading:     payload.Heading,
		CapturedAt:  models.Now(),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.latest = &update
	pose := t.smoother.Apply(update)
	cb := t.onPose
	t.mu.Unlock()

	if cb != nil {
		cb(pose)
	}
}

// RequestID returns the tracking session this tracker follows.
func (t *Tracker) RequestID() string {
	return t.requestID
}

// Latest returns the most recent raw update, nil before the first event.
func (t *Tracker) Latest() *models.ProviderLocationUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return nil
	}
	update := *t.latest
	return &update
}

// Pose returns the current smoothed pose and whether one exists yet.
func (t *Tracker) Pose() (Pose, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.smoother.Pose()
}

// Close unsubscribes from the location stream. Idempotent.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()
	t.sub.Unsubscribe()
}
