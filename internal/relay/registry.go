package relay

import (
	"sync"

	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// Registry enforces at most one live relay and one live tracker per request
// ID. Starting an existing one returns the live instance instead of leaking
// a duplicate stream.
type Registry struct {
	cfg models.RelayConfig

	mu       sync.Mutex
	relays   map[string]*Relay
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg models.RelayConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		relays:   make(map[string]*Relay),
		trackers: make(map[string]*Tracker),
	}
}

// StartRelay returns the relay for requestID, creating it on first use.
func (reg *Registry) StartRelay(requestID string, emitter Emitter) *Relay {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.relays[requestID]; ok {
		logger.Debug("reusing active relay", logger.String("request_id", requestID))
		return existing
	}
	r := newRelay(requestID, emitter, reg.cfg)
	reg.relays[requestID] = r
	logger.Info("relay started", logger.String("request_id", requestID))
	return r
}

// StopRelay closes and removes the relay for requestID, if any.
func (reg *Registry) StopRelay(requestID string) {
	reg.mu.Lock()
	r, ok := reg.relays[requestID]
	delete(reg.relays, requestID)
	reg.mu.Unlock()

	if ok {
		r.Close()
		logger.Info("relay stopped", logger.String("request_id", requestID))
	}
}

// StartTracker returns the tracker for requestID, creating it on first use.
// The onPose callback of the first caller wins for the tracker's lifetime.
func (reg *Registry) StartTracker(requestID string, subscriber Subscriber, onPose func(Pose)) *Tracker {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.trackers[requestID]; ok {
		logger.Debug("reusing active tracker", logger.String("request_id", requestID))
		return existing
	}
	t := newTracker(requestID, subscriber, reg.cfg, onPose)
	reg.trackers[requestID] = t
	logger.Info("tracker started", logger.String("request_id", requestID))
	return t
}

// StopTracker closes and removes the tracker for requestID, if any.
func (reg *Registry) StopTracker(requestID string) {
	reg.mu.Lock()
	t, ok := reg.trackers[requestID]
	delete(reg.trackers, requestID)
	reg.mu.Unlock()

	if ok {
		t.Close()
		logger.Info("tracker stopped", logger.String("request_id", requestID))
	}
}

// Shutdown closes every live relay and tracker.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	relays := reg.relays
	trackers := reg.trackers
	reg.relays = make(map[string]*Relay)
	reg.trackers = make(map[string]*Tracker)
	reg.mu.Unlock()

	for _, r := range relays {
		r.Close()
	}
	for _, t := range trackers {
		t.Close()
	}
}
