package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
)

// ProviderSession receives dispatch offers and drives the accepted job to a
// terminal state. An offer must be answered inside the response window or it
// expires; the decision itself is committed to the gateway exactly once.
type ProviderSession struct {
	providerID string
	channel    EventChannel
	gateway    Gateway
	cfg        models.DispatchConfig

	// tick granularity of the offer countdown, one second in production
	tickInterval time.Duration

	mu        sync.Mutex
	state     models.SessionState
	offer     *models.Offer
	requestID string
	countdown *Countdown
	subs      []realtime.Subscription

	onOffer     func(models.Offer)
	onTick      func(requestID string, remaining int)
	onExpired   func(requestID string)
	onWithdrawn func(requestID string)
}

// NewProviderSession creates an idle provider session.
func NewProviderSession(providerID string, channel EventChannel, gw Gateway, cfg models.DispatchConfig) *ProviderSession {
	return &ProviderSession{
		providerID:   providerID,
		channel:      channel,
		gateway:      gw,
		cfg:          cfg,
		tickInterval: time.Second,
		state:        models.StateIdle,
	}
}

// OnOffer registers the callback for incoming offers.
func (s *ProviderSession) OnOffer(fn func(models.Offer)) {
	s.mu.Lock()
	s.onOffer = fn
	s.mu.Unlock()
}

// OnCountdownTick registers the per-second countdown callback.
func (s *ProviderSession) OnCountdownTick(fn func(requestID string, remaining int)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// OnOfferExpired registers the callback fired when the window elapses.
func (s *ProviderSession) OnOfferExpired(fn func(requestID string)) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// OnOfferWithdrawn registers the callback fired when the gateway reports the
// request is no longer available.
func (s *ProviderSession) OnOfferWithdrawn(fn func(requestID string)) {
	s.mu.Lock()
	s.onWithdrawn = fn
	s.mu.Unlock()
}

// State returns the current session state.
func (s *ProviderSession) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentOffer returns the pending offer, nil when none.
func (s *ProviderSession) CurrentOffer() *models.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offer == nil {
		return nil
	}
	offer := *s.offer
	return &offer
}

// OfferRemaining returns the seconds left to answer the pending offer.
func (s *ProviderSession) OfferRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdown == nil {
		return 0
	}
	return s.countdown.Remaining()
}

// Listen subscribes to the gateway's dispatch events.
func (s *ProviderSession) Listen() {
	subs := []realtime.Subscription{
		s.channel.On(constants.EventNewRequest, s.handleOffer),
		s.channel.On(constants.EventRequestUnavailable, s.handleUnavailable),
		s.channel.On(constants.EventRequestAccepted, s.handleAcceptedAck),
	}
	s.mu.Lock()
	s.subs = append(s.subs, subs...)
	s.mu.Unlock()
}

// handleOffer starts the response window for a new offer. A newer offer
// replaces a pending one; offers arriving while a job is underway are
// ignored.
func (s *ProviderSession) handleOffer(data json.RawMessage) {
	var offer models.Offer
	if err := json.Unmarshal(data, &offer); err != nil {
		logger.Warn("discarding malformed offer", logger.Err(err))
		return
	}
	offer.ReceivedAt = models.Now()

	s.mu.Lock()
	switch s.state {
	case models.StateIdle, models.StateExpired:
	case models.StateOffered:
		// At most one active offer: the newest replaces the pending one.
		logger.Info("replacing pending offer",
			logger.String("old_request_id", s.requestID),
			logger.String("new_request_id", offer.RequestID))
		s.countdown.Stop()
	default:
		state := s.state
		s.mu.Unlock()
		logger.Debug("ignoring offer while busy",
			logger.String("request_id", offer.RequestID),
			logger.String("state", string(state)))
		return
	}
	s.state = models.StateOffered
	s.offer = &offer
	s.requestID = offer.RequestID
	requestID := offer.RequestID
	cb := s.onOffer
	s.countdown = StartCountdown(s.cfg.OfferWindowSeconds, s.tickInterval,
		func(remaining int) { s.tick(requestID, remaining) },
		func() { s.expire(requestID) })
	s.mu.Unlock()

	logger.Info("dispatch offer received",
		logger.String("request_id", requestID),
		logger.String("distance", offer.Distance))
	if cb != nil {
		cb(offer)
	}
}

// handleUnavailable withdraws the pending offer when the gateway reports the
// request is gone, for example taken by another provider.
func (s *ProviderSession) handleUnavailable(data json.RawMessage) {
	var payload struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("discarding malformed unavailable event", logger.Err(err))
		return
	}

	s.mu.Lock()
	if s.state != models.StateOffered {
		s.mu.Unlock()
		return
	}
	if payload.RequestID != "" && payload.RequestID != s.requestID {
		s.mu.Unlock()
		return
	}
	requestID := s.requestID
	s.countdown.Stop()
	s.countdown = nil
	s.state = models.StateIdle
	s.offer = nil
	s.requestID = ""
	cb := s.onWithdrawn
	s.mu.Unlock()

	logger.Info("offer withdrawn by gateway", logger.String("request_id", requestID))
	if cb != nil {
		cb(requestID)
	}
}

func (s *ProviderSession) handleAcceptedAck(data json.RawMessage) {
	var payload struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	logger.Info("acceptance confirmed by gateway",
		logger.String("request_id", payload.RequestID))
}

func (s *ProviderSession) tick(requestID string, remaining int) {
	s.mu.Lock()
	cb := s.onTick
	stale := s.requestID != requestID
	s.mu.Unlock()
	if stale || cb == nil {
		return
	}
	cb(requestID, remaining)
}

// expire marks an unanswered offer EXPIRED. Late accept or reject calls for
// it fail; only the next offer moves the session on.
func (s *ProviderSession) expire(requestID string) {
	s.mu.Lock()
	if s.state != models.StateOffered || s.requestID != requestID {
		s.mu.Unlock()
		return
	}
	s.state = models.StateExpired
	s.offer = nil
	s.requestID = ""
	s.countdown = nil
	cb := s.onExpired
	s.mu.Unlock()

	logger.Info("offer expired unanswered", logger.String("request_id", requestID))
	if cb != nil {
		cb(requestID)
	}
}

// Accept commits acceptance of the pending offer. The countdown stops first
// so expiry cannot race the commit; a failed commit abandons the offer
// rather than retrying a decision the window may have outlived.
func (s *ProviderSession) Accept(ctx context.Context, requestID string) error {
	s.mu.Lock()
	if s.state != models.StateOffered || s.requestID != requestID {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("no pending offer for %s (state %s)", requestID, state)
	}
	offer := *s.offer
	s.countdown.Stop()
	s.countdown = nil
	s.mu.Unlock()

	if err := s.gateway.RespondToOffer(ctx, requestID, s.providerID, true); err != nil {
		s.abandon(requestID)
		return err
	}

	s.mu.Lock()
	s.state = models.StateAccepted
	s.mu.Unlock()

	if err := s.channel.Emit(constants.EventJoinServiceRequest, models.JoinRoomPayload{
		ServiceRequestID: requestID,
		UserID:           s.providerID,
		UserType:         models.UserTypeProvider,
	}); err != nil {
		logger.Warn("failed to join session room", logger.Err(err))
	}

	if err := s.gateway.StartTracking(ctx, &models.TrackingSession{
		RequestID:   requestID,
		ProviderID:  s.providerID,
		RequesterID: offer.RequesterID,
		Active:      true,
	}); err != nil {
		logger.Warn("failed to start tracking", logger.Err(err), logger.String("request_id", requestID))
	}

	logger.Info("offer accepted", logger.String("request_id", requestID))
	return nil
}

// Reject commits rejection of the pending offer and frees the session.
func (s *ProviderSession) Reject(ctx context.Context, requestID string) error {
	s.mu.Lock()
	if s.state != models.StateOffered || s.requestID != requestID {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("no pending offer for %s (state %s)", requestID, state)
	}
	s.countdown.Stop()
	s.countdown = nil
	s.mu.Unlock()

	err := s.gateway.RespondToOffer(ctx, requestID, s.providerID, false)
	s.abandon(requestID)
	if err != nil {
		return err
	}

	logger.Info("offer rejected", logger.String("request_id", requestID))
	return nil
}

func (s *ProviderSession) abandon(requestID string) {
	s.mu.Lock()
	if s.requestID == requestID {
		s.state = models.StateIdle
		s.offer = nil
		s.requestID = ""
	}
	s.mu.Unlock()
}

// Begin marks the accepted job as underway.
func (s *ProviderSession) Begin() error {
	s.mu.Lock()
	if s.state != models.StateAccepted {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot begin from state %s", state)
	}
	s.state = models.StateInProgress
	s.mu.Unlock()
	return nil
}

// Complete finishes the job, stops tracking and frees the session for the
// next offer.
func (s *ProviderSession) Complete(ctx context.Context) error {
	s.mu.Lock()
	if s.state != models.StateInProgress {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot complete from state %s", state)
	}
	requestID := s.requestID
	s.state = models.StateCompleted
	s.mu.Unlock()

	if err := s.gateway.StopTracking(ctx, requestID); err != nil {
		logger.Warn("failed to stop tracking", logger.Err(err), logger.String("request_id", requestID))
	}

	s.mu.Lock()
	s.state = models.StateIdle
	s.offer = nil
	s.requestID = ""
	s.mu.Unlock()

	logger.Info("job completed", logger.String("request_id", requestID))
	return nil
}

// Cancel aborts an accepted or in-progress job.
func (s *ProviderSession) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.state != models.StateAccepted && s.state != models.StateInProgress {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot cancel from state %s", state)
	}
	requestID := s.requestID
	inProgress := s.state == models.StateInProgress
	s.state = models.StateCancelled
	s.mu.Unlock()

	if inProgress {
		if err := s.gateway.StopTracking(ctx, requestID); err != nil {
			logger.Warn("failed to stop tracking on cancel", logger.Err(err))
		}
	}
	if err := s.gateway.CancelRequest(ctx, requestID, s.providerID); err != nil {
		logger.Warn("gateway cancel failed", logger.Err(err))
	}

	s.mu.Lock()
	s.state = models.StateIdle
	s.offer = nil
	s.requestID = ""
	s.mu.Unlock()

	logger.Info("job cancelled", logger.String("request_id", requestID))
	return nil
}

// Close drops the offer subscription and any pending countdown.
func (s *ProviderSession) Close() {
	s.mu.Lock()
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	s.mu.Unlock()
}
