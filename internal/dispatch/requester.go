package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
)

// RequesterSession drives one service request from submission to a terminal
// state. The gateway owns dispatch outcomes; the session mirrors them and
// rejects transitions the lifecycle does not allow.
type RequesterSession struct {
	requesterID string
	channel     EventChannel
	gateway     Gateway

	mu         sync.Mutex
	state      models.SessionState
	requestID  string
	providerID string
	subs       []realtime.Subscription

	onTransition func(state models.SessionState, update *models.RequestUpdate)
}

// NewRequesterSession creates an idle session for one request.
func NewRequesterSession(requesterID string, channel EventChannel, gw Gateway) *RequesterSession {
	return &RequesterSession{
		requesterID: requesterID,
		channel:     channel,
		gateway:     gw,
		state:       models.StateIdle,
	}
}

// OnTransition registers the state change callback. The update argument is
// nil for locally driven transitions.
func (s *RequesterSession) OnTransition(fn func(models.SessionState, *models.RequestUpdate)) {
	s.mu.Lock()
	s.onTransition = fn
	s.mu.Unlock()
}

// State returns the current session state.
func (s *RequesterSession) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestID returns the submitted request's ID, empty before Submit.
func (s *RequesterSession) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

// ProviderID returns the matched provider, empty until accepted.
func (s *RequesterSession) ProviderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providerID
}

// Submit sends the request and starts listening for the dispatch outcome.
// When no provider is available the session terminates immediately; otherwise
// the outcome arrives asynchronously as a request:update event.
func (s *RequesterSession) Submit(ctx context.Context, origin models.Coordinates, category string) error {
	s.mu.Lock()
	if s.state != models.StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot submit in state %s", state)
	}
	s.state = models.StateSearching
	s.requestID = uuid.NewString()
	requestID := s.requestID
	s.mu.Unlock()

	req := &models.DispatchRequest{
		RequestID:       requestID,
		RequesterID:     s.requesterID,
		Origin:          origin,
		ServiceCategory: category,
		CreatedAt:       models.Now(),
	}

	// Listen before submitting so an immediate outcome is not missed.
	sub := s.channel.On(constants.EventRequestUpdate, s.handleUpdate)
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	available, err := s.gateway.SubmitRequest(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.state = models.StateIdle
		s.requestID = ""
		s.unsubscribeLocked()
		s.mu.Unlock()
		return err
	}

	// The gateway may assign its own request ID on submission.
	s.mu.Lock()
	if req.RequestID != s.requestID {
		s.requestID = req.RequestID
	}
	s.mu.Unlock()

	if !available {
		s.transition(models.StateNoProvider, nil)
	}
	return nil
}

// handleUpdate applies an asynchronous dispatch outcome. Updates for other
// requests or arriving after a terminal state are ignored.
func (s *RequesterSession) handleUpdate(data json.RawMessage) {
	var update models.RequestUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		logger.Warn("discarding malformed request update", logger.Err(err))
		return
	}

	s.mu.Lock()
	if update.RequestID != s.requestID || s.state.Terminal() {
		s.mu.Unlock()
		logger.Debug("ignoring stale request update",
			logger.String("update_request_id", update.RequestID),
			logger.String("request_id", s.requestID))
		return
	}

	switch update.Status {
	case models.StatusAccepted:
		if s.state != models.StateSearching {
			s.mu.Unlock()
			return
		}
		s.providerID = update.ProviderID
		requestID := s.requestID
		s.mu.Unlock()

		// The room must be joined under the gateway-assigned request ID or
		// location events for the session are never routed here.
		if err := s.channel.Emit(constants.EventJoinServiceRequest, models.JoinRoomPayload{
			ServiceRequestID: requestID,
			UserID:           s.requesterID,
			UserType:         models.UserTypeRequester,
		}); err != nil {
			logger.Warn("failed to join session room", logger.Err(err))
		}
		s.transition(models.StateAccepted, &update)

	case models.StatusNoProvider:
		if s.state != models.StateSearching {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.transition(models.StateNoProvider, &update)

	default:
		s.mu.Unlock()
		logger.Debug("ignoring unknown request update status",
			logger.String("status", update.Status))
	}
}

// Begin marks the accepted service as underway.
func (s *RequesterSession) Begin() error {
	return s.require(models.StateAccepted, models.StateInProgress)
}

// Complete closes an in-progress session.
func (s *RequesterSession) Complete() error {
	if err := s.require(models.StateInProgress, models.StateCompleted); err != nil {
		return err
	}
	s.mu.Lock()
	s.unsubscribeLocked()
	s.mu.Unlock()
	return nil
}

// Cancel aborts the request from any non-terminal state, notifies the
// gateway and stops listening for outcomes.
func (s *RequesterSession) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Terminal() || s.state == models.StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot cancel in state %s", state)
	}
	requestID := s.requestID
	s.unsubscribeLocked()
	s.mu.Unlock()

	if err := s.gateway.CancelRequest(ctx, requestID, s.requesterID); err != nil {
		logger.Warn("gateway cancel failed", logger.Err(err), logger.String("request_id", requestID))
	}

	s.transition(models.StateCancelled, nil)
	return nil
}

func (s *RequesterSession) require(from, to models.SessionState) error {
	s.mu.Lock()
	if s.state != from {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot move to %s from %s", to, state)
	}
	s.mu.Unlock()
	s.transition(to, nil)
	return nil
}

func (s *RequesterSession) transition(to models.SessionState, update *models.RequestUpdate) {
	s.mu.Lock()
	from := s.state
	s.state = to
	cb := s.onTransition
	if to.Terminal() {
		s.unsubscribeLocked()
	}
	s.mu.Unlock()

	logger.Info("session state changed",
		logger.String("request_id", s.RequestID()),
		logger.String("from", string(from)),
		logger.String("to", string(to)))

	if cb != nil {
		cb(to, update)
	}
}

func (s *RequesterSession) unsubscribeLocked() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}
