package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelocal/dispatch/internal/mocks"
	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
)

type emittedEvent struct {
	event   string
	payload interface{}
}

type fakeSub struct {
	ch    *fakeChannel
	event string
	id    int
}

func (s *fakeSub) Unsubscribe() {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	entries := s.ch.handlers[s.event]
	for i, e := range entries {
		if e.id == s.id {
			s.ch.handlers[s.event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

type handlerEntry struct {
	id      int
	handler realtime.Handler
}

// fakeChannel is an in-process EventChannel for driving sessions directly.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]handlerEntry
	emitted  []emittedEvent
	nextID   int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]handlerEntry)}
}

func (c *fakeChannel) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, emittedEvent{event: event, payload: payload})
	return nil
}

func (c *fakeChannel) On(event string, handler realtime.Handler) realtime.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.handlers[event] = append(c.handlers[event], handlerEntry{id: c.nextID, handler: handler})
	return &fakeSub{ch: c, event: event, id: c.nextID}
}

func (c *fakeChannel) push(t *testing.T, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	c.mu.Lock()
	entries := make([]handlerEntry, len(c.handlers[event]))
	copy(entries, c.handlers[event])
	c.mu.Unlock()
	for _, e := range entries {
		e.handler(data)
	}
}

func (c *fakeChannel) emittedEvents(event string) []emittedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emittedEvent
	for _, e := range c.emitted {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func TestSubmit_EntersSearching(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)

	// Act
	err := session.Submit(context.Background(), models.Coordinates{Longitude: 106.8, Latitude: -6.2}, "plumbing")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StateSearching, session.State())
	// The room is session-scoped: joining waits for acceptance, when the
	// gateway-assigned request ID is known for certain.
	assert.Empty(t, ch.emittedEvents(constants.EventJoinServiceRequest))
}

func TestRequestUpdate_AcceptedJoinsRoomWithGatewayID(t *testing.T) {
	// Arrange: the gateway assigns its own ID on submission
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *models.DispatchRequest) (bool, error) {
			req.RequestID = "SRV-1"
			return true, nil
		})
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))
	require.Equal(t, "SRV-1", session.RequestID())

	// Act
	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{
		Status:     models.StatusAccepted,
		RequestID:  "SRV-1",
		ProviderID: "prov-7",
	})

	// Assert: the join carries the ID the gateway routes location events by
	assert.Equal(t, models.StateAccepted, session.State())
	joins := ch.emittedEvents(constants.EventJoinServiceRequest)
	require.Len(t, joins, 1)
	payload := joins[0].payload.(models.JoinRoomPayload)
	assert.Equal(t, "SRV-1", payload.ServiceRequestID)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, models.UserTypeRequester, payload.UserType)
}

func TestSubmit_NoProviderAvailableIsTerminal(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(false, nil)
	session := NewRequesterSession("user-1", newFakeChannel(), gw)

	// Act
	err := session.Submit(context.Background(), models.Coordinates{}, "plumbing")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StateNoProvider, session.State())
	assert.True(t, session.State().Terminal())
}

func TestSubmit_RejectedWhenNotIdle(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	session := NewRequesterSession("user-1", newFakeChannel(), gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))

	// Act
	err := session.Submit(context.Background(), models.Coordinates{}, "plumbing")

	// Assert
	assert.Error(t, err)
}

func TestRequestUpdate_AcceptedTransitionsSession(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))

	var transitions []models.SessionState
	session.OnTransition(func(state models.SessionState, _ *models.RequestUpdate) {
		transitions = append(transitions, state)
	})

	// Act
	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{
		Status:     models.StatusAccepted,
		RequestID:  session.RequestID(),
		ProviderID: "prov-7",
	})

	// Assert
	assert.Equal(t, models.StateAccepted, session.State())
	assert.Equal(t, "prov-7", session.ProviderID())
	assert.Equal(t, []models.SessionState{models.StateAccepted}, transitions)
}

func TestRequestUpdate_StaleRequestIDIgnored(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))

	// Act: an outcome for some other request
	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{
		Status:     models.StatusAccepted,
		RequestID:  "some-other-request",
		ProviderID: "prov-7",
	})

	// Assert
	assert.Equal(t, models.StateSearching, session.State())
	assert.Empty(t, session.ProviderID())
}

func TestRequestUpdate_IgnoredAfterTerminalState(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))
	requestID := session.RequestID()
	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{Status: models.StatusNoProvider, RequestID: requestID})
	require.Equal(t, models.StateNoProvider, session.State())

	// Act
	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{
		Status:     models.StatusAccepted,
		RequestID:  requestID,
		ProviderID: "prov-7",
	})

	// Assert
	assert.Equal(t, models.StateNoProvider, session.State())
}

func TestCancel_NotifiesGatewayAndStopsListening(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))
	requestID := session.RequestID()
	gw.EXPECT().CancelRequest(gomock.Any(), requestID, "user-1").Return(nil)

	// Act
	err := session.Cancel(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, session.State())

	// Outcomes arriving after cancellation must not resurrect the session
	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{
		Status:    models.StatusAccepted,
		RequestID: requestID,
	})
	assert.Equal(t, models.StateCancelled, session.State())
}

func TestCancel_RejectedFromTerminalState(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(false, nil)
	session := NewRequesterSession("user-1", newFakeChannel(), gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))

	// Act
	err := session.Cancel(context.Background())

	// Assert
	assert.Error(t, err)
}

func TestBeginAndComplete_FollowLifecycleOrder(t *testing.T) {
	// Arrange
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().SubmitRequest(gomock.Any(), gomock.Any()).Return(true, nil)
	ch := newFakeChannel()
	session := NewRequesterSession("user-1", ch, gw)
	require.NoError(t, session.Submit(context.Background(), models.Coordinates{}, "plumbing"))

	// Begin before acceptance is invalid
	assert.Error(t, session.Begin())

	ch.push(t, constants.EventRequestUpdate, models.RequestUpdate{
		Status:     models.StatusAccepted,
		RequestID:  session.RequestID(),
		ProviderID: "prov-7",
	})

	// Act
	require.NoError(t, session.Begin())
	assert.Equal(t, models.StateInProgress, session.State())
	require.NoError(t, session.Complete())

	// Assert
	assert.Equal(t, models.StateCompleted, session.State())
	assert.Error(t, session.Complete())
}
