package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelocal/dispatch/internal/mocks"
	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

func newProviderUnderTest(t *testing.T) (*ProviderSession, *fakeChannel, *mocks.MockGateway) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	gw := mocks.NewMockGateway(ctrl)
	ch := newFakeChannel()
	session := NewProviderSession("prov-1", ch, gw, models.DispatchConfig{OfferWindowSeconds: 20})
	session.tickInterval = 5 * time.Millisecond
	session.Listen()
	t.Cleanup(session.Close)
	return session, ch, gw
}

func testOffer() models.Offer {
	return models.Offer{
		RequestID:   "req-1",
		RequesterID: "user-1",
		Distance:    "1360",
		ReqLocation: models.GeoLocation{Coordinates: models.Coordinates{Longitude: 106.8456, Latitude: -6.2088}},
	}
}

func TestOffer_StartsResponseWindow(t *testing.T) {
	// Arrange
	session, ch, _ := newProviderUnderTest(t)
	session.tickInterval = time.Second // keep the window full for the assertion
	var received []models.Offer
	session.OnOffer(func(o models.Offer) { received = append(received, o) })

	// Act
	ch.push(t, constants.EventNewRequest, testOffer())

	// Assert
	assert.Equal(t, models.StateOffered, session.State())
	require.Len(t, received, 1)
	assert.Equal(t, "req-1", received[0].RequestID)
	assert.Equal(t, "1360", received[0].Distance, "distance is a server-computed display value")
	assert.False(t, received[0].ReceivedAt.IsZero())
	assert.Equal(t, 20, session.OfferRemaining())
}

func TestOffer_NewestReplacesPending(t *testing.T) {
	// Arrange
	session, ch, _ := newProviderUnderTest(t)
	ch.push(t, constants.EventNewRequest, testOffer())

	// Act
	second := testOffer()
	second.RequestID = "req-2"
	ch.push(t, constants.EventNewRequest, second)

	// Assert: at most one active offer, the newest wins
	require.NotNil(t, session.CurrentOffer())
	assert.Equal(t, "req-2", session.CurrentOffer().RequestID)
	assert.Error(t, session.Accept(context.Background(), "req-1"))
}

func TestOffer_IgnoredWhileJobUnderway(t *testing.T) {
	// Arrange
	session, ch, gw := newProviderUnderTest(t)
	gw.EXPECT().RespondToOffer(gomock.Any(), "req-1", "prov-1", true).Return(nil)
	gw.EXPECT().StartTracking(gomock.Any(), gomock.Any()).Return(nil)
	ch.push(t, constants.EventNewRequest, testOffer())
	require.NoError(t, session.Accept(context.Background(), "req-1"))

	// Act
	second := testOffer()
	second.RequestID = "req-2"
	ch.push(t, constants.EventNewRequest, second)

	// Assert
	assert.Equal(t, models.StateAccepted, session.State())
}

func TestOffer_WithdrawnByGateway(t *testing.T) {
	// Arrange
	session, ch, _ := newProviderUnderTest(t)
	withdrawn := make(chan string, 1)
	session.OnOfferWithdrawn(func(requestID string) { withdrawn <- requestID })
	ch.push(t, constants.EventNewRequest, testOffer())

	// Act
	ch.push(t, constants.EventRequestUnavailable, map[string]string{"requestId": "req-1"})

	// Assert
	select {
	case requestID := <-withdrawn:
		assert.Equal(t, "req-1", requestID)
	case <-time.After(time.Second):
		t.Fatal("withdrawal callback did not fire")
	}
	assert.Equal(t, models.StateIdle, session.State())
	assert.Error(t, session.Accept(context.Background(), "req-1"))
}

func TestOffer_ExpiresUnanswered(t *testing.T) {
	// Arrange
	session, ch, _ := newProviderUnderTest(t)
	expired := make(chan string, 1)
	session.OnOfferExpired(func(requestID string) { expired <- requestID })

	// Act
	ch.push(t, constants.EventNewRequest, testOffer())

	// Assert: 20 ticks at 5ms
	select {
	case requestID := <-expired:
		assert.Equal(t, "req-1", requestID)
	case <-time.After(2 * time.Second):
		t.Fatal("offer did not expire")
	}
	assert.Equal(t, models.StateExpired, session.State())
	assert.Nil(t, session.CurrentOffer())

	// A late answer must be rejected and leave the state alone
	assert.Error(t, session.Accept(context.Background(), "req-1"))
	assert.Equal(t, models.StateExpired, session.State())

	// The next offer is still taken
	next := testOffer()
	next.RequestID = "req-2"
	ch.push(t, constants.EventNewRequest, next)
	assert.Equal(t, models.StateOffered, session.State())
}

func TestAccept_CommitsDecisionAndStartsTracking(t *testing.T) {
	// Arrange
	session, ch, gw := newProviderUnderTest(t)
	gw.EXPECT().RespondToOffer(gomock.Any(), "req-1", "prov-1", true).Return(nil)
	gw.EXPECT().StartTracking(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ts *models.TrackingSession) error {
			assert.Equal(t, "req-1", ts.RequestID)
			assert.Equal(t, "prov-1", ts.ProviderID)
			assert.Equal(t, "user-1", ts.RequesterID)
			assert.True(t, ts.Active)
			return nil
		})
	ch.push(t, constants.EventNewRequest, testOffer())

	// Act
	err := session.Accept(context.Background(), "req-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, session.State())
	joins := ch.emittedEvents(constants.EventJoinServiceRequest)
	require.Len(t, joins, 1)
	payload := joins[0].payload.(models.JoinRoomPayload)
	assert.Equal(t, "req-1", payload.ServiceRequestID)
	assert.Equal(t, models.UserTypeProvider, payload.UserType)

	// The countdown is stopped: no expiry fires afterwards
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, models.StateAccepted, session.State())
}

func TestAccept_RejectsStaleRequestID(t *testing.T) {
	// Arrange
	session, ch, _ := newProviderUnderTest(t)
	ch.push(t, constants.EventNewRequest, testOffer())

	// Act: decision for a different request than the pending offer
	err := session.Accept(context.Background(), "req-999")

	// Assert: the pending offer is untouched
	assert.Error(t, err)
	assert.Equal(t, models.StateOffered, session.State())
}

func TestAccept_FailedCommitAbandonsOffer(t *testing.T) {
	// Arrange
	session, ch, gw := newProviderUnderTest(t)
	gw.EXPECT().RespondToOffer(gomock.Any(), "req-1", "prov-1", true).
		Return(errors.New("gateway unreachable"))
	ch.push(t, constants.EventNewRequest, testOffer())

	// Act
	err := session.Accept(context.Background(), "req-1")

	// Assert
	assert.Error(t, err)
	assert.Equal(t, models.StateIdle, session.State())
	assert.Nil(t, session.CurrentOffer())
}

func TestReject_FreesSessionForNextOffer(t *testing.T) {
	// Arrange
	session, ch, gw := newProviderUnderTest(t)
	gw.EXPECT().RespondToOffer(gomock.Any(), "req-1", "prov-1", false).Return(nil)
	ch.push(t, constants.EventNewRequest, testOffer())

	// Act
	require.NoError(t, session.Reject(context.Background(), "req-1"))

	// Assert
	assert.Equal(t, models.StateIdle, session.State())
	next := testOffer()
	next.RequestID = "req-2"
	ch.push(t, constants.EventNewRequest, next)
	require.NotNil(t, session.CurrentOffer())
	assert.Equal(t, "req-2", session.CurrentOffer().RequestID)
}

func TestComplete_StopsTracking(t *testing.T) {
	// Arrange
	session, ch, gw := newProviderUnderTest(t)
	gw.EXPECT().RespondToOffer(gomock.Any(), "req-1", "prov-1", true).Return(nil)
	gw.EXPECT().StartTracking(gomock.Any(), gomock.Any()).Return(nil)
	gw.EXPECT().StopTracking(gomock.Any(), "req-1").Return(nil)
	ch.push(t, constants.EventNewRequest, testOffer())
	require.NoError(t, session.Accept(context.Background(), "req-1"))

	// Act
	require.NoError(t, session.Begin())
	err := session.Complete(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, session.State())
}

func TestCancel_StopsTrackingWhenInProgress(t *testing.T) {
	// Arrange
	session, ch, gw := newProviderUnderTest(t)
	gw.EXPECT().RespondToOffer(gomock.Any(), "req-1", "prov-1", true).Return(nil)
	gw.EXPECT().StartTracking(gomock.Any(), gomock.Any()).Return(nil)
	gw.EXPECT().StopTracking(gomock.Any(), "req-1").Return(nil)
	gw.EXPECT().CancelRequest(gomock.Any(), "req-1", "prov-1").Return(nil)
	ch.push(t, constants.EventNewRequest, testOffer())
	require.NoError(t, session.Accept(context.Background(), "req-1"))
	require.NoError(t, session.Begin())

	// Act
	err := session.Cancel(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StateIdle, session.State())
}

func TestCountdownTicks_ReportRemainingSeconds(t *testing.T) {
	// Arrange
	session, ch, _ := newProviderUnderTest(t)
	ticks := make(chan int, 32)
	session.OnCountdownTick(func(_ string, remaining int) { ticks <- remaining })

	// Act
	ch.push(t, constants.EventNewRequest, testOffer())

	// Assert: ticks count strictly down from the window
	first := <-ticks
	second := <-ticks
	assert.Equal(t, 19, first)
	assert.Equal(t, 18, second)
}
