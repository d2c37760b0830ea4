package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

var testJWT = models.JWTConfig{Secret: "test-secret", Expiration: 60, Issuer: "dispatch-test"}

// gatewayStub is a minimal websocket endpoint that records inbound messages
// and can push events to the connected client.
type gatewayStub struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []models.WSMessage
	authed   chan models.WSMessage
}

func newGatewayStub(t *testing.T) *gatewayStub {
	g := &gatewayStub{t: t, authed: make(chan models.WSMessage, 10)}
	g.server = httptest.NewServer(http.HandlerFunc(g.handle))
	return g
}

func (g *gatewayStub) handle(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(auth, "Bearer ")
	_, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWT.Secret), nil
	})
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	g.mu.Lock()
	g.conns = append(g.conns, conn)
	g.mu.Unlock()

	go func() {
		for {
			var msg models.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			g.mu.Lock()
			g.received = append(g.received, msg)
			g.mu.Unlock()
			if msg.Event == constants.EventAuthProvider || msg.Event == constants.EventAuthUser {
				g.authed <- msg
			}
		}
	}()
}

func (g *gatewayStub) url() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *gatewayStub) push(event string, payload interface{}) {
	data, _ := json.Marshal(payload)
	g.mu.Lock()
	conn := g.conns[len(g.conns)-1]
	g.mu.Unlock()
	err := conn.WriteJSON(models.WSMessage{Event: event, Data: data})
	require.NoError(g.t, err)
}

func (g *gatewayStub) dropConnections() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.conns {
		c.Close()
	}
	g.conns = nil
}

func (g *gatewayStub) messages() []models.WSMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.WSMessage, len(g.received))
	copy(out, g.received)
	return out
}

func (g *gatewayStub) close() {
	g.dropConnections()
	g.server.Close()
}

func waitAuth(t *testing.T, g *gatewayStub) models.WSMessage {
	select {
	case msg := <-g.authed:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for identity announcement")
		return models.WSMessage{}
	}
}

func TestConnect_AnnouncesProviderIdentity(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()

	// Act
	err := ch.Connect(context.Background(), Identity{UserID: "prov-1", UserType: models.UserTypeProvider})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StateConnected, ch.State())
	msg := waitAuth(t, gw)
	assert.Equal(t, constants.EventAuthProvider, msg.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "prov-1", payload["userId"])
}

func TestConnect_SameIdentityIsNoOp(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()
	identity := Identity{UserID: "u1", UserType: models.UserTypeRequester}
	require.NoError(t, ch.Connect(context.Background(), identity))
	waitAuth(t, gw)

	// Act
	err := ch.Connect(context.Background(), identity)

	// Assert: no error and no second connection
	assert.NoError(t, err)
	assert.Equal(t, StateConnected, ch.State())
	gw.mu.Lock()
	conns := len(gw.conns)
	gw.mu.Unlock()
	assert.Equal(t, 1, conns)
}

func TestConnect_RejectsIdentitySwitch(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background(), Identity{UserID: "u1", UserType: models.UserTypeRequester}))

	// Act
	err := ch.Connect(context.Background(), Identity{UserID: "u2", UserType: models.UserTypeRequester})

	// Assert
	assert.Error(t, err)
}

func TestEmit_DeliversWhenConnected(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background(), Identity{UserID: "prov-1", UserType: models.UserTypeProvider}))
	waitAuth(t, gw)

	// Act
	err := ch.Emit(constants.EventLocationUpdate, models.LocationUpdatePayload{SessionID: "req-1"})

	// Assert
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		for _, m := range gw.messages() {
			if m.Event == constants.EventLocationUpdate {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmit_DropsWhenDisconnected(t *testing.T) {
	// Arrange
	ch := NewChannel("ws://127.0.0.1:1/ws", testJWT)

	// Act
	err := ch.Emit(constants.EventLocationUpdate, models.LocationUpdatePayload{SessionID: "req-1"})

	// Assert
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestOn_HandlersRunInSubscriptionOrder(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background(), Identity{UserID: "u1", UserType: models.UserTypeRequester}))
	waitAuth(t, gw)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	ch.On(constants.EventRequestUpdate, func(json.RawMessage) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	ch.On(constants.EventRequestUpdate, func(json.RawMessage) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(done)
	})

	// Act
	gw.push(constants.EventRequestUpdate, models.RequestUpdate{Status: models.StatusAccepted})

	// Assert
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUnsubscribe_RemovesOnlyItself(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background(), Identity{UserID: "u1", UserType: models.UserTypeRequester}))
	waitAuth(t, gw)

	var mu sync.Mutex
	var calls []string
	sub := ch.On(constants.EventRequestUpdate, func(json.RawMessage) {
		mu.Lock()
		calls = append(calls, "removed")
		mu.Unlock()
	})
	done := make(chan struct{})
	ch.On(constants.EventRequestUpdate, func(json.RawMessage) {
		mu.Lock()
		calls = append(calls, "kept")
		mu.Unlock()
		close(done)
	})

	// Act
	sub.Unsubscribe()
	sub.Unsubscribe() // second call is a no-op
	gw.push(constants.EventRequestUpdate, models.RequestUpdate{Status: models.StatusAccepted})

	// Assert
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("remaining handler did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"kept"}, calls)
}

func TestReconnect_ReannouncesIdentity(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background(), Identity{UserID: "prov-1", UserType: models.UserTypeProvider}))
	waitAuth(t, gw)

	// Act: sever the connection from the gateway side
	gw.dropConnections()

	// Assert: a fresh announcement arrives on the new connection
	msg := waitAuth(t, gw)
	assert.Equal(t, constants.EventAuthProvider, msg.Event)
	assert.Eventually(t, func() bool {
		return ch.State() == StateConnected
	}, 5*time.Second, 20*time.Millisecond)
}

func TestClose_IsIdempotent(t *testing.T) {
	// Arrange
	gw := newGatewayStub(t)
	defer gw.close()
	ch := NewChannel(gw.url(), testJWT)
	require.NoError(t, ch.Connect(context.Background(), Identity{UserID: "u1", UserType: models.UserTypeRequester}))

	// Act
	ch.Close()
	ch.Close()

	// Assert
	assert.Equal(t, StateDisconnected, ch.State())
	assert.ErrorIs(t, ch.Emit(constants.EventLocationUpdate, nil), ErrNotConnected)
}

func TestConnect_FailsOnRejectedHandshake(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()
	ch := NewChannel("ws"+strings.TrimPrefix(server.URL, "http"), testJWT)

	// Act
	err := ch.Connect(context.Background(), Identity{UserID: "u1", UserType: models.UserTypeRequester})

	// Assert
	assert.Error(t, err)
	assert.Equal(t, StateDisconnected, ch.State())
}
