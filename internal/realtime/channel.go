package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirelocal/dispatch/internal/pkg/constants"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/pkg/observability"
	"github.com/hirelocal/dispatch/internal/pkg/retry"
)

// State is the channel connection lifecycle.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
)

// ErrNotConnected is returned by Emit when the channel cannot deliver. The
// event is dropped, never queued.
var ErrNotConnected = errors.New("channel is not connected")

// Handler receives the raw payload of a named event. Handlers run one at a
// time on the read loop, in subscription order.
type Handler func(data json.RawMessage)

type subscription struct {
	id      uint64
	handler Handler
}

// Subscription identifies one registered handler so it can be removed without
// disturbing other handlers for the same event.
type Subscription interface {
	// Unsubscribe removes this handler. Safe to call more than once.
	Unsubscribe()
}

type channelSubscription struct {
	ch    *Channel
	event string
	id    uint64
}

func (s *channelSubscription) Unsubscribe() {
	if s == nil || s.ch == nil {
		return
	}
	s.ch.off(s.event, s.id)
}

// Channel is a persistent bidirectional event connection to the gateway.
// One identity per connection; reconnection is automatic within a bounded
// budget, after which the channel reports degraded and stays down until the
// caller reconnects explicitly.
type Channel struct {
	url     string
	jwtCfg  models.JWTConfig
	dialer  *websocket.Dialer
	retrier *retry.Retrier

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	identity   Identity
	subs       map[string][]subscription
	nextSubID  uint64
	onDegraded func()
	closed     bool

	writeMu sync.Mutex
}

// NewChannel creates a disconnected channel for the given gateway socket URL.
func NewChannel(socketURL string, jwtCfg models.JWTConfig) *Channel {
	return &Channel{
		url:    socketURL,
		jwtCfg: jwtCfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retrier: retry.New(retry.Config{
			MaxRetries: 5,
			BaseDelay:  time.Second,
			MaxDelay:   5 * time.Second,
			Multiplier: 2.0,
			Jitter:     true,
			RetryableFunc: func(error) bool {
				return true
			},
		}, logger.GetGlobalLogger()),
		state: StateDisconnected,
		subs:  make(map[string][]subscription),
	}
}

// SetDegradedHandler registers the callback invoked once the reconnection
// budget is exhausted.
func (c *Channel) SetDegradedHandler(fn func()) {
	c.mu.Lock()
	c.onDegraded = fn
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether events can currently be delivered.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Connect establishes the connection as the given identity and announces it
// to the gateway. A second call for the same identity while connected or
// connecting is a no-op; switching identities requires Close first.
func (c *Channel) Connect(ctx context.Context, identity Identity) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		current := c.identity
		state := c.state
		c.mu.Unlock()
		if current == identity {
			return nil
		}
		return fmt.Errorf("channel already %s as %s", state, current.UserID)
	}
	c.state = StateConnecting
	c.identity = identity
	c.closed = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("failed to connect channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	observability.ChannelState.Set(1)

	if err := c.announce(conn, identity); err != nil {
		c.teardown(conn)
		return fmt.Errorf("failed to announce identity: %w", err)
	}

	logger.Info("channel connected",
		logger.String("user_id", identity.UserID),
		logger.String("user_type", identity.UserType))

	go c.readLoop(conn)
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := GenerateToken(c.jwtCfg, c.identity)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// announce sends the identity event the gateway expects right after the
// handshake.
func (c *Channel) announce(conn *websocket.Conn, identity Identity) error {
	event := constants.EventAuthUser
	if identity.UserType == models.UserTypeProvider {
		event = constants.EventAuthProvider
	}
	payload, _ := json.Marshal(map[string]string{"userId": identity.UserID})
	return c.writeMessage(conn, models.WSMessage{Event: event, Data: payload})
}

// Emit sends a named event. When the channel is not connected the event is
// dropped and ErrNotConnected returned; nothing is queued for later.
func (c *Channel) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		observability.EventsDropped.WithLabelValues(event).Inc()
		logger.Debug("dropping event on disconnected channel", logger.String("event", event))
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	if err := c.writeMessage(conn, models.WSMessage{Event: event, Data: data}); err != nil {
		observability.EventsDropped.WithLabelValues(event).Inc()
		return fmt.Errorf("failed to emit %s: %w", event, err)
	}

	observability.EventsEmitted.WithLabelValues(event).Inc()
	return nil
}

func (c *Channel) writeMessage(conn *websocket.Conn, msg models.WSMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// On registers a handler for event. Multiple handlers may coexist; they run
// in subscription order.
func (c *Channel) On(event string, handler Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subs[event] = append(c.subs[event], subscription{id: id, handler: handler})
	return &channelSubscription{ch: c, event: event, id: id}
}

func (c *Channel) off(event string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subs[event]
	for i, s := range subs {
		if s.id == id {
			c.subs[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		var msg models.WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("discarding malformed channel message", logger.Err(err))
			continue
		}

		observability.EventsReceived.WithLabelValues(msg.Event).Inc()
		c.dispatch(msg)
	}
}

// dispatch runs handlers serially so per-event ordering is preserved.
func (c *Channel) dispatch(msg models.WSMessage) {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs[msg.Event]))
	copy(subs, c.subs[msg.Event])
	c.mu.Unlock()

	for _, s := range subs {
		s.handler(msg.Data)
	}
}

func (c *Channel) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	c.conn = nil
	identity := c.identity
	c.mu.Unlock()

	conn.Close()
	observability.ChannelState.Set(0)
	logger.Warn("channel connection lost, reconnecting", logger.Err(cause))

	c.reconnect(identity)
}

// reconnect retries the handshake within the retry budget. On success the
// identity is re-announced and the read loop restarted; on exhaustion the
// channel goes DISCONNECTED and the degraded handler fires.
func (c *Channel) reconnect(identity Identity) {
	ctx := context.Background()

	err := c.retrier.Execute(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		observability.ChannelReconnects.Inc()
		conn, err := c.dial(ctx)
		if err != nil {
			return err
		}
		if err := c.announce(conn, identity); err != nil {
			conn.Close()
			return err
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()

		observability.ChannelState.Set(1)
		logger.Info("channel reconnected", logger.String("user_id", identity.UserID))
		go c.readLoop(conn)
		return nil
	})

	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		degraded := c.onDegraded
		c.mu.Unlock()

		logger.Error("channel reconnection budget exhausted", logger.Err(err))
		if degraded != nil {
			degraded()
		}
	}
}

// Close tears the connection down and stops reconnection. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	observability.ChannelState.Set(0)
	logger.Info("channel closed")
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) teardown(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()
	conn.Close()
	observability.ChannelState.Set(0)
}
