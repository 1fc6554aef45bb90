package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/veldt/entryflow/internal/logging"
	"github.com/veldt/entryflow/internal/protocol"
)

const (
	// DefaultHandshakeTimeout bounds the WebSocket dial and auth handshake
	DefaultHandshakeTimeout = 10 * time.Second

	// writeWait is the time allowed to write a message to the hub
	writeWait = 10 * time.Second

	// eventBuffer is the per-subscription event queue depth. Events beyond
	// this are dropped so a slow handler cannot stall the read loop.
	eventBuffer = 16
)

// AuthError reports a rejected access token.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "hub rejected the access token"
	}
	return fmt.Sprintf("hub rejected the access token: %s", e.Message)
}

// APIError is a command failure reported by the hub.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hub error %s: %s", e.Code, e.displayMessage())
}

func (e *APIError) displayMessage() string {
	if e.Message == "" {
		return protocol.UnknownErrorMessage
	}
	return e.Message
}

// UserMessage returns the error text to surface to the user.
func (e *APIError) UserMessage() string {
	return e.displayMessage()
}

// IsAPIError extracts the hub error payload from an error chain.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Conn is an authenticated WebSocket API connection to a hub. One Conn
// multiplexes any number of concurrent commands and event subscriptions;
// every command carries a strictly increasing id and waits for the single
// result envelope echoing it.
type Conn struct {
	ws      *websocket.Conn
	seq     protocol.IDSequence
	version string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *protocol.ServerMessage
	subs    map[uint64]*subscription

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

type subscription struct {
	events chan *protocol.EventPayload
}

// Dial connects to a hub WebSocket URL (see urls.NormalizeHubAddress) and
// performs the auth handshake with the given access token. There are no
// automatic reconnects; a broken connection fails all in-flight commands
// and the caller decides what to do next.
func Dial(ctx context.Context, wsURL string, accessToken string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to hub at %s: %w", wsURL, err)
	}
	logging.LogConnection(wsURL, "connected")

	conn := &Conn{
		ws:      ws,
		pending: make(map[uint64]chan *protocol.ServerMessage),
		subs:    make(map[uint64]*subscription),
		closed:  make(chan struct{}),
	}

	if err := conn.handshake(accessToken); err != nil {
		_ = ws.Close()
		return nil, err
	}
	logging.LogConnection(wsURL, "authenticated")

	go conn.readLoop()
	return conn, nil
}

// handshake runs the auth_required/auth/auth_ok exchange before the read
// loop starts.
func (c *Conn) handshake(accessToken string) error {
	_ = c.ws.SetReadDeadline(time.Now().Add(DefaultHandshakeTimeout))
	defer func() { _ = c.ws.SetReadDeadline(time.Time{}) }()

	first, err := c.readMessage()
	if err != nil {
		return fmt.Errorf("failed to read handshake greeting: %w", err)
	}
	if first.Type != protocol.MsgTypeAuthRequired {
		return fmt.Errorf("unexpected handshake greeting %q", first.Type)
	}

	auth, err := protocol.BuildAuth(accessToken)
	if err != nil {
		return err
	}
	if err := c.write(auth); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	reply, err := c.readMessage()
	if err != nil {
		return fmt.Errorf("failed to read auth reply: %w", err)
	}
	switch reply.Type {
	case protocol.MsgTypeAuthOK:
		c.version = reply.Version
		return nil
	case protocol.MsgTypeAuthInvalid:
		return &AuthError{Message: reply.Message}
	default:
		return fmt.Errorf("unexpected auth reply %q", reply.Type)
	}
}

// Version returns the hub software version reported during the handshake.
func (c *Conn) Version() string {
	return c.version
}

// Call sends one command and waits for its result. The payload fields are
// merged into the envelope next to id and type.
func (c *Conn) Call(ctx context.Context, msgType string, payload map[string]any) (json.RawMessage, error) {
	id := c.seq.Next()
	data, err := protocol.BuildCommand(id, msgType, payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan *protocol.ServerMessage, 1)
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, c.closeError()
	default:
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	logging.LogMessage("send", msgType, id, len(data))
	if err := c.write(data); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closeError()
	case msg := <-ch:
		if !msg.Success {
			apiErr := &APIError{}
			if msg.Error != nil {
				apiErr.Code = msg.Error.Code
				apiErr.Message = msg.Error.Message
			}
			return nil, apiErr
		}
		return msg.Result, nil
	}
}

// SubscribeEvents registers for push events of one event type. The handler
// runs on a dedicated goroutine in arrival order. The returned stop
// function unsubscribes; it is safe to call exactly once.
func (c *Conn) SubscribeEvents(ctx context.Context, eventType string, handler func(*protocol.EventPayload)) (func(), error) {
	id := c.seq.Next()
	data, err := protocol.BuildSubscribe(id, eventType)
	if err != nil {
		return nil, err
	}

	// The subscription is registered before the command goes out so events
	// pushed right after the result queue up instead of being dropped. The
	// dispatch goroutine only starts once the hub confirms.
	ch := make(chan *protocol.ServerMessage, 1)
	sub := &subscription{events: make(chan *protocol.EventPayload, eventBuffer)}
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, c.closeError()
	default:
	}
	c.pending[id] = ch
	c.subs[id] = sub
	c.mu.Unlock()

	fail := func() {
		c.mu.Lock()
		delete(c.pending, id)
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub.events)
		}
		c.mu.Unlock()
	}

	if err := c.write(data); err != nil {
		fail()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
	}

	select {
	case <-ctx.Done():
		fail()
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closeError()
	case msg := <-ch:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		if !msg.Success {
			fail()
			apiErr := &APIError{}
			if msg.Error != nil {
				apiErr.Code = msg.Error.Code
				apiErr.Message = msg.Error.Message
			}
			return nil, apiErr
		}
	}

	go func() {
		for ev := range sub.events {
			handler(ev)
		}
	}()

	stop := func() {
		c.mu.Lock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s.events)
		}
		c.mu.Unlock()

		// Best effort; the hub drops subscriptions with the connection
		// anyway.
		unsubCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if _, err := c.Call(unsubCtx, protocol.MsgTypeUnsubscribe, map[string]any{"subscription": id}); err != nil {
			logging.Debug("Unsubscribe failed", zap.Uint64("subscription", id), zap.Error(err))
		}
	}
	return stop, nil
}

// Close tears the connection down, failing all in-flight commands.
func (c *Conn) Close() error {
	c.shutdown(fmt.Errorf("connection closed"))
	return c.ws.Close()
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = err
		close(c.closed)
		for id, sub := range c.subs {
			delete(c.subs, id)
			close(sub.events)
		}
		c.mu.Unlock()
	})
}

func (c *Conn) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return fmt.Errorf("connection closed")
}

// readLoop delivers results to waiting callers and events to their
// subscriptions until the connection dies.
func (c *Conn) readLoop() {
	for {
		msg, err := c.readMessage()
		if err != nil {
			logging.LogConnection(c.ws.RemoteAddr().String(), "read_failed")
			c.shutdown(fmt.Errorf("connection lost: %w", err))
			_ = c.ws.Close()
			return
		}

		switch msg.Type {
		case protocol.MsgTypeResult:
			c.mu.Lock()
			ch := c.pending[msg.ID]
			c.mu.Unlock()
			if ch != nil {
				ch <- msg
			} else {
				logging.Debug("Result for unknown command", zap.Uint64("id", msg.ID))
			}

		case protocol.MsgTypeEvent:
			// Delivery happens under the mutex: close(sub.events) also runs
			// under it, so an unsubscribe can never close the channel between
			// lookup and send. The send is non-blocking and never holds the
			// lock for long.
			c.mu.Lock()
			sub := c.subs[msg.ID]
			if sub == nil {
				c.mu.Unlock()
				logging.Debug("Event for unknown subscription", zap.Uint64("id", msg.ID))
				continue
			}
			delivered := false
			select {
			case sub.events <- msg.Event:
				delivered = true
			default:
			}
			c.mu.Unlock()
			if !delivered {
				logging.Warn("Event queue full, dropping event",
					zap.Uint64("subscription", msg.ID),
					zap.String("event_type", msg.Event.EventType),
				)
			}

		default:
			logging.Debug("Unexpected message type", zap.String("type", msg.Type))
		}
	}
}

func (c *Conn) readMessage() (*protocol.ServerMessage, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := protocol.ParseServerMessage(data)
	if err != nil {
		return nil, err
	}
	logging.LogMessage("recv", msg.Type, msg.ID, len(data))
	return msg, nil
}

func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
