// Package socket owns the single push connection to the chat backend. One
// client per process: consumers share it through the subscription registries
// instead of opening their own connections.
package socket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrNotConnected = errors.New("socket: not connected")

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultMaxReconnects    = 3
	defaultBaseDelay        = time.Second
	defaultMaxDelay         = 30 * time.Second
	writeWait               = 10 * time.Second
)

type Config struct {
	URL                  string
	Header               http.Header
	HandshakeTimeout     time.Duration
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnects
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = defaultBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = defaultMaxDelay
	}
	return cfg
}

type connectAttempt struct {
	done chan struct{}
	err  error
}

// Client maintains at most one live websocket to the messaging server and
// redistributes inbound events to registered callbacks. A failed or absent
// connection is not fatal: callers keep working over the HTTP fallback and
// the client retries in the background with exponential backoff.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	closed     bool
	attempt    *connectAttempt
	attempts   int
	retryTimer *time.Timer

	callbacks
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	c := &Client{
		cfg: cfg.withDefaults(),
		log: log,
	}
	c.callbacks.init()
	return c
}

// Connect establishes the push connection. It is idempotent: when already
// connected it returns immediately, and concurrent calls while an attempt is
// in flight share that attempt's outcome instead of dialing again. When ctx
// expires first, the attempt keeps running in the background; a late success
// still flips the connection state and notifies subscribers.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if att := c.attempt; att != nil {
		c.mu.Unlock()
		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	att := &connectAttempt{done: make(chan struct{})}
	c.attempt = att
	c.closed = false
	c.mu.Unlock()

	go c.dial(att)

	select {
	case <-att.done:
		return att.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) dial(att *connectAttempt) {
	connID := uuid.NewString()[:8]
	c.log.Debug().Str("conn_id", connID).Str("url", c.cfg.URL).Msg("dialing push channel")

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(c.cfg.URL, c.cfg.Header)

	c.mu.Lock()
	c.attempt = nil
	if err != nil {
		c.mu.Unlock()
		att.err = err
		close(att.done)
		c.log.Warn().Str("conn_id", connID).Err(err).Msg("push channel dial failed")
		c.notifyStatus(false)
		c.scheduleReconnect()
		return
	}
	if c.closed {
		// Disconnect raced the dial; drop the fresh connection.
		c.mu.Unlock()
		conn.Close()
		att.err = ErrNotConnected
		close(att.done)
		return
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.mu.Unlock()

	att.err = nil
	close(att.done)
	c.log.Info().Str("conn_id", connID).Msg("push channel connected")
	c.notifyStatus(true)

	go c.readLoop(conn, connID)
}

func (c *Client) readLoop(conn *websocket.Conn, connID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug().Str("conn_id", connID).Err(err).Msg("push channel read ended")
			break
		}
		c.dispatch(data)
	}

	c.mu.Lock()
	if c.conn != conn {
		// Superseded by a newer connection or an explicit teardown
		// already accounted for this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	voluntary := c.closed
	c.mu.Unlock()

	c.notifyStatus(false)
	if !voluntary {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms one backoff-delayed redial. Attempts are bounded;
// once exhausted only a manual Connect resumes.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.connected || c.attempt != nil {
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.log.Warn().Int("attempts", c.attempts).Msg("reconnect attempts exhausted")
		return
	}
	c.attempts++

	delay := c.cfg.ReconnectBaseDelay << uint(c.attempts)
	if delay <= 0 || delay > c.cfg.ReconnectMaxDelay {
		delay = c.cfg.ReconnectMaxDelay
	}
	c.log.Info().Int("attempt", c.attempts).Dur("delay", delay).Msg("scheduling reconnect")

	c.retryTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed || c.connected || c.attempt != nil {
			c.mu.Unlock()
			return
		}
		att := &connectAttempt{done: make(chan struct{})}
		c.attempt = att
		c.mu.Unlock()
		c.dial(att)
	})
}

// Disconnect tears the connection down and suppresses auto-reconnect. Safe
// to call when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.notifyStatus(false)
}

// IsLive reports whether the push connection is usable at this instant.
func (c *Client) IsLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil
}

// SendMessage emits a chat message over the push channel. Fire-and-forget:
// delivery confirmation arrives asynchronously as a message_sent event and
// failures as message_error events.
func (c *Client) SendMessage(receiverID, body string) error {
	return c.emit(evSendMessage, sendMessagePayload{
		ReceiverID: receiverID,
		Message:    body,
	})
}

// SendTyping emits a typing indicator for the given conversation.
func (c *Client) SendTyping(receiverID string, typing bool) error {
	return c.emit(evTyping, typingEmitPayload{
		ReceiverID: receiverID,
		IsTyping:   typing,
	})
}

func (c *Client) emit(event string, data interface{}) error {
	buf, err := encodeFrame(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, buf)
}
