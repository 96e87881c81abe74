package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"convosync/errors"
)

const DefaultBufferSize = 256

// Config configures the websocket transport client.
type Config struct {
	URL                  string // http(s) API base or ws(s) endpoint
	Token                string // access token, also used by the REST client
	UserID               string // typing payloads carry the local identity
	UserName             string
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	BufferSize           int
}

func (c *Config) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
}

// State is the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// reconnector computes the exponential backoff schedule. A connection
// that stayed healthy for over a minute resets the attempt counter.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *Config) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// Client is the websocket transport. It owns the connection lifecycle
// (dial, read loop, backoff reconnect) and exposes decoded envelopes on
// a buffered channel. Application-level catch-up is out of scope: on
// reconnect the router re-joins its rooms and REST reads stay
// authoritative.
type Client struct {
	log              *slog.Logger
	config           *Config
	mu               sync.Mutex
	conn             *websocket.Conn
	state            State
	intentionalClose bool
	recon            *reconnector
	events           chan Envelope
	dropped          atomic.Uint64
	cancelFn         context.CancelFunc
}

func NewClient(log *slog.Logger, config *Config) *Client {
	config.defaults()
	return &Client{
		log:    log,
		config: config,
		state:  StateDisconnected,
		recon:  newReconnector(config),
		events: make(chan Envelope, config.BufferSize),
	}
}

// Events delivers decoded envelopes, including the synthetic connected
// and disconnected markers.
func (c *Client) Events() <-chan Envelope {
	return c.events
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dropped reports how many envelopes were discarded because the
// consumer fell behind the buffer.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Connect establishes the websocket connection and starts the read
// loop. With AutoReconnect enabled a failed dial hands over to the
// backoff loop instead of giving up, so a server that is unreachable
// at startup is still picked up once it comes back.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting || c.state == StateReconnecting {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.intentionalClose = false
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		if c.config.AutoReconnect && c.recon.shouldReconnect() {
			go c.reconnectLoop(ctx)
		} else {
			c.mu.Lock()
			c.state = StateDisconnected
			c.mu.Unlock()
		}
		return err
	}
	return nil
}

// dial performs a single connection attempt and, on success, starts
// the read loop.
func (c *Client) dial(ctx context.Context) error {
	wsURL := strings.Replace(c.config.URL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/ws?token=" + c.config.Token

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	c.recon.markConnected()

	connCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()

	c.deliver(Envelope{Type: EventConnected})
	go c.readLoop(connCtx)

	return nil
}

// Disconnect gracefully closes the connection, without reconnecting.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.intentionalClose = true
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

// JoinRoom subscribes to a conversation's push events. Required before
// any of its events are delivered.
func (c *Client) JoinRoom(ctx context.Context, conversationID string) error {
	return c.send(ctx, Command{Type: CommandJoinRoom, Payload: RoomPayload{ConversationID: conversationID}})
}

func (c *Client) LeaveRoom(ctx context.Context, conversationID string) error {
	return c.send(ctx, Command{Type: CommandLeaveRoom, Payload: RoomPayload{ConversationID: conversationID}})
}

func (c *Client) StartTyping(ctx context.Context, conversationID string) error {
	return c.send(ctx, Command{Type: CommandTypingStart, Payload: c.typingPayload(conversationID)})
}

func (c *Client) StopTyping(ctx context.Context, conversationID string) error {
	return c.send(ctx, Command{Type: CommandTypingStop, Payload: c.typingPayload(conversationID)})
}

func (c *Client) typingPayload(conversationID string) map[string]string {
	return map[string]string{
		"conversationId": conversationID,
		"userId":         c.config.UserID,
		"userName":       c.config.UserName,
	}
}

func (c *Client) send(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return errors.ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			intentional := c.intentionalClose
			c.state = StateDisconnected
			c.conn = nil
			c.mu.Unlock()

			if intentional {
				return
			}

			c.log.Warn("Realtime channel lost", "error", err)
			c.deliver(Envelope{Type: EventDisconnected})

			if c.config.AutoReconnect && c.recon.shouldReconnect() {
				c.reconnectLoop(ctx)
			}
			return
		}

		var env Envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		c.deliver(env)
	}
}

// reconnectLoop retries with exponential backoff until connected, the
// attempt budget is exhausted, or the context is canceled.
func (c *Client) reconnectLoop(ctx context.Context) {
	for c.config.AutoReconnect && c.recon.shouldReconnect() {
		delay := c.recon.nextDelay()
		c.mu.Lock()
		if c.intentionalClose {
			c.state = StateDisconnected
			c.mu.Unlock()
			return
		}
		c.state = StateReconnecting
		c.mu.Unlock()
		c.log.Info("Reconnecting realtime channel", "attempt", c.recon.attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := c.dial(ctx); err == nil {
			return
		}
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// deliver is best-effort: a consumer that fell behind the buffer loses
// the envelope. REST reads remain the authoritative catch-up path.
func (c *Client) deliver(env Envelope) {
	select {
	case c.events <- env:
	default:
		c.dropped.Add(1)
		c.log.Warn("Realtime event dropped, consumer too slow", "type", env.Type)
	}
}
