// Package channel owns the persistent duplex connection to the comic
// backend. It exposes a narrow connect/send/receive/close surface and
// surfaces connectivity transitions to its owner; it never interprets
// event payloads. Reconnection is a policy decision owned by the
// session, not by this package.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kriswu/inkstone/internal/wire"
)

// State is the channel connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ErrNotConnected is returned by Send while the channel is down.
var ErrNotConnected = errors.New("channel: not connected")

// ConnectivityError wraps a transport-level failure.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Config holds channel settings.
type Config struct {
	// URL is the ws:// or wss:// backend endpoint.
	URL string
	// HandshakeTimeout bounds the websocket dial. Defaults to 10s.
	HandshakeTimeout time.Duration
	// FrameBuffer is the incoming frame channel capacity. Defaults to 32.
	FrameBuffer int
}

// Channel is one persistent duplex connection. All methods are safe
// for concurrent use.
type Channel struct {
	cfg    Config
	logger *slog.Logger

	frames chan wire.Frame
	errs   chan error

	mu          sync.Mutex
	writeMu     sync.Mutex
	state       State
	conn        *websocket.Conn
	onState     func(State)
	transitions chan State
	gen         int           // connection generation, stale read pumps no-op
	quit        chan struct{} // closed on Close, unblocks the pump's frame send
}

// New creates a disconnected channel.
func New(cfg Config, logger *slog.Logger) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		cfg:         cfg,
		logger:      logger,
		frames:      make(chan wire.Frame, cfg.FrameBuffer),
		errs:        make(chan error, 4),
		transitions: make(chan State, 16),
		state:       StateDisconnected,
	}
	go c.notifyLoop()
	return c
}

// notifyLoop delivers state transitions to the listener in order, one
// at a time, outside the channel lock.
func (c *Channel) notifyLoop() {
	for s := range c.transitions {
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	}
}

// OnStateChange registers the transition listener. Each transition is
// delivered exactly once. Must be called before Connect.
func (c *Channel) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Frames returns the incoming frame stream. The channel is never
// closed; consumers should also watch Errors for connection loss.
func (c *Channel) Frames() <-chan wire.Frame { return c.frames }

// Errors reports connectivity failures from the read pump.
func (c *Channel) Errors() <-chan error { return c.errs }

// Connect dials the backend. Calling while connecting or connected is
// a no-op. On failure the channel transitions back to disconnected and
// the dial error is returned; no automatic retry happens here.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		cerr := &ConnectivityError{Op: "connect", Err: err}
		c.reportError(cerr)
		return cerr
	}

	c.mu.Lock()
	c.conn = conn
	c.gen++
	gen := c.gen
	quit := make(chan struct{})
	c.quit = quit
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	go c.readPump(conn, gen, quit)
	c.logger.Info("channel connected", "url", c.cfg.URL)
	return nil
}

// Send writes one frame. It fails with ErrNotConnected while the
// channel is down and never panics on payload marshal problems.
func (c *Channel) Send(event string, payload any) error {
	frame, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		return &ConnectivityError{Op: "send " + event, Err: err}
	}
	c.logger.Debug("frame sent", "event", event)
	return nil
}

// Close tears the connection down. It always succeeds and is safe to
// call repeatedly.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.gen++ // invalidate the running read pump
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	return nil
}

// readPump delivers incoming frames until the connection drops. A pump
// whose generation no longer matches belongs to a closed connection
// and exits silently, even while blocked on a full frame buffer.
func (c *Channel) readPump(conn *websocket.Conn, gen int, quit <-chan struct{}) {
	for {
		var frame wire.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			if !stale {
				c.conn = nil
				c.setStateLocked(StateDisconnected)
			}
			c.mu.Unlock()
			if !stale {
				c.reportError(&ConnectivityError{Op: "read", Err: err})
				c.logger.Warn("channel read failed", "error", err)
			}
			return
		}

		select {
		case c.frames <- frame:
		case <-quit:
			return
		}
	}
}

// setStateLocked records a transition and notifies the listener once.
// Callers hold c.mu.
func (c *Channel) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	select {
	case c.transitions <- next:
	default:
		c.logger.Warn("state transition listener lagging, dropping notification", "state", next)
	}
}

func (c *Channel) reportError(err error) {
	select {
	case c.errs <- err:
	default:
		c.logger.Debug("dropping connectivity error, queue full", "error", err)
	}
}
