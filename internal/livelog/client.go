// Package livelog keeps a best-effort WebSocket connection to the backend's
// live log endpoint and buffers what it pushes.
package livelog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/larksync/larksync-console/internal/larkapi"
)

const (
	// ReconnectDelay is the fixed wait between a disconnect and the next dial.
	ReconnectDelay = 5 * time.Second

	dialTimeout         = 10 * time.Second
	maxMessageSize      = 1 << 20
	subscriberQueueSize = 64
)

// State is the connection state of a Client.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// Event is delivered to subscribers on every state change and every entry.
// Entry is nil for state changes.
type Event struct {
	State State
	Entry *larkapi.SyncLogEntry
}

type Options struct {
	URL            string
	Token          string
	ReconnectDelay time.Duration
	BufferSize     int
}

// Client owns at most one socket at a time. Dialing and reading happen on
// the goroutine that calls Run, so a new dial only starts after the previous
// socket is gone.
type Client struct {
	url   string
	token string
	delay time.Duration
	ring  *Ring

	mu    sync.RWMutex
	state State

	subsMu sync.RWMutex
	subs   []chan Event
}

func New(opts Options) *Client {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = ReconnectDelay
	}

	return &Client{
		url:   opts.URL,
		token: opts.Token,
		delay: delay,
		ring:  NewRing(opts.BufferSize),
		state: StateDisconnected,
	}
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Entries returns the buffered entries, newest first
func (c *Client) Entries() []larkapi.SyncLogEntry {
	return c.ring.Snapshot()
}

// Subscribe returns a channel of events. Slow subscribers miss events rather
// than block the socket.
func (c *Client) Subscribe() <-chan Event {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	ch := make(chan Event, subscriberQueueSize)
	c.subs = append(c.subs, ch)
	return ch
}

func (c *Client) Unsubscribe(ch <-chan Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for i, sub := range c.subs {
		if sub == ch {
			close(sub)
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Client) broadcast(ev Event) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for _, sub := range c.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed {
		c.broadcast(Event{State: s})
	}
}

// Run connects and reconnects until ctx is cancelled. Cancelling ctx closes
// the open socket and stops any pending reconnect; nothing is dialed after
// Run returns.
func (c *Client) Run(ctx context.Context) {
	slog.Debug("livelog start", "url", c.url)
	defer slog.Debug("livelog stopped", "url", c.url)

	for {
		c.setState(StateConnecting)
		err := c.session(ctx)
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}
		if err != nil && !isExpectedCloseError(err) {
			slog.Warn("livelog disconnected", "error", err, "retry", c.delay)
		} else {
			slog.Info("livelog disconnected", "retry", c.delay)
		}

		timer := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials once and reads until the socket goes away.
func (c *Client) session(ctx context.Context) error {
	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	conn.SetReadLimit(maxMessageSize)
	c.setState(StateConnected)
	slog.Info("livelog connected", "url", c.url)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "shutdown")
			}
			return err
		}

		var entry larkapi.SyncLogEntry
		if err := larkapi.Unmarshal(data, &entry); err != nil {
			slog.Debug("livelog dropped malformed message", "error", err)
			continue
		}

		c.ring.Push(entry)
		c.broadcast(Event{State: StateConnected, Entry: &entry})
	}
}

// isExpectedCloseError returns true if the error is an orderly connection closure
func isExpectedCloseError(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return true
	}

	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
