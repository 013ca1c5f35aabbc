package gateway

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
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
)

const (
	writeTimeout    = 10 * time.Second
	clientQueueSize = 128
	shutdownReason  = "shutdown"

	MessageSnapshot = "snapshot"
	MessageState    = "state"
	MessageEntry    = "entry"
)

// LiveFeed is the live log client as the hub sees it.
type LiveFeed interface {
	Subscribe() <-chan livelog.Event
	Unsubscribe(<-chan livelog.Event)
	Entries() []larkapi.SyncLogEntry
	State() livelog.State
}

// LiveMessage is what browser clients receive. A snapshot carries the
// buffered entries, newest first; an entry carries one new entry.
type LiveMessage struct {
	Type    string                 `json:"type"`
	State   livelog.State          `json:"state"`
	Entry   *larkapi.SyncLogEntry  `json:"entry,omitempty"`
	Entries []larkapi.SyncLogEntry `json:"entries,omitempty"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	tx   chan *LiveMessage
}

// LiveHub re-broadcasts one live feed to any number of WebSocket clients.
// A client that cannot keep up misses messages rather than stall the others.
type LiveHub struct {
	feed LiveFeed

	mu      sync.RWMutex
	clients map[string]*hubClient
}

func NewLiveHub(feed LiveFeed) *LiveHub {
	return &LiveHub{
		feed:    feed,
		clients: make(map[string]*hubClient),
	}
}

// Run forwards feed events until ctx is done, then closes every client.
func (h *LiveHub) Run(ctx context.Context) {
	slog.Info("livehub started")
	defer slog.Info("livehub stopped")

	events := h.feed.Subscribe()
	defer h.feed.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			msg := &LiveMessage{Type: MessageState, State: ev.State}
			if ev.Entry != nil {
				msg.Type = MessageEntry
				msg.Entry = ev.Entry
			}
			h.broadcast(msg)
		}
	}
}

func (h *LiveHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *LiveHub) broadcast(msg *LiveMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.tx <- msg:
		default:
			slog.Warn("livehub send buffer full", "conn", client.id)
		}
	}
}

func (h *LiveHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.conn.Close(websocket.StatusGoingAway, shutdownReason)
		delete(h.clients, id)
	}
}

// Handler upgrades the request and serves the client until either side
// goes away.
func (h *LiveHub) Handler(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// the gateway already checked the token; browser origins vary
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("livehub accept", "error", err)
		return
	}

	client := &hubClient{
		id:   uuid.NewString()[:8],
		conn: conn,
		tx:   make(chan *LiveMessage, clientQueueSize),
	}

	// the snapshot goes out before the client can receive broadcasts
	client.tx <- &LiveMessage{
		Type:    MessageSnapshot,
		State:   h.feed.State(),
		Entries: h.feed.Entries(),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	active := len(h.clients)
	h.mu.Unlock()
	slog.Debug("livehub registered", "conn", client.id, "active", active)

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		conn.CloseNow()
		slog.Debug("livehub removed", "conn", client.id)
	}()

	// clients never send anything; CloseRead handles control frames
	ctx := conn.CloseRead(c.Request.Context())
	h.writeLoop(ctx, client)
}

func (h *LiveHub) writeLoop(ctx context.Context, client *hubClient) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.tx:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, client.conn, msg)
			cancel()
			if err != nil {
				if !isClosedError(err) {
					slog.Warn("livehub write", "conn", client.id, "error", err)
				}
				return
			}
		}
	}
}

func isClosedError(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, http.ErrServerClosed)
}
