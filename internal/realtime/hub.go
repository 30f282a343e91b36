// Package realtime fans processed messages out to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/models"
)

// Event types.
const (
	EventMessageNew  = "message:new"
	EventTaskCreated = "task:created"
	EventTaskUpdated = "task:updated"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Event is one frame sent to clients.
type Event struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
	Task    *models.Task    `json:"task,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts events to every connected client. A client whose buffer is
// full misses frames instead of stalling the others.
type Hub struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	buffer   int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	dropped atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-client frame buffer.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginCheck replaces the upgrader's origin check.
func WithOriginCheck(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// NewHub creates a hub. Any origin is accepted unless WithOriginCheck says
// otherwise.
func NewHub(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: logger.With().Str("component", "realtime").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		buffer:  32,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	if !h.add(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readLoop discards client frames; it exists to notice disconnects and
// answer pings.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Msg("client read error")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues ev for every client.
func (h *Hub) Broadcast(ev Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.dropped.Add(1)
			h.logger.Warn().Str("type", ev.Type).Msg("client too slow, frame dropped")
		}
	}
}

// Notify implements intake.Notifier: the stored message first, then one
// frame per created and updated task.
func (h *Hub) Notify(_ context.Context, res *intake.Result) {
	msg := res.Message
	h.Broadcast(Event{Type: EventMessageNew, Message: &msg})
	for i := range res.Created {
		h.Broadcast(Event{Type: EventTaskCreated, Task: &res.Created[i]})
	}
	for i := range res.Updated {
		h.Broadcast(Event{Type: EventTaskUpdated, Task: &res.Updated[i]})
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many frames were dropped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
