// Package realtime pushes domain events to connected websocket clients.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/folio/internal/events"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	clientBuffer   = 64
	writeTimeout   = 5 * time.Second
	heartbeatEvery = 30 * time.Second
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type      string           `json:"type"`
	Module    string           `json:"module,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Data      events.EventData `json:"data,omitempty"`
}

type client struct {
	userID string
	admin  bool
	send   chan Message
}

// Hub fans bus events out to the websocket connections of the affected user.
// System events without a user go to administrators.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	done    chan struct{}
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Subscribe registers the hub on bus for every event type.
func (h *Hub) Subscribe(bus *events.Bus) uint64 {
	return bus.Subscribe(h.Broadcast)
}

// Broadcast queues event for every interested client. A client whose buffer is
// full misses the event rather than blocking the publisher.
func (h *Hub) Broadcast(event *events.Event) {
	msg := Message{
		Type:      string(event.Type),
		Module:    event.Module,
		Timestamp: event.Timestamp,
		Data:      event.Data,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if event.UserID != "" && c.userID != event.UserID {
			continue
		}
		if event.UserID == "" && !c.admin {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.log.Warn().
				Str("event_type", msg.Type).
				Str("user_id", c.userID).
				Msg("Client buffer full, dropping event")
		}
	}
}

func (h *Hub) register(userID string, admin bool) (*client, bool) {
	c := &client{userID: userID, admin: admin, send: make(chan Message, clientBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.done)
	h.mu.Unlock()
}

// serve pumps messages for c to conn until the client goes away, the request
// ends or the hub closes.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, c *client) {
	defer h.unregister(c)

	// Clients never send anything meaningful; CloseRead handles control frames
	// and cancels ctx when the peer disconnects.
	ctx = conn.CloseRead(ctx)

	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	if err := h.write(ctx, conn, Message{Type: "connected", Timestamp: time.Now().UTC()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-h.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case msg := <-c.send:
			if err := h.write(ctx, conn, msg); err != nil {
				h.log.Debug().Err(err).Str("user_id", c.userID).Msg("Write failed, dropping client")
				return
			}
		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("user_id", c.userID).Msg("Ping failed, dropping client")
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
