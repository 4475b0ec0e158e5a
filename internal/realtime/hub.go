package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/observability"
)

// Client is one authenticated connection as seen by the hub. Outbound
// frames are queued on a bounded buffer drained by the connection's writer.
type Client struct {
	ID       string
	Identity domain.Identity

	send      chan []byte
	rooms     map[string]struct{}
	closeOnce sync.Once
}

// NewClient creates a client with a send buffer of the given size.
func NewClient(identity domain.Identity, buffer int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, buffer),
		rooms:    make(map[string]struct{}),
	}
}

// Outbound is closed when the hub drops the client.
func (c *Client) Outbound() <-chan []byte { return c.send }

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Hub tracks connections and room memberships for this instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

var _ Publisher = (*Hub)(nil)

// Register adds c to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observability.RealtimeConnections.Inc()
}

// Unregister removes c and all of its memberships and closes its buffer.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		for room := range c.rooms {
			h.leaveLocked(c, room)
		}
		c.close()
	}
	h.mu.Unlock()

	if ok {
		observability.RealtimeConnections.Dec()
	}
}

// Join subscribes c to room. Joining twice is harmless.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave unsubscribes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Members reports how many connections are in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish delivers event to every connection in room on this instance.
func (h *Hub) Publish(_ context.Context, room, event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	observability.EventsPublished.WithLabelValues(event).Inc()
	h.deliverRoom(room, frame)
	return nil
}

// Broadcast delivers event to every connection on this instance.
func (h *Hub) Broadcast(_ context.Context, event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	observability.EventsPublished.WithLabelValues(event).Inc()
	h.deliverAll(frame)
	return nil
}

// SendTo queues a frame for a single connection.
func (h *Hub) SendTo(c *Client, event string, payload any) error {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	h.mu.RLock()
	var slow []*Client
	if _, ok := h.clients[c]; ok && !trySend(c, frame) {
		slow = append(slow, c)
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
	return nil
}

func (h *Hub) deliverRoom(room string, frame []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.rooms[room] {
		if !trySend(c, frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
}

func (h *Hub) deliverAll(frame []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		if !trySend(c, frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
}

// dropSlow disconnects clients whose buffer was full. They are expected to
// reconnect and resync through the query API.
func (h *Hub) dropSlow(slow []*Client) {
	for _, c := range slow {
		h.logger.Warn("dropping slow realtime client", "client_id", c.ID, "identity", c.Identity.ID)
		observability.SlowClientsDropped.Inc()
		h.Unregister(c)
	}
}

// trySend must be called with h.mu held for reading; buffers are only
// closed under the write lock.
func trySend(c *Client, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
