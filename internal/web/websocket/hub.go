// Package websocket streams activity events to dashboard clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/activity"
)

// replaySize is how many recent events a new client receives on connect
const replaySize = 20

// Hub fans activity events out to connected clients. It implements
// activity.Publisher.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan activity.Event

	mu      sync.RWMutex
	clients map[*Client]struct{}
	recent  []activity.Event

	logger *zap.Logger
	done   chan struct{}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan activity.Event, 256),
		clients:    make(map[*Client]struct{}),
		logger:     logger.Named("ws"),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			replay := append([]activity.Event(nil), h.recent...)
			h.mu.Unlock()
			for _, e := range replay {
				h.deliver(c, e)
			}
			h.logger.Debug("client connected", zap.String("client", c.ID), zap.Int("clients", h.ClientCount()))

		case c := <-h.unregister:
			h.remove(c)

		case e := <-h.broadcast:
			h.mu.Lock()
			h.recent = append(h.recent, e)
			if len(h.recent) > replaySize {
				h.recent = h.recent[len(h.recent)-replaySize:]
			}
			targets := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.Unlock()
			for _, c := range targets {
				h.deliver(c, e)
			}
		}
	}
}

// Done is closed when Run returns
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Publish queues an event for every client. It never blocks; events are
// dropped when the hub is saturated.
func (h *Hub) Publish(e activity.Event) {
	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("activity broadcast full, event dropped", zap.String("type", e.Type))
	}
}

// ClientCount is the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Recent returns the replay buffer, oldest first
func (h *Hub) Recent() []activity.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]activity.Event(nil), h.recent...)
}

func (h *Hub) deliver(c *Client, e activity.Event) {
	if !c.wants(e.Type) {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("failed to encode event", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("client too slow, disconnecting", zap.String("client", c.ID))
		h.remove(c)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
