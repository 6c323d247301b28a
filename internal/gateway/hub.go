// Package gateway is the WebSocket transport: it binds one authenticated
// socket to one session and mediates commands in and events out. Telemetry
// frames are coalesced under backpressure; guaranteed events (command
// results, step changes, state changes, alerts) are never dropped — a client
// that cannot keep up is disconnected and must resync.
package gateway

import (
	"sync"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// Hub fans session events out to the connected clients. It implements the
// runner's Broadcaster contract.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // session id -> clients
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

// Broadcast delivers an event to every client attached to the session.
func (h *Hub) Broadcast(sessionID string, ev domain.Event) {
	h.mu.RLock()
	set := h.clients[sessionID]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.deliver(ev)
	}
}

// ClientCount returns the number of clients attached to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
	h.mu.Unlock()
}
