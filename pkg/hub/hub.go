// Package hub fans tracker status out to websocket clients using the
// channel-based register/broadcast pattern. Payloads are JSON; a
// client that cannot keep up is dropped rather than allowed to stall
// everyone else.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Group6Cameo/go-cameo/internal/log"
)

// Hub maintains the set of active clients and broadcasts to them.
type Hub struct {
	// Name for logging
	name string

	// Registered clients
	clients map[*Client]bool

	// Inbound payloads to broadcast
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Guards clients, running, and last
	mu sync.RWMutex

	running bool

	// Latest payload, replayed to clients as they connect so a fresh
	// dashboard renders immediately.
	last []byte
}

// New creates a hub.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set until the context is cancelled.
// Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.setRunning(true)
	defer h.setRunning(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			log.Info("hub stopped", "hub", h.name)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			last := h.last
			h.mu.Unlock()
			if last != nil {
				select {
				case client.send <- last:
				default:
				}
			}
			log.Debug("client connected", "hub", h.name, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("client disconnected", "hub", h.name, "remaining", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			h.last = payload
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Client's buffer is full - they're too slow.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropping slow client", "hub", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a payload for every connected client. A full queue
// drops the payload; the next snapshot supersedes it anyway.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		log.Warn("broadcast queue full, dropping payload", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts a value.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}
