package ws

import (
	"sync"

	"parkledger/backend/libs/metrics"
)

// Hub tracks connected boards.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[string]*Connection)}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
	metrics.BoardConnections.Set(float64(len(h.connections)))
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
	metrics.BoardConnections.Set(float64(len(h.connections)))
}

// Count returns the number of connected boards.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast queues msg on every board.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		conn.Send(msg)
	}
}
