package relay

import (
	"sync"
)

// Hub tracks the sessions that currently have a running reader loop.
// The dispatcher owns one Hub and uses it to close everything on shutdown.
type Hub struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Unregister removes a session from the hub.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.ID)
}

// Count returns number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll closes the connection of every registered session and returns
// how many were closed. Sessions stay registered until their loops exit.
func (h *Hub) CloseAll() int {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.sessions))
	for _, s := range h.sessions {
		conns = append(conns, s.Conn)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return len(conns)
}
