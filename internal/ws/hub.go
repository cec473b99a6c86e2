package ws

import (
	"log"
	"sync"

	"marketplace-chat/internal/observability"
)

// Hub maintains active websocket connections and their rooms. Two
// addressing schemes exist: per-user delivery rooms (every connection
// belonging to a user) and per-thread broadcast rooms (connections that
// explicitly joined). The hub is pure transport; presence and access
// control live with its callers.
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]*Conn
	userRooms   map[int]map[string]*Conn
	threadRooms map[int]map[string]*Conn
	joined      map[string]map[int]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:       make(map[string]*Conn),
		userRooms:   make(map[int]map[string]*Conn),
		threadRooms: make(map[int]map[string]*Conn),
		joined:      make(map[string]map[int]struct{}),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// BindUser places an authenticated connection into its user delivery room.
func (h *Hub) BindUser(connID string, userID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok || userID <= 0 {
		return
	}
	conn.UserID = userID
	if _, ok := h.userRooms[userID]; !ok {
		h.userRooms[userID] = make(map[string]*Conn)
	}
	h.userRooms[userID][connID] = conn
}

// UnbindUser releases a connection's user binding and every thread room it
// joined. Room membership was granted to the previous identity, so an
// identity change must not carry it over.
func (h *Hub) UnbindUser(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if conn.UserID > 0 {
		if room, ok := h.userRooms[conn.UserID]; ok {
			delete(room, connID)
			if len(room) == 0 {
				delete(h.userRooms, conn.UserID)
			}
		}
	}
	conn.UserID = 0
	for threadID := range h.joined[connID] {
		if room, ok := h.threadRooms[threadID]; ok {
			delete(room, connID)
			if len(room) == 0 {
				delete(h.threadRooms, threadID)
			}
		}
	}
	delete(h.joined, connID)
}

// JoinThread adds the connection to a thread's broadcast room.
func (h *Hub) JoinThread(connID string, threadID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if _, ok := h.threadRooms[threadID]; !ok {
		h.threadRooms[threadID] = make(map[string]*Conn)
	}
	h.threadRooms[threadID][connID] = conn
	if _, ok := h.joined[connID]; !ok {
		h.joined[connID] = make(map[int]struct{})
	}
	h.joined[connID][threadID] = struct{}{}
}

// InThread reports whether the connection has joined the thread's room.
func (h *Hub) InThread(connID string, threadID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.threadRooms[threadID]
	if !ok {
		return false
	}
	_, ok = room[connID]
	return ok
}

// Unregister removes the connection from the hub and from every room it
// had joined. Empty rooms are deleted outright.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)

	if conn.UserID > 0 {
		if room, ok := h.userRooms[conn.UserID]; ok {
			delete(room, connID)
			if len(room) == 0 {
				delete(h.userRooms, conn.UserID)
			}
		}
	}
	for threadID := range h.joined[connID] {
		if room, ok := h.threadRooms[threadID]; ok {
			delete(room, connID)
			if len(room) == 0 {
				delete(h.threadRooms, threadID)
			}
		}
	}
	delete(h.joined, connID)
}

// PublishToUser fans an event out to every connection attached for the
// user, across devices and tabs.
func (h *Hub) PublishToUser(userID int, event string, payload any) {
	h.mu.RLock()
	targets := snapshot(h.userRooms[userID])
	h.mu.RUnlock()
	h.deliver(targets, event, payload)
}

// PublishToThread fans an event out to every connection in the thread's
// room. A non-empty excludeConnID is skipped; typing signals use this so a
// sender never sees its own indicator echoed back.
func (h *Hub) PublishToThread(threadID int, event string, payload any, excludeConnID string) {
	h.mu.RLock()
	room := h.threadRooms[threadID]
	targets := make([]*Conn, 0, len(room))
	for id, conn := range room {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.RUnlock()
	h.deliver(targets, event, payload)
}

// BroadcastAll sends an event to every live connection; presence updates
// use this.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.mu.RLock()
	targets := snapshot(h.conns)
	h.mu.RUnlock()
	h.deliver(targets, event, payload)
}

func (h *Hub) deliver(targets []*Conn, event string, payload any) {
	for _, conn := range targets {
		if err := conn.Send(event, payload); err != nil {
			log.Printf("websocket write error conn=%s: %v", conn.ID, err)
			observability.IncWSEvent("ws_error")
			// Closing unblocks the connection's read loop, whose cleanup
			// path unregisters and detaches presence.
			_ = conn.Close()
		}
	}
}

func snapshot(room map[string]*Conn) []*Conn {
	out := make([]*Conn, 0, len(room))
	for _, conn := range room {
		out = append(out, conn)
	}
	return out
}
