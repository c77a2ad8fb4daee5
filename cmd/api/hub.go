package main

import "sync"

// EventSender defines the minimal interface the hub needs from a live
// connection: the ability to push a server event to the connected client.
type EventSender interface {
	Send(e *Event) error
}

// connection is the hub's ephemeral record of one live client connection:
// who owns it and which chat rooms it has joined.
type connection struct {
	id     int64
	userID string
	sender EventSender
	rooms  map[string]struct{}
}

// Hub tracks live connections per user and per chat room. It is the single
// shared mutable structure of the realtime layer: every delivery path
// (personal channel, chat room, single connection) goes through it. State is
// in-memory only and rebuilt empty on restart; delivery state lives in the
// message store, not here.
type Hub struct {
	mu     sync.RWMutex
	nextID int64
	conns  map[int64]*connection
	users  map[string]map[int64]*connection
	rooms  map[string]map[int64]*connection
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[int64]*connection),
		users: make(map[string]map[int64]*connection),
		rooms: make(map[string]map[int64]*connection),
	}
}

// Register registers a live connection for the given user and returns a
// connection id used later to unregister it. A user may hold any number of
// concurrent connections; each is an equally valid delivery target.
func (h *Hub) Register(userID string, s EventSender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	c := &connection{id: h.nextID, userID: userID, sender: s, rooms: make(map[string]struct{})}
	h.conns[c.id] = c

	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[int64]*connection)
	}
	h.users[userID][c.id] = c
	return c.id
}

// Unregister removes a connection and all of its room memberships.
// Unregistering the last connection of a user removes the user's entry
// entirely, so the maps never leak.
func (h *Hub) Unregister(userID string, connID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)

	if conns, ok := h.users[userID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}

	for room := range c.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// Join subscribes a connection to a chat's broadcast group. Idempotent; a
// connection's memberships are released when it unregisters.
func (h *Hub) Join(connID int64, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	c.rooms[chatID] = struct{}{}

	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[int64]*connection)
	}
	h.rooms[chatID][connID] = c
}

// ConnectionsOf returns the ids of the user's live connections.
func (h *Hub) ConnectionsOf(userID string) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]int64, 0, len(h.users[userID]))
	for id := range h.users[userID] {
		ids = append(ids, id)
	}
	return ids
}

// SendToUser delivers an event to every live connection of the user, the
// personal-channel path. Best-effort and unacknowledged: an offline user is
// not an error, and connections whose send fails are pruned so the hub does
// not keep broken streams around.
func (h *Hub) SendToUser(userID string, e *Event) {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, e, "")
}

// SendToChat delivers an event to every connection currently joined to the
// chat's room. Connections owned by exceptUserID are skipped (used for
// typing, which never echoes back to its author).
func (h *Hub) SendToChat(chatID string, e *Event, exceptUserID string) {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.rooms[chatID]))
	for _, c := range h.rooms[chatID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(targets, e, exceptUserID)
}

// SendToConn delivers an event to a single connection, used by offline
// replay to address the newly live connection only.
func (h *Hub) SendToConn(connID int64, e *Event) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	h.deliver([]*connection{c}, e, "")
}

// deliver sends outside the hub lock so a slow or blocked client cannot
// stall unrelated registrations or broadcasts.
func (h *Hub) deliver(targets []*connection, e *Event, exceptUserID string) {
	for _, c := range targets {
		if exceptUserID != "" && c.userID == exceptUserID {
			continue
		}
		if err := c.sender.Send(e); err != nil {
			h.Unregister(c.userID, c.id)
		}
	}
}
