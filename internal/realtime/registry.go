package realtime

import (
	"sort"
	"sync"
	"time"
)

// Peer is the outbound side of one live connection.
type Peer interface {
	ID() string
	// Send queues msg without blocking and reports whether it was accepted.
	Send(msg WSMessage) bool
}

// ConnInfo is the identity attached to a connection at upgrade time.
type ConnInfo struct {
	UserID      string
	Role        string
	ConnectedAt time.Time
}

type conn struct {
	peer  Peer
	info  ConnInfo
	rooms map[string]struct{}
}

// Registry maps live connections to the rooms they joined.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*conn
	// room -> connID -> peer
	rooms map[string]map[string]Peer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*conn),
		rooms: make(map[string]map[string]Peer),
	}
}

// Add registers a connection with no rooms.
func (r *Registry) Add(p Peer, info ConnInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[p.ID()] = &conn{peer: p, info: info, rooms: make(map[string]struct{})}
}

// Remove drops a connection and its memberships. It returns the rooms that
// no longer have any local member.
func (r *Registry) Remove(connID string) (emptied []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	for room := range c.rooms {
		members := r.rooms[room]
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
			emptied = append(emptied, room)
		}
	}
	delete(r.conns, connID)
	sort.Strings(emptied)
	return emptied
}

// Join adds connID to room. first reports whether connID is the room's first
// local member. Joining twice is a no-op; unknown connections are ignored.
func (r *Registry) Join(connID, room string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	if _, ok := c.rooms[room]; ok {
		return false
	}
	c.rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Peer)
		r.rooms[room] = members
	}
	members[connID] = c.peer
	return len(members) == 1
}

// Peer returns the connection with the given id.
func (r *Registry) Peer(connID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return c.peer, true
}

// Info returns the identity of a connection.
func (r *Registry) Info(connID string) (ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return ConnInfo{}, false
	}
	return c.info, true
}

// Members snapshots the local members of room, skipping except.
func (r *Registry) Members(room, except string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	out := make([]Peer, 0, len(members))
	for id, p := range members {
		if id != except {
			out = append(out, p)
		}
	}
	return out
}

// Rooms returns the rooms connID has joined.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// RoomSize returns the number of local members of room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
