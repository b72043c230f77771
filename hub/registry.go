package hub

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"dispatch-gateway/metrics"

	"github.com/sirupsen/logrus"
)

// RoomID names a set of connections. Rooms only exist while they have members.
type RoomID string

const (
	// AdminRoom is shared by every back-office connection.
	AdminRoom RoomID = "admin"

	userRoomPrefix = "user:"
)

// UserRoom is the private room of one actor; all of its tabs join it.
func UserRoom(actorID string) RoomID {
	return RoomID(userRoomPrefix + actorID)
}

// IsUserRoom reports whether r is a per-actor room.
func (r RoomID) IsUserRoom() bool {
	return strings.HasPrefix(string(r), userRoomPrefix)
}

// Sink receives events addressed to one connection. Send must not block.
type Sink interface {
	ID() string
	Send(event string, payload any) bool
}

type (
	member struct {
		sink    Sink
		actorID string
		rooms   map[RoomID]struct{}
	}

	// Stats is a point-in-time view of the registry.
	Stats struct {
		Connections  int `json:"connections"`
		Rooms        int `json:"rooms"`
		AdminMembers int `json:"adminMembers"`
	}

	// Registry tracks live connections and their room memberships. Every
	// method is safe for concurrent use and never blocks on I/O.
	Registry struct {
		mu      sync.RWMutex
		members map[string]*member
		rooms   map[RoomID]map[string]struct{}
		metrics *metrics.Metrics
	}
)

// NewRegistry creates an empty registry.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		members: make(map[string]*member),
		rooms:   make(map[RoomID]map[string]struct{}),
		metrics: m,
	}
}

// Register adds a freshly connected sink with no rooms.
func (r *Registry) Register(sink Sink) error {
	id := sink.ID()
	if id == "" {
		return fmt.Errorf("connection id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[id]; exists {
		return fmt.Errorf("connection %s is already registered", id)
	}
	r.members[id] = &member{sink: sink, rooms: make(map[RoomID]struct{})}
	r.metrics.ConnectionOpened()
	logrus.WithField("conn_id", id).Debug("Connection registered")
	return nil
}

// Join adds the connection to room. Joining twice is a no-op, and joining a
// user room moves the connection out of any other user room. It returns
// false when the connection is not registered.
func (r *Registry) Join(connID string, room RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return false
	}
	if _, joined := m.rooms[room]; joined {
		return true
	}

	if room.IsUserRoom() {
		for current := range m.rooms {
			if current.IsUserRoom() {
				r.removeLocked(connID, m, current)
			}
		}
	}

	m.rooms[room] = struct{}{}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[string]struct{})
		r.rooms[room] = set
	}
	set[connID] = struct{}{}
	return true
}

// Identify records the actor a connection speaks for.
func (r *Registry) Identify(connID, actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[connID]; ok {
		m.actorID = actorID
	}
}

// Leave removes the connection from room.
func (r *Registry) Leave(connID string, room RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.members[connID]; ok {
		r.removeLocked(connID, m, room)
	}
}

// Unregister drops the connection and all of its memberships in one step.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[connID]
	if !ok {
		return
	}
	for room := range m.rooms {
		r.removeLocked(connID, m, room)
	}
	delete(r.members, connID)
	r.metrics.ConnectionClosed()
	logrus.WithField("conn_id", connID).Debug("Connection unregistered")
}

func (r *Registry) removeLocked(connID string, m *member, room RoomID) {
	delete(m.rooms, room)
	set, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}

// MembersOf returns the sorted connection ids currently in room.
func (r *Registry) MembersOf(room RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomsOf returns the sorted rooms a connection belongs to.
func (r *Registry) RoomsOf(connID string) []RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[connID]
	if !ok {
		return nil
	}
	rooms := make([]RoomID, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// ActorOf returns the actor id announced by join-user-room, if any.
func (r *Registry) ActorOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[connID]
	if !ok || m.actorID == "" {
		return "", false
	}
	return m.actorID, true
}

// Registered reports whether the connection is live.
func (r *Registry) Registered(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[connID]
	return ok
}

// Stats counts live connections, non-empty rooms and admin room members.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Connections:  len(r.members),
		Rooms:        len(r.rooms),
		AdminMembers: len(r.rooms[AdminRoom]),
	}
}

// sinksIn snapshots the sinks of room, skipping except.
func (r *Registry) sinksIn(room RoomID, except string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[room]
	sinks := make([]Sink, 0, len(set))
	for id := range set {
		if id == except {
			continue
		}
		sinks = append(sinks, r.members[id].sink)
	}
	return sinks
}

// allSinks snapshots every registered sink, skipping except.
func (r *Registry) allSinks(except string) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]Sink, 0, len(r.members))
	for id, m := range r.members {
		if id == except {
			continue
		}
		sinks = append(sinks, m.sink)
	}
	return sinks
}
