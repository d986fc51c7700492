// ABOUTME: In-memory room membership registry with one lock per room
// ABOUTME: Fans out events to a snapshot of a room's live members without blocking

package rooms

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Event is an outbound notification addressed to every member of a room.
type Event struct {
	Name string
	Data any
}

// Member is a live connection that can sit in rooms.
// Deliver must not block; it returns false when the event was dropped.
type Member interface {
	ID() string
	Deliver(Event) bool
}

type room struct {
	mu      sync.Mutex
	members map[string]Member
	// dead is set once the room emptied and is being removed from the index.
	dead bool
}

// Registry tracks which members are in which rooms.
// The index lock only guards room lookup, creation and removal; membership of
// a room is guarded by that room's own mutex, so traffic in unrelated rooms
// never contends.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	// memberRooms lets LeaveAll find a member's rooms without scanning.
	memberMu    sync.Mutex
	memberRooms map[string]map[string]struct{}

	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:       make(map[string]*room),
		memberRooms: make(map[string]map[string]struct{}),
		logger:      logger.With("component", "rooms"),
	}
}

func (r *Registry) lookup(name string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[name]
}

func (r *Registry) getOrCreate(name string) *room {
	if rm := r.lookup(name); rm != nil {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[name]
	if !ok {
		rm = &room{members: make(map[string]Member)}
		r.rooms[name] = rm
	}
	return rm
}

// remove drops rm from the index if it is still the entry for name.
func (r *Registry) remove(name string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[name] == rm {
		delete(r.rooms, name)
	}
}

// Join adds the member to the room. Joining a room twice is a no-op.
func (r *Registry) Join(m Member, name string) {
	for {
		rm := r.getOrCreate(name)
		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			r.remove(name, rm)
			continue
		}
		rm.members[m.ID()] = m
		rm.mu.Unlock()
		break
	}

	r.memberMu.Lock()
	set, ok := r.memberRooms[m.ID()]
	if !ok {
		set = make(map[string]struct{})
		r.memberRooms[m.ID()] = set
	}
	set[name] = struct{}{}
	r.memberMu.Unlock()

	r.logger.Debug("joined room", "member", m.ID(), "room", name)
}

// Leave removes the member from the room. Leaving a room the member is not in
// is a no-op. Rooms that become empty are removed.
func (r *Registry) Leave(m Member, name string) {
	r.leaveRoom(m.ID(), name)

	r.memberMu.Lock()
	if set, ok := r.memberRooms[m.ID()]; ok {
		delete(set, name)
		if len(set) == 0 {
			delete(r.memberRooms, m.ID())
		}
	}
	r.memberMu.Unlock()
}

func (r *Registry) leaveRoom(memberID, name string) {
	rm := r.lookup(name)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	delete(rm.members, memberID)
	empty := len(rm.members) == 0 && !rm.dead
	if empty {
		rm.dead = true
	}
	rm.mu.Unlock()

	if empty {
		r.remove(name, rm)
	}
}

// LeaveAll removes the member from every room it joined.
func (r *Registry) LeaveAll(m Member) {
	r.memberMu.Lock()
	set := r.memberRooms[m.ID()]
	delete(r.memberRooms, m.ID())
	r.memberMu.Unlock()

	for name := range set {
		r.leaveRoom(m.ID(), name)
	}

	r.logger.Debug("left all rooms", "member", m.ID(), "rooms", len(set))
}

// Has reports whether the member is currently in the room.
func (r *Registry) Has(m Member, name string) bool {
	rm := r.lookup(name)
	if rm == nil {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	_, ok := rm.members[m.ID()]
	return ok
}

// Broadcast delivers the event to a snapshot of the room's members.
// Members joining or leaving concurrently may or may not receive it.
// An unknown or empty room is a no-op.
func (r *Registry) Broadcast(name string, ev Event) {
	rm := r.lookup(name)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	targets := lo.Values(rm.members)
	rm.mu.Unlock()

	for _, m := range targets {
		if !m.Deliver(ev) {
			r.logger.Debug("dropped event for slow member",
				"room", name,
				"event", ev.Name,
				"member", m.ID())
		}
	}
}

// Count returns the number of members in the room.
func (r *Registry) Count(name string) int {
	rm := r.lookup(name)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Members returns the number of distinct members in at least one room.
func (r *Registry) Members() int {
	r.memberMu.Lock()
	defer r.memberMu.Unlock()
	return len(r.memberRooms)
}

// Rooms returns the number of non-empty rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
