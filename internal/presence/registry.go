// Package presence implements location-scoped real-time player
// presence: the room registry, the per-session gateway state machine,
// the broadcast publisher, and the inactivity sweeper.
package presence

import "sync"

// Registry tracks which sessions are in which rooms. It is the single
// source of truth for room membership during the process lifetime.
// All methods are safe for concurrent use.
//
// Invariant: a session appears in at most one room's member set, and
// the session→room index always agrees with the member sets. Both
// maps are only ever mutated under the same lock, so no caller can
// observe them diverged; a detected divergence is a programming error
// and panics.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]bool // room key → set of session ids
	sessions map[string]string          // session id → room key
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[string]bool),
		sessions: make(map[string]string),
	}
}

// Join places the session in room, removing it from any prior room
// first. Joining the room the session is already in is a no-op.
//
// Precondition: sessionID and room must be non-empty.
func (r *Registry) Join(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.sessions[sessionID]; ok {
		if prior == room {
			return
		}
		r.removeLocked(sessionID, prior)
	}

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]bool)
	}
	r.rooms[room][sessionID] = true
	r.sessions[sessionID] = room
}

// Leave removes the session from its current room. Calling Leave on a
// session with no room is a no-op.
func (r *Registry) Leave(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	r.removeLocked(sessionID, room)
	delete(r.sessions, sessionID)
}

// removeLocked deletes the session from room's member set and
// garbage-collects the set if it empties. Caller holds r.mu.
func (r *Registry) removeLocked(sessionID, room string) {
	set, ok := r.rooms[room]
	if !ok || !set[sessionID] {
		// sessions and rooms are mutated together under one lock, so
		// this is unreachable unless the registry is corrupted.
		panic("presence: registry member set diverged from session index")
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}

// MembersOf returns a snapshot of the session IDs in room. Unknown
// rooms yield an empty slice, never an error.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[room]
	members := make([]string, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	return members
}

// RoomOf returns the room the session is currently in.
//
// Postcondition: Returns (room, true) if the session has joined one,
// or ("", false) otherwise.
func (r *Registry) RoomOf(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.sessions[sessionID]
	return room, ok
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// SessionCount returns the number of sessions currently in a room.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
