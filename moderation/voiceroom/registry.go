// Ephemeral voice rooms: created when a member joins the creation channel, owned by one member at a time, handed over when the owner leaves, and deleted once empty.
package voiceroom

import (
	"errors"
)

var (
	// member already owns a room, or room already has an owner
	ErrConflict = errors.New("room ownership conflict")
	// room was not created by this subsystem, or has been destroyed
	ErrNotManaged = errors.New("room is not managed")
	// requester does not own a room
	ErrNoRoom = errors.New("no owned room")
	// user-supplied value failed validation
	ErrMalformed = errors.New("malformed input")
	// transfer target is not connected to the room
	ErrNotOccupant = errors.New("target is not in the room")
)

type State int

const (
	StateNoRoom State = iota
	StateOwned
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateNoRoom:
		return "no-room"
	case StateOwned:
		return "owned"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Bidirectional owner <-> room mapping, plus the set of rooms this subsystem manages.
//
// Not safe for concurrent use. Invariants: each owner maps to at most one room, each room to at most one owner, and every owned room is managed.
type Registry struct {
	byOwner   map[string]string
	byRoom    map[string]string
	managed   map[string]bool
	destroyed map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		byOwner:   make(map[string]string),
		byRoom:    make(map[string]string),
		managed:   make(map[string]bool),
		destroyed: make(map[string]bool),
	}
}

// Registers a freshly created room. Callers check RoomByOwner first; this only enforces the precondition.
func (r *Registry) AssignNewRoom(ownerID, roomID string) error {
	if _, ok := r.byOwner[ownerID]; ok {
		return ErrConflict
	}
	if _, ok := r.byRoom[roomID]; ok || r.managed[roomID] {
		return ErrConflict
	}
	r.byOwner[ownerID] = roomID
	r.byRoom[roomID] = ownerID
	r.managed[roomID] = true
	delete(r.destroyed, roomID)
	return nil
}

func (r *Registry) RoomByOwner(ownerID string) (string, bool) {
	roomID, ok := r.byOwner[ownerID]
	return roomID, ok
}

func (r *Registry) OwnerByRoom(roomID string) (string, bool) {
	ownerID, ok := r.byRoom[roomID]
	return ownerID, ok
}

// Moves ownership of a managed room to newOwnerID, removing the previous owner's entry in the same step.
func (r *Registry) TransferOwnership(roomID, newOwnerID string) error {
	if !r.managed[roomID] {
		return ErrNotManaged
	}
	prev, hasPrev := r.byRoom[roomID]
	if hasPrev && prev == newOwnerID {
		return nil
	}
	if _, ok := r.byOwner[newOwnerID]; ok {
		return ErrConflict
	}
	if hasPrev {
		delete(r.byOwner, prev)
	}
	r.byOwner[newOwnerID] = roomID
	r.byRoom[roomID] = newOwnerID
	return nil
}

// Forgets a room entirely. Called when the room is deleted.
func (r *Registry) Release(roomID string) {
	if owner, ok := r.byRoom[roomID]; ok {
		delete(r.byOwner, owner)
		delete(r.byRoom, roomID)
	}
	if r.managed[roomID] {
		delete(r.managed, roomID)
		r.destroyed[roomID] = true
	}
}

// Drops an owner's entry whose room no longer exists on the platform.
func (r *Registry) Purge(ownerID string) {
	if roomID, ok := r.byOwner[ownerID]; ok {
		r.Release(roomID)
	}
}

// True for any live room created by this subsystem, regardless of current ownership.
func (r *Registry) IsManaged(roomID string) bool {
	return r.managed[roomID]
}

func (r *Registry) State(roomID string) State {
	switch {
	case r.managed[roomID]:
		return StateOwned
	case r.destroyed[roomID]:
		return StateDestroyed
	default:
		return StateNoRoom
	}
}

// Number of managed rooms.
func (r *Registry) Len() int {
	return len(r.managed)
}

// Copy of the owner -> room mapping.
func (r *Registry) Owners() map[string]string {
	out := make(map[string]string, len(r.byOwner))
	for k, v := range r.byOwner {
		out[k] = v
	}
	return out
}
