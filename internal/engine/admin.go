package engine

import (
	"github.com/mvoronin/parlor/internal/core"
	"github.com/mvoronin/parlor/internal/domain"
)

// The administrative surface is called directly by the hosting
// application, outside the transport event flow.

// SendToRoom multicasts an arbitrary event to every connection
// subscribed to the room and returns the delivered count. Unknown
// rooms deliver to nobody.
func (e *Engine) SendToRoom(room domain.RoomID, event string, data any) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fanout(room, adminEvent{Type: event, Data: data})
}

// SendToUser unicasts to the identity's bound connection. Unbound
// identities are silently dropped; there is no queuing for later
// delivery.
func (e *Engine) SendToUser(user domain.UserID, event string, data any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cid, ok := e.connByUser[user]
	if !ok {
		return false
	}
	return e.unicast(cid, adminEvent{Type: event, Data: data})
}

// ListRoomUsers returns the room's current members in map iteration
// order, or an empty slice for an unknown room.
func (e *Engine) ListRoomUsers(room domain.RoomID) []domain.UserID {
	e.mu.Lock()
	defer e.mu.Unlock()
	members := e.rooms[room]
	out := make([]domain.UserID, 0, len(members))
	for u := range members {
		out = append(out, u)
	}
	return out
}

// ListRooms returns the identifiers of all rooms that currently exist.
func (e *Engine) ListRooms() []domain.RoomID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.RoomID, 0, len(e.rooms))
	for room := range e.rooms {
		out = append(out, room)
	}
	return out
}

// UserConn reports the connection currently bound to an identity.
func (e *Engine) UserConn(user domain.UserID) (core.ConnID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cid, ok := e.connByUser[user]
	return cid, ok
}
