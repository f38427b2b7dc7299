// Package engine owns the in-memory membership state of the gateway:
// identity/connection bindings, room member sets, and the multicast
// index used for room fan-out. Every exported operation takes the
// engine lock, so concurrent transport events serialize here.
package engine

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mvoronin/parlor/internal/core"
	"github.com/mvoronin/parlor/internal/domain"
)

// Engine is the membership router. One instance per gateway process;
// nothing here is global, so several engines can coexist in tests.
type Engine struct {
	mu sync.Mutex

	// conns holds the live transport handle for every accepted connection.
	conns map[core.ConnID]core.Conn

	// userByConn and connByUser are mutual inverses for every bound
	// pair; any path touching one must touch the other under mu.
	userByConn map[core.ConnID]domain.UserID
	connByUser map[domain.UserID]core.ConnID

	// rooms maps a room to its member identities. A room exists iff
	// its member set is non-empty.
	rooms map[domain.RoomID]map[domain.UserID]struct{}

	// subs is the multicast index: room -> subscribed connections.
	// It is a cache derived from connByUser x rooms, never a source
	// of truth.
	subs map[domain.RoomID]map[core.ConnID]struct{}
}

func New() *Engine {
	return &Engine{
		conns:      make(map[core.ConnID]core.Conn),
		userByConn: make(map[core.ConnID]domain.UserID),
		connByUser: make(map[domain.UserID]core.ConnID),
		rooms:      make(map[domain.RoomID]map[domain.UserID]struct{}),
		subs:       make(map[domain.RoomID]map[core.ConnID]struct{}),
	}
}

// Register hands the engine the transport handle for a freshly accepted
// connection. Until Authenticate the connection is reachable but unbound.
func (e *Engine) Register(cid core.ConnID, conn core.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns[cid] = conn
	log.Info().Str("module", "engine").Str("cid", string(cid)).Msg("connection registered")
}

// Authenticate binds connection and identity, overwriting any prior
// binding on either side. Last authentication wins: a second connection
// claiming the same identity silently takes over its reachability and
// room subscriptions; the older connection is orphaned. Cannot fail.
func (e *Engine) Authenticate(cid core.ConnID, user domain.UserID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.userByConn[cid]; ok && prev != user {
		delete(e.connByUser, prev)
	}
	if stale, ok := e.connByUser[user]; ok && stale != cid {
		delete(e.userByConn, stale)
		e.dropConnSubs(stale)
		log.Info().Str("module", "engine").Str("user", string(user)).Str("orphaned", string(stale)).Msg("rebinding identity, previous connection orphaned")
	}
	e.dropConnSubs(cid)

	e.userByConn[cid] = user
	e.connByUser[user] = cid
	e.resubscribe(user, cid)

	log.Info().Str("module", "engine").Str("cid", string(cid)).Str("user", string(user)).Msg("authenticated")
	e.unicast(cid, authSuccessEvent{Type: "auth_success", UserID: user})
}

// Join adds the connection's bound identity to a room, creating the
// room on first join. Unauthenticated connections are a silent no-op.
func (e *Engine) Join(cid core.ConnID, room domain.RoomID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.userByConn[cid]
	if !ok {
		log.Debug().Str("module", "engine").Str("cid", string(cid)).Msg("join before auth, ignored")
		return
	}

	members, ok := e.rooms[room]
	if !ok {
		members = make(map[domain.UserID]struct{})
		e.rooms[room] = members
		log.Info().Str("module", "engine").Str("room", string(room)).Msg("room created")
	}
	members[user] = struct{}{}
	e.subscribe(room, cid)
	log.Info().Str("module", "engine").Str("cid", string(cid)).Str("user", string(user)).Str("room", string(room)).Msg("member joined")

	e.fanoutExcept(room, cid, userJoinedEvent{Type: "user_joined", RoomID: room, UserID: user})

	users := make([]domain.UserID, 0, len(members))
	for u := range members {
		users = append(users, u)
	}
	e.unicast(cid, roomUsersEvent{Type: "room_users", RoomID: room, Users: users})
}

// Leave removes the connection's bound identity from a room. The
// leaving connection is unsubscribed before the departure notice goes
// out, so it never sees its own user_left. Emptying the room deletes it.
func (e *Engine) Leave(cid core.ConnID, room domain.RoomID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.userByConn[cid]
	if !ok {
		return
	}
	members, ok := e.rooms[room]
	if !ok {
		return
	}

	delete(members, user)
	e.unsubscribe(room, cid)
	e.deleteRoomIfEmpty(room)
	log.Info().Str("module", "engine").Str("user", string(user)).Str("room", string(room)).Msg("member left")

	e.fanout(room, userLeftEvent{Type: "user_left", RoomID: room, UserID: user})
}

// Send builds a fresh message and multicasts it to every connection
// subscribed to the room, the sender included. Preconditions unmet
// (unbound sender, empty text or room, unknown room, non-member) are
// a silent rejection: nothing is emitted anywhere.
func (e *Engine) Send(cid core.ConnID, room domain.RoomID, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user, ok := e.userByConn[cid]
	if !ok || text == "" || room == "" {
		return
	}
	members, ok := e.rooms[room]
	if !ok {
		return
	}
	if _, ok := members[user]; !ok {
		log.Debug().Str("module", "engine").Str("user", string(user)).Str("room", string(room)).Msg("send from non-member, rejected")
		return
	}

	msg := domain.NewMessage(room, user, text)
	sent := e.fanout(room, messageEvent{Type: "message", Message: msg})
	log.Debug().Str("module", "engine").Str("room", string(room)).Str("id", msg.ID).Int("sent_to", sent).Msg("message dispatched")
}

// Disconnect tears down a connection. For the identity still bound to
// this connection it mirrors Leave in every room the identity is a
// member of, then drops both directions of the binding. A stale
// disconnect, one whose identity was already rebound to a newer
// connection, must not evict the newer connection's memberships; it
// only clears its own subscription entries. Idempotent.
func (e *Engine) Disconnect(cid core.ConnID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.conns, cid)
	e.dropConnSubs(cid)

	user, bound := e.userByConn[cid]
	if !bound {
		return
	}
	delete(e.userByConn, cid)

	if cur, ok := e.connByUser[user]; !ok || cur != cid {
		log.Info().Str("module", "engine").Str("cid", string(cid)).Str("user", string(user)).Msg("stale disconnect, identity already rebound")
		return
	}
	delete(e.connByUser, user)

	// Sweep every room, not a cached subset, so no orphaned
	// membership survives the disconnect.
	for room, members := range e.rooms {
		if _, ok := members[user]; !ok {
			continue
		}
		delete(members, user)
		e.deleteRoomIfEmpty(room)
		e.fanout(room, userLeftEvent{Type: "user_left", RoomID: room, UserID: user})
	}
	log.Info().Str("module", "engine").Str("cid", string(cid)).Str("user", string(user)).Msg("disconnected")
}

// subscribe adds cid to a room's multicast group.
func (e *Engine) subscribe(room domain.RoomID, cid core.ConnID) {
	set, ok := e.subs[room]
	if !ok {
		set = make(map[core.ConnID]struct{})
		e.subs[room] = set
	}
	set[cid] = struct{}{}
}

func (e *Engine) unsubscribe(room domain.RoomID, cid core.ConnID) {
	if set, ok := e.subs[room]; ok {
		delete(set, cid)
	}
}

// dropConnSubs removes cid from every room's multicast group.
func (e *Engine) dropConnSubs(cid core.ConnID) {
	for _, set := range e.subs {
		delete(set, cid)
	}
}

// resubscribe points the multicast group of every room the user is a
// member of at the user's current connection. Used when a binding
// changes hands so the index stays consistent with membership.
func (e *Engine) resubscribe(user domain.UserID, cid core.ConnID) {
	for room, members := range e.rooms {
		if _, ok := members[user]; ok {
			e.subscribe(room, cid)
		}
	}
}

func (e *Engine) deleteRoomIfEmpty(room domain.RoomID) {
	if members, ok := e.rooms[room]; ok && len(members) == 0 {
		delete(e.rooms, room)
		delete(e.subs, room)
		log.Info().Str("module", "engine").Str("room", string(room)).Msg("room deleted")
	}
}
