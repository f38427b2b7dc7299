package engine

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mvoronin/parlor/internal/core"
	"github.com/mvoronin/parlor/internal/domain"
)

// Outbound event envelopes. The type field is the wire discriminator.

type authSuccessEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type userJoinedEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type roomUsersEvent struct {
	Type   string          `json:"type"`
	RoomID domain.RoomID   `json:"roomId"`
	Users  []domain.UserID `json:"users"`
}

type userLeftEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type messageEvent struct {
	Type string `json:"type"`
	domain.Message
}

// adminEvent wraps arbitrary payloads pushed through the administrative
// surface (SendToRoom / SendToUser).
type adminEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// unicast marshals and hands one event to a single connection.
// Delivery is fire-and-forget: a closed or backpressured connection is
// skipped, never an error surfaced to the operation.
func (e *Engine) unicast(cid core.ConnID, v any) bool {
	conn, ok := e.conns[cid]
	if !ok {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "engine").Msg("event marshal")
		return false
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Debug().Err(err).Str("module", "engine").Str("cid", string(cid)).Msg("dropped outbound event")
		return false
	}
	return true
}

// fanout multicasts one event to every connection subscribed to the
// room and reports how many sends were accepted. Each target is
// independent; one failed send never aborts the rest.
func (e *Engine) fanout(room domain.RoomID, v any) int {
	return e.fanoutExcept(room, "", v)
}

func (e *Engine) fanoutExcept(room domain.RoomID, skip core.ConnID, v any) int {
	set, ok := e.subs[room]
	if !ok || len(set) == 0 {
		return 0
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "engine").Msg("event marshal")
		return 0
	}
	sent := 0
	for cid := range set {
		if cid == skip {
			continue
		}
		conn, ok := e.conns[cid]
		if !ok {
			continue
		}
		if err := conn.TrySend(core.Frame(b)); err != nil {
			log.Debug().Err(err).Str("module", "engine").Str("cid", string(cid)).Msg("dropped multicast target")
			continue
		}
		sent++
	}
	return sent
}
