package chat

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mvoronin/parlor/internal/core"
	"github.com/mvoronin/parlor/internal/domain"
)

// The handlers below only decode the wire payload and delegate; the
// engine builds and fans out all resulting events itself, so silent
// no-ops (unauthenticated joins, sends to unknown rooms) produce no
// response here either.

func (ctl *Controller) handleAuth(
	cid core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type authPayload struct {
		Type string `json:"type"`
		User string `json:"user"`
	}
	var p authPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad auth payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "chat").Str("cid", string(cid)).Str("user", p.User).Msg("auth")
	ctl.Engine.Authenticate(cid, domain.UserID(p.User))
}

func (ctl *Controller) handleJoin(
	cid core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "chat").Str("cid", string(cid)).Str("room", p.Room).Msg("join")
	ctl.Engine.Join(cid, domain.RoomID(p.Room))
}

func (ctl *Controller) handleLeave(
	cid core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type leavePayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p leavePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad leave payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "chat").Str("cid", string(cid)).Str("room", p.Room).Msg("leave")
	ctl.Engine.Leave(cid, domain.RoomID(p.Room))
}

func (ctl *Controller) handleMessage(
	cid core.ConnID,
	conn *wsConn,
	data []byte,
) {
	type messagePayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Text string `json:"text"`
	}
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad message payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	ctl.Engine.Send(cid, domain.RoomID(p.Room), p.Text)
}
