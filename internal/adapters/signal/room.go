package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
	"github.com/svarvel/meethub/internal/protocol"
)

func (ctl *Controller) handleJoin(ctx context.Context, id core.ConnectionID, c *wsConn, data []byte) {
	if !ctl.Limiter.Allow(id) {
		ctl.sendError(c, protocol.CodeRateLimited, "too many join attempts")
		return
	}
	var p protocol.JoinRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, protocol.CodeBadPayload, "join requires a room")
		return
	}

	roomID := domain.RoomID(p.Room)
	existing, err := ctl.Router.Join(ctx, id, roomID, p.Name)
	if err != nil {
		ctl.sendRouterError(c, err)
		return
	}

	log.Info().Str("module", "signal").Str("conn", string(id)).Str("room", p.Room).Msg("join")
	ctl.sendEvent(c, protocol.RoomState{
		Type:    protocol.TypeRoomState,
		Room:    roomID,
		Members: existing,
		Count:   len(existing) + 1,
	})
}

// handleLeave exits the current room; the connection itself stays up.
func (ctl *Controller) handleLeave(id core.ConnectionID, c *wsConn) {
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("leave")
	if err := ctl.Router.Leave(id); err != nil {
		ctl.sendRouterError(c, err)
		return
	}
	ctl.sendEvent(c, map[string]any{"type": protocol.TypeLeft})
}

func (ctl *Controller) handleEndMeeting(ctx context.Context, id core.ConnectionID, c *wsConn) {
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("end meeting")
	if err := ctl.Router.EndMeeting(ctx, id); err != nil {
		ctl.sendRouterError(c, err)
	}
}
