package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/protocol"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, id core.ConnectionID, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Str("conn", string(id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, id core.ConnectionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Limiter.Forget(id)
		ctl.Router.Disconnect(id)
		c.Close()
	}()

	// Missing two pongs in a row fails the read and triggers cleanup.
	pongWait := ctl.Cfg.PingPeriod * 2
	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleMessage(ctx, id, c, data)
		}
	}
}

func (ctl *Controller) handleMessage(ctx context.Context, id core.ConnectionID, c *wsConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, protocol.CodeBadPayload, "malformed message")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(ctx, id, c, data)
	case protocol.TypeLeave:
		ctl.handleLeave(id, c)
	case protocol.TypeOffer, protocol.TypeAnswer:
		ctl.handleSDP(env.Type, id, c, data)
	case protocol.TypeCandidate:
		ctl.handleCandidate(id, c, data)
	case protocol.TypeMediaState:
		ctl.handleMediaState(id, c, data)
	case protocol.TypeChat:
		ctl.handleChat(id, c, data)
	case protocol.TypeEndMeeting:
		ctl.handleEndMeeting(ctx, id, c)
	case protocol.TypePing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, protocol.CodeBadPayload, "unknown message type")
	}
}

func (ctl *Controller) sendEvent(c *wsConn, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode event")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *Controller) sendError(c *wsConn, code, msg string) {
	ctl.sendEvent(c, protocol.ErrorEvent{Type: protocol.TypeError, Code: code, Message: msg})
}

// sendRouterError maps router errors onto wire error codes. Every one
// of them is recoverable; the connection stays usable.
func (ctl *Controller) sendRouterError(c *wsConn, err error) {
	switch {
	case errors.Is(err, app.ErrAlreadyMember):
		ctl.sendError(c, protocol.CodeAlreadyMember, "already in a room")
	case errors.Is(err, app.ErrNotAMember):
		ctl.sendError(c, protocol.CodeNotAMember, "not in a room")
	case errors.Is(err, app.ErrRoomNotFound):
		ctl.sendError(c, protocol.CodeRoomNotFound, "room not found")
	case errors.Is(err, app.ErrTargetNotFound):
		ctl.sendError(c, protocol.CodeTargetNotFound, "target not found")
	default:
		log.Error().Err(err).Str("module", "signal").Msg("router error")
		ctl.sendError(c, protocol.CodeInternal, "internal error")
	}
}
