package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/protocol"
)

// handleMediaState updates the sender's own audio/video/screen flags.
// The router rejects any attempt before a successful join.
func (ctl *Controller) handleMediaState(id core.ConnectionID, c *wsConn, data []byte) {
	var p protocol.MediaStateRequest
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad media-state payload")
		ctl.sendError(c, protocol.CodeBadPayload, "malformed media-state")
		return
	}
	if p.Audio == nil && p.Video == nil && p.Screen == nil {
		ctl.sendError(c, protocol.CodeBadPayload, "media-state requires at least one flag")
		return
	}

	if err := ctl.Router.SetMediaState(id, p.MediaStateChange); err != nil {
		ctl.sendRouterError(c, err)
	}
}
