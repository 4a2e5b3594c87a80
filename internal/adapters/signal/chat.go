package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/protocol"
)

func (ctl *Controller) handleChat(id core.ConnectionID, c *wsConn, data []byte) {
	var p protocol.ChatRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Content == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		ctl.sendError(c, protocol.CodeBadPayload, "chat requires content")
		return
	}

	if err := ctl.Router.Chat(id, p.Content); err != nil {
		ctl.sendRouterError(c, err)
	}
}
