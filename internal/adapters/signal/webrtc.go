package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/protocol"
)

// handleSDP relays an offer or answer to exactly one peer. The server
// never inspects the session description beyond decoding it.
func (ctl *Controller) handleSDP(kind string, id core.ConnectionID, c *wsConn, data []byte) {
	var p protocol.SDPRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" || p.SDP.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad sdp payload")
		ctl.sendError(c, protocol.CodeBadPayload, "relay requires target and sdp")
		return
	}

	target := core.ConnectionID(p.Target)
	var err error
	if kind == protocol.TypeOffer {
		err = ctl.Router.RelayOffer(id, target, p.SDP)
	} else {
		err = ctl.Router.RelayAnswer(id, target, p.SDP)
	}
	if err != nil {
		ctl.sendRouterError(c, err)
	}
}

func (ctl *Controller) handleCandidate(id core.ConnectionID, c *wsConn, data []byte) {
	var p protocol.CandidateRequest
	if err := json.Unmarshal(data, &p); err != nil || p.Target == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(c, protocol.CodeBadPayload, "candidate requires a target")
		return
	}

	if err := ctl.Router.RelayCandidate(id, core.ConnectionID(p.Target), p.Candidate); err != nil {
		ctl.sendRouterError(c, err)
	}
}
