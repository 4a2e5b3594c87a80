package signal

import "github.com/svarvel/meethub/internal/protocol"

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendEvent(c, map[string]any{"type": protocol.TypePong})
}
