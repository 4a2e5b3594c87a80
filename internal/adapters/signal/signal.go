// Package signal is the WebSocket transport adapter: it upgrades the
// HTTP connection, runs the read/write pumps and decodes inbound
// events, handing everything else to the router.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/app/orch"
	"github.com/svarvel/meethub/internal/config"
	"github.com/svarvel/meethub/internal/core"
	"github.com/svarvel/meethub/internal/domain"
	"github.com/svarvel/meethub/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

const joinRateLimit = 10
const joinRateWindow = 30 * time.Second

type Controller struct {
	Router  *orch.Router
	Cfg     *config.Config
	Limiter *MessageRateLimiter
}

func NewController(router *orch.Router, cfg *config.Config) *Controller {
	return &Controller{
		Router:  router,
		Cfg:     cfg,
		Limiter: NewMessageRateLimiter(joinRateLimit, joinRateWindow),
	}
}

// wsConn adapts a websocket to core.SignalConnection. Writes go through
// a bounded channel; a full queue drops the frame rather than blocking
// the room.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and registers the connection. The
// client learns its connection id from the welcome event; everything
// after that is message-driven.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}

	meta, _ := domain.NewMember("guest")
	sess := core.NewMemberSession(meta, conn)
	ctx, cancel := context.WithCancel(ctx)
	// The registry's teardown hook must close the socket as well:
	// readPump sits in a blocking read that only a close interrupts.
	id := ctl.Router.Registry.Register(sess, func() {
		cancel()
		conn.Close()
	})
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("new WS connection")

	ctl.sendEvent(conn, protocol.Welcome{Type: protocol.TypeWelcome, ID: id})

	go ctl.writePump(ctx, id, conn)
	go ctl.readPump(ctx, id, conn)
}
