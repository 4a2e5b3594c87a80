package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/adapters/signal"
	"github.com/svarvel/meethub/internal/app/orch"
	"github.com/svarvel/meethub/internal/config"
	"github.com/svarvel/meethub/internal/store"
)

// ClientTokenMiddleware tags each browser with a stable cookie token.
// Connection ids are minted per WebSocket connect and are unrelated;
// the token only identifies the browser across page loads.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, router *orch.Router, meetings store.MeetingStore) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetHubSessions", cookieStore))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	meetingsCtl := &MeetingsController{Store: meetings}
	api.POST("/meetings", meetingsCtl.Create)
	api.GET("/meetings", meetingsCtl.List)
	api.GET("/meetings/:id", meetingsCtl.Get)
	api.DELETE("/meetings/:id", meetingsCtl.End)
	api.GET("/meetings/:id/check", meetingsCtl.Check)

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(200, router.Rooms.List())
	})

	signalCtl := signal.NewController(router, cfg)
	api.GET("/ws/signal", func(c *gin.Context) {
		signalCtl.HandleSignal(ctx, c)
	})

	return r
}
