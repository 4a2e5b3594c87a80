package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/svarvel/meethub/internal/adapters/http"
	"github.com/svarvel/meethub/internal/app"
	"github.com/svarvel/meethub/internal/app/orch"
	"github.com/svarvel/meethub/internal/config"
	"github.com/svarvel/meethub/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var meetings store.MeetingStore
	if cfg.MongoURI != "" {
		ms, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect meeting store")
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			if err := ms.Close(closeCtx); err != nil {
				log.Error().Err(err).Msg("meeting store close")
			}
		}()
		meetings = ms
	} else {
		log.Info().Msg("no mongo_uri configured, using in-memory meeting store")
		meetings = store.NewMemory()
	}

	var admission app.JoinPolicy = app.AdHocRooms{}
	if cfg.RequireMeeting {
		admission = app.RequireMeeting{Store: meetings}
	}

	core := &orch.Router{
		Registry:  app.NewRegistry(),
		Rooms:     app.NewDirectory(),
		Admission: admission,
		Policy:    app.SimplePolicy{},
		Meetings:  meetings,
	}

	r := router.SetupRouter(ctx, cfg, core, meetings)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("MeetHub signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
