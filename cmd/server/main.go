package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/campusplay/dicearena/internal/catalog"
	"github.com/campusplay/dicearena/internal/config"
	"github.com/campusplay/dicearena/internal/game"
	"github.com/campusplay/dicearena/internal/gateway"
	"github.com/campusplay/dicearena/internal/httpapi"
	"github.com/campusplay/dicearena/internal/venue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	setupLogging(cfg)

	deck, err := catalog.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load scenario deck")
	}
	venues, err := venue.NewRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("load venue template")
	}

	engine := game.New(game.Config{
		AdminPassword:  cfg.AdminPassword,
		MaxPlayers:     cfg.MaxPlayers,
		RollDelay:      cfg.RollDelay,
		ResultsDelay:   cfg.ResultsDelay,
		GraceWindow:    cfg.GraceWindow,
		ScorePerAnswer: cfg.ScorePerAnswer,
	}, deck, venues, clockwork.NewRealClock())

	gw := gateway.New(engine, gateway.DefaultConnConfig())
	engine.SetSink(gw)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	srv := httpapi.New(cfg.Addr, httpapi.Deps{
		Catalog: deck,
		Venues:  venues,
		State:   engine,
		WS:      gw.ServeWS,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	log.Info().
		Int("scenarios", deck.Size()).
		Int("venues", len(venues.Snapshot())).
		Msg("dice arena server running")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
