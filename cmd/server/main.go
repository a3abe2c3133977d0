package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Cast/internal/adapters/http"
	"github.com/dkeye/Cast/internal/adapters/memstore"
	"github.com/dkeye/Cast/internal/adapters/mongostore"
	sigadapter "github.com/dkeye/Cast/internal/adapters/signal"
	"github.com/dkeye/Cast/internal/adapters/wsstore"
	"github.com/dkeye/Cast/internal/app"
	"github.com/dkeye/Cast/internal/config"
	"github.com/dkeye/Cast/internal/core"
)

const registryLimit = 256

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	transport := sigadapter.NewTransport(store, sigadapter.WithRecencyWindow(cfg.Session.RecencyWindow))
	registry := app.NewRegistry(registryLimit)
	sub, err := registry.Track(ctx, transport)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to watch sessions")
	}
	defer sub.Cancel()

	ctl := wsstore.NewController(store, wsstore.NewRateLimiter(cfg.Rate.Limit, cfg.Rate.Interval))
	ctl.ReadLimit = cfg.ReadLimit
	ctl.PingPeriod = cfg.PingPeriod

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Store:    ctl,
		Presence: sigadapter.NewPresence(store, sigadapter.DefaultPresenceID),
		Registry: registry,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("Cast hub started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (core.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		s := memstore.New()
		return s, s.Close, nil
	case "mongo":
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongostore.Connect(cctx, cfg.Store.MongoURI, cfg.Store.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(closeCtx); err != nil {
				log.Error().Err(err).Msg("mongo close")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("store driver %q cannot back the hub", cfg.Store.Driver)
}
