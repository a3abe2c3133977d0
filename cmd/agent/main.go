package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Cast/internal/config"
	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// flagKeys binds command-line flags to config keys. Unset flags fall back
// to the config file, CAST_* env and defaults.
var flagKeys = map[string]string{
	"store":         "store.driver",
	"remote-url":    "store.remote_url",
	"mongo-uri":     "store.mongo_uri",
	"id":            "participant.id",
	"name":          "participant.name",
	"member-id":     "participant.member_id",
	"ingest":        "ingest.addr",
	"sink":          "ingest.sink",
	"width":         "screen.width",
	"height":        "screen.height",
	"remote-width":  "screen.remote_width",
	"remote-height": "screen.remote_height",
	"allow":         "session.allow",
	"window":        "session.recency_window",
	"log-level":     "log_level",
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("cast-agent", pflag.ExitOnError)
	role := fs.String("role", "viewer", "broadcaster, viewer or demo (both over an in-process store)")
	loopback := fs.Bool("loopback", false, "gather loopback ICE candidates")
	timeout := fs.Duration("connect-timeout", 30*time.Second, "viewer connect timeout")
	fs.String("store", "", "store driver: remote, mongo or memory")
	fs.String("remote-url", "", "hub websocket store URL")
	fs.String("mongo-uri", "", "MongoDB URI")
	fs.String("id", "", "participant id (random when empty)")
	fs.String("name", "", "participant name")
	fs.Int("member-id", 0, "numeric presence member id")
	fs.String("ingest", "", "broadcaster RTP ingest address")
	fs.String("sink", "", "viewer address to forward received RTP to")
	fs.Int("width", 0, "local screen width")
	fs.Int("height", 0, "local screen height")
	fs.Int("remote-width", 0, "viewer screen width, for gesture scaling")
	fs.Int("remote-height", 0, "viewer screen height, for gesture scaling")
	fs.StringSlice("allow", nil, "viewer ids a broadcaster answers")
	fs.Duration("window", 0, "ignore offers older than this")
	fs.String("log-level", "", "log level")
	_ = fs.Parse(os.Args[1:])

	v := config.New()
	v.SetDefault("store.driver", "remote")
	for flag, key := range flagKeys {
		if f := fs.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				log.Fatal().Err(err).Str("flag", flag).Msg("bind flag")
			}
		}
	}
	if *role == "demo" {
		v.Set("store.driver", "memory")
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	p, err := domain.NewParticipant(cfg.Participant.ID, cfg.Participant.Name, cfg.Participant.MemberID)
	if err != nil {
		log.Fatal().Err(err).Msg("participant")
	}
	opt := options{loopback: *loopback || *role == "demo", connectTimeout: *timeout}

	store, closeStore, err := openStore(ctx, cfg, string(p.ID))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	log.Info().Str("module", "agent").Str("role", *role).Str("id", string(p.ID)).Str("store", cfg.Store.Driver).Msg("Cast agent started")

	switch *role {
	case "broadcaster":
		err = runBroadcaster(ctx, cfg, *p, store, opt)
	case "viewer":
		err = runViewer(ctx, cfg, *p, store, os.Stdin, opt)
	case "demo":
		err = runDemo(ctx, cfg, *p, store, opt)
	default:
		log.Fatal().Str("role", *role).Msg("unknown role")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("agent stopped")
		return
	}
	log.Info().Msg("agent exited")
}

// runDemo runs a broadcaster and a viewer against the same store.
func runDemo(ctx context.Context, cfg *config.Config, p domain.Participant, store core.DocumentStore, opt options) error {
	tv := domain.Participant{ID: p.ID + "-tv", Name: p.Name + " (tv)", MemberID: p.MemberID + 1}

	g, gctx := errgroup.WithContext(ctx)
	vctx, stop := context.WithCancel(gctx)
	g.Go(func() error {
		return runBroadcaster(vctx, cfg, tv, store, opt)
	})
	g.Go(func() error {
		defer stop()
		return runViewer(vctx, cfg, p, store, os.Stdin, opt)
	})
	return g.Wait()
}
