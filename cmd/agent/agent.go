package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/adapters/memstore"
	"github.com/dkeye/Cast/internal/adapters/mongostore"
	"github.com/dkeye/Cast/internal/adapters/rtc"
	sigadapter "github.com/dkeye/Cast/internal/adapters/signal"
	"github.com/dkeye/Cast/internal/adapters/wsstore"
	"github.com/dkeye/Cast/internal/app"
	"github.com/dkeye/Cast/internal/app/orch"
	"github.com/dkeye/Cast/internal/app/sfu"
	"github.com/dkeye/Cast/internal/command"
	"github.com/dkeye/Cast/internal/config"
	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

const (
	ingestRelay   = "ingest"
	retryInterval = time.Second
)

type options struct {
	loopback       bool
	connectTimeout time.Duration
}

func openStore(ctx context.Context, cfg *config.Config, token string) (core.DocumentStore, func(), error) {
	switch cfg.Store.Driver {
	case "remote":
		h := http.Header{}
		h.Set("X-Client-Token", token)
		c, err := wsstore.Dial(ctx, cfg.Store.RemoteURL, h)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	case "mongo":
		s, err := mongostore.Connect(ctx, cfg.Store.MongoURI, cfg.Store.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil
	case "memory":
		s := memstore.New()
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func gestureScale(cfg *config.Config) command.Scale {
	if cfg.Screen.RemoteWidth <= 0 || cfg.Screen.RemoteHeight <= 0 {
		return command.Identity()
	}
	return command.InverseScale(
		command.Size{Width: float64(cfg.Screen.RemoteWidth), Height: float64(cfg.Screen.RemoteHeight)},
		command.Size{Width: float64(cfg.Screen.Width), Height: float64(cfg.Screen.Height)},
	)
}

func logState(s domain.Session) {
	log.Info().
		Str("module", "agent").
		Str("sid", string(s.ID)).
		Str("role", s.Role.String()).
		Str("state", s.State.String()).
		Bool("interactive", s.Interactive).
		Msg("session state")
}

func logControl(ev domain.ControlEvent) {
	switch e := ev.(type) {
	case domain.NavigationEvent:
		log.Info().Str("module", "agent").Str("action", string(e.Action)).Msg("navigation")
	case domain.GestureEvent:
		l := log.Info().Str("module", "agent").Str("kind", string(e.Kind)).
			Float64("x", e.Start.X).Float64("y", e.Start.Y)
		if e.End != nil {
			l = l.Float64("x2", e.End.X).Float64("y2", e.End.Y)
		}
		l.Msg("gesture")
	}
}

func logSideError(err error) {
	log.Error().Err(err).Str("module", "agent").Msg("signaling side channel")
}

func logCandidate(side domain.Side, line string) {
	log.Debug().Str("module", "agent").Str("side", side.String()).Str("candidate", line).Msg("ice")
}

// traceCandidates reports both sides' candidates of a session in the
// compact mid|mLineIndex|candidate form.
func traceCandidates(ctx context.Context, tr core.SignalTransport, id domain.SessionID, own domain.Side, emit func(domain.Side, string)) (core.Subscription, error) {
	var subs []core.Subscription
	for _, side := range []domain.Side{own, own.Opposite()} {
		sub, err := tr.WatchIceCandidates(ctx, id, side,
			func(c domain.IceCandidate) { emit(side, c.Encode()) },
			func(err error) { log.Warn().Err(err).Str("module", "agent").Msg("candidate trace") })
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return core.SubscriptionFunc(func() {
		for _, s := range subs {
			s.Cancel()
		}
	}), nil
}

// traceActive starts a candidate trace for the orchestrator's live session.
// The returned func stops it.
func traceActive(ctx context.Context, tr core.SignalTransport, o *orch.Orchestrator, role domain.Role) func() {
	id := o.Negotiator.ActiveSessionID()
	if id == "" {
		return func() {}
	}
	sub, err := traceCandidates(ctx, tr, id, domain.SideOf(role), logCandidate)
	if err != nil {
		log.Warn().Err(err).Str("module", "agent").Str("sid", string(id)).Msg("candidate trace")
		return func() {}
	}
	return sub.Cancel
}

// runBroadcaster answers viewers one session at a time, streaming RTP
// received on the ingest socket and logging the commands it gets.
func runBroadcaster(ctx context.Context, cfg *config.Config, p domain.Participant, store core.DocumentStore, opt options) error {
	src, err := sfu.ListenUDP(cfg.Ingest.Addr)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer src.Close()

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "screen", "cast-"+string(p.ID))
	if err != nil {
		return fmt.Errorf("video track: %w", err)
	}

	relays := sfu.NewRelayManager()
	relays.StartRelay(ctx, ingestRelay, src)
	relays.AddSubscriber(ingestRelay, "webrtc", track)
	defer relays.StopAll()
	log.Info().Str("module", "agent").Str("ingest", src.Addr().String()).Msg("waiting for RTP")

	transport := sigadapter.NewTransport(store, sigadapter.WithRecencyWindow(cfg.Session.RecencyWindow))
	factory := rtc.NewFactory(rtc.Config{
		ICEServers:      cfg.ICEServers,
		Tracks:          []webrtc.TrackLocal{track},
		IncludeLoopback: opt.loopback,
	})
	neg := app.NewNegotiator(transport, factory,
		app.WithPolicy(app.NewViewerPolicy(cfg.Session.RecencyWindow, cfg.Session.Allow...)))

	o := orch.New(p, neg, command.NewCodec(gestureScale(cfg)))
	o.Presence = sigadapter.NewPresence(store, sigadapter.DefaultPresenceID)

	ended := make(chan struct{}, 1)
	o.Callbacks = orch.Callbacks{
		OnStateChange: func(s domain.Session) {
			logState(s)
			if s.State == domain.StateDisconnected {
				select {
				case ended <- struct{}{}:
				default:
				}
			}
		},
		OnControlEvent:   logControl,
		OnTransportError: logSideError,
	}
	defer o.Close()

	for ctx.Err() == nil {
		select {
		case <-ended:
		default:
		}
		if err := o.Connect(ctx, false, ""); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("module", "agent").Msg("session failed, re-arming")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryInterval):
			}
			continue
		}
		stopTrace := traceActive(ctx, transport, o, domain.RoleAnswerer)
		select {
		case <-ctx.Done():
			stopTrace()
			return nil
		case <-ended:
		}
		stopTrace()
	}
	return nil
}

// runViewer offers a session, forwards received video to the sink if one
// is configured and sends commands read from in.
func runViewer(ctx context.Context, cfg *config.Config, p domain.Participant, store core.DocumentStore, in io.Reader, opt options) error {
	transport := sigadapter.NewTransport(store, sigadapter.WithRecencyWindow(cfg.Session.RecencyWindow))
	factory := rtc.NewFactory(rtc.Config{
		ICEServers:      cfg.ICEServers,
		ReceiveVideo:    true,
		IncludeLoopback: opt.loopback,
	})
	o := orch.New(p, app.NewNegotiator(transport, factory), nil)

	if cfg.Ingest.Sink != "" {
		sink, err := sfu.DialUDP(cfg.Ingest.Sink)
		if err != nil {
			return fmt.Errorf("video sink: %w", err)
		}
		defer sink.Close()
		o.Relays = sfu.NewRelayManager()
		o.Sinks = map[string]sfu.Sink{"udp": sink}
	}
	o.Callbacks = orch.Callbacks{
		OnStateChange: logState,
		OnRemoteTrack: func(t core.RemoteTrack) {
			log.Info().Str("module", "agent").Str("track", t.ID()).Str("stream", t.StreamID()).Msg("remote track")
		},
		OnTransportError: logSideError,
	}
	defer o.Close()

	cctx, cancel := context.WithTimeout(ctx, opt.connectTimeout)
	err := o.Connect(cctx, true, "")
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer traceActive(ctx, transport, o, domain.RoleOfferer)()
	fmt.Println("connected; type home, back, recents, unlock, tap X Y, swipe DIR X1 Y1 X2 Y2, gesture KIND X Y [X2 Y2], quit")
	return readCommands(ctx, o, in)
}
