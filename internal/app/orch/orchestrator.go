// Package orch is the upward surface of a participant: connect, disconnect,
// send commands, and observe state, media and inbound control events.
package orch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Cast/internal/app"
	"github.com/dkeye/Cast/internal/app/sfu"
	"github.com/dkeye/Cast/internal/command"
	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// Callbacks may be invoked from any goroutine.
type Callbacks struct {
	OnStateChange    func(domain.Session)
	OnRemoteTrack    func(core.RemoteTrack)
	OnControlEvent   func(domain.ControlEvent)
	OnTransportError func(error)
}

type Orchestrator struct {
	Participant domain.Participant
	Negotiator  *app.Negotiator
	Codec       *command.Codec
	// Presence is optional; answerer sessions are counted when set.
	Presence core.PresenceCounter
	// Relays is optional; remote tracks are fanned out to Sinks when set.
	Relays    *sfu.RelayManager
	Sinks     map[string]sfu.Sink
	Callbacks Callbacks

	mu      sync.Mutex
	machine *app.Machine
	tracks  []string
	// closed when the latest presence Leave has been written
	leaving chan struct{}

	wg conc.WaitGroup
}

func New(p domain.Participant, neg *app.Negotiator, codec *command.Codec) *Orchestrator {
	if codec == nil {
		codec = command.NewCodec(command.Identity())
	}
	return &Orchestrator{
		Participant: p,
		Negotiator:  neg,
		Codec:       codec,
	}
}

// Connect starts a session in the requested role and blocks until it is
// Connected or has failed. A previous session is torn down first.
// Cancelling ctx abandons the attempt and disconnects it.
func (o *Orchestrator) Connect(ctx context.Context, asOfferer bool, localID domain.ParticipantID) error {
	if localID == "" {
		localID = o.Participant.ID
	}
	logger := log.With().
		Str("module", "orch").
		Str("participant", string(localID)).
		Bool("offerer", asOfferer).
		Logger()

	counted := !asOfferer && o.Presence != nil && o.joinPresence(ctx)

	m, err := o.Negotiator.StartSession(ctx, asOfferer, localID, app.Observer{
		OnState:     o.stateObserver(counted),
		OnTrack:     o.OnTrack,
		OnMessage:   o.onMessage,
		OnSideError: o.onSideError,
	})
	if err != nil {
		if counted {
			o.leavePresence()
		}
		logger.Error().Err(err).Msg("start session failed")
		return err
	}

	o.mu.Lock()
	o.machine = m
	o.mu.Unlock()

	if err := m.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			m.Disconnect()
		}
		logger.Warn().Err(err).Msg("connect failed")
		return err
	}
	logger.Info().Str("sid", string(m.Snapshot().ID)).Msg("connected")
	return nil
}

// Disconnect ends the current session, if any, and waits for teardown.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	m := o.machine
	o.mu.Unlock()
	if m != nil {
		m.Disconnect()
	}
}

// Close disconnects and waits for pending presence updates and relays.
func (o *Orchestrator) Close() {
	o.Disconnect()
	o.Negotiator.Stop()
	o.wg.Wait()
}

// Session returns the current session snapshot. ok is false before the
// first Connect.
func (o *Orchestrator) Session() (domain.Session, bool) {
	o.mu.Lock()
	m := o.machine
	o.mu.Unlock()
	if m == nil {
		return domain.Session{}, false
	}
	return m.Snapshot(), true
}

func (o *Orchestrator) SendGesture(kind domain.GestureKind, start domain.Point, end *domain.Point) error {
	msg, err := command.EncodeGesture(domain.GestureEvent{Kind: kind, Start: start, End: end})
	if err != nil {
		return err
	}
	return o.send(msg)
}

func (o *Orchestrator) SendNavigationAction(action domain.NavigationAction) error {
	msg, err := command.EncodeNavigation(action)
	if err != nil {
		return err
	}
	return o.send(msg)
}

func (o *Orchestrator) send(msg string) error {
	o.mu.Lock()
	m := o.machine
	o.mu.Unlock()
	if m == nil {
		return domain.ErrSessionClosed
	}
	return m.Send([]byte(msg))
}

func (o *Orchestrator) stateObserver(counted bool) func(domain.Session) {
	return func(s domain.Session) {
		if s.State == domain.StateDisconnected {
			o.cleanupMedia()
			if counted {
				o.leavePresence()
			}
		}
		if fn := o.Callbacks.OnStateChange; fn != nil {
			fn(s)
		}
	}
}

func (o *Orchestrator) onMessage(data []byte) {
	o.Codec.HandleMessage(data, func(ev domain.ControlEvent) {
		if fn := o.Callbacks.OnControlEvent; fn != nil {
			fn(ev)
		}
	})
}

func (o *Orchestrator) onSideError(err error) {
	if fn := o.Callbacks.OnTransportError; fn != nil {
		fn(err)
	}
}
