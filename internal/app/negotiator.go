package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// Negotiator decides the local role and keeps at most one live Machine
// per participant. Starting a session always tears the previous one down
// first.
type Negotiator struct {
	transport core.SignalTransport
	newConn   core.PeerConnectionFactory
	policy    Policy
	label     string

	mu     sync.Mutex
	active *Machine
}

type NegotiatorOption func(*Negotiator)

func WithPolicy(p Policy) NegotiatorOption {
	return func(n *Negotiator) { n.policy = p }
}

func WithChannelLabel(label string) NegotiatorOption {
	return func(n *Negotiator) { n.label = label }
}

func NewNegotiator(t core.SignalTransport, f core.PeerConnectionFactory, opts ...NegotiatorOption) *Negotiator {
	n := &Negotiator{
		transport: t,
		newConn:   f,
		policy:    AcceptAll{},
		label:     DefaultChannelLabel,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// StartSession tears down the active session, if any, and starts a new
// one in the requested role for local. The returned machine is already
// running.
func (n *Negotiator) StartSession(ctx context.Context, asOfferer bool, local domain.ParticipantID, obs Observer) (*Machine, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if prev := n.active; prev != nil {
		n.active = nil
		prev.Disconnect()
	}

	role := domain.RoleFor(asOfferer)
	logger := log.With().
		Str("module", "app.negotiator").
		Str("participant", string(local)).
		Str("role", role.String()).
		Logger()

	conn, err := n.newConn(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: new peer connection: %w", domain.ErrNegotiation, err)
	}

	policy := n.policy
	m := NewMachine(MachineConfig{
		Role:         role,
		Local:        local,
		Transport:    n.transport,
		Conn:         conn,
		Observer:     obs,
		ChannelLabel: n.label,
		Accept: func(ev core.SessionEvent) bool {
			return policy.AcceptOffer(local, ev)
		},
	})

	// The watch lives as long as the machine, not the caller's ctx.
	sub, err := n.transport.WatchLatestSession(context.WithoutCancel(ctx), core.SessionHandlers{
		OnOffer:  m.OfferObserved,
		OnAnswer: m.AnswerObserved,
		OnEnded:  m.RemoteEnded,
		OnError:  m.TransportFailed,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	m.Own(sub)
	m.Start()

	n.active = m
	logger.Info().Msg("session started")
	return m, nil
}

// Active returns the live machine, or nil.
func (n *Negotiator) Active() *Machine {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active != nil && n.active.State() == domain.StateDisconnected {
		return nil
	}
	return n.active
}

// ActiveSessionID is empty until the session id is minted or adopted.
func (n *Negotiator) ActiveSessionID() domain.SessionID {
	if m := n.Active(); m != nil {
		return m.Snapshot().ID
	}
	return ""
}

// Stop disconnects the active session and waits for it to wind down.
func (n *Negotiator) Stop() {
	n.mu.Lock()
	m := n.active
	n.active = nil
	n.mu.Unlock()
	if m != nil {
		m.Shutdown()
	}
}
