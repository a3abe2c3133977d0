package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

const (
	DefaultChannelLabel = "control"
	endSessionTimeout   = 5 * time.Second
)

// Observer receives machine output. Callbacks run on the machine goroutine
// (OnMessage on the engine's) and must not call Disconnect synchronously.
type Observer struct {
	OnState     func(domain.Session)
	OnSessionID func(domain.SessionID)
	OnTrack     func(core.RemoteTrack)
	OnMessage   func([]byte)
	// OnSideError gets transport failures that did not end the session.
	OnSideError func(error)
}

type MachineConfig struct {
	Role      domain.Role
	Local     domain.ParticipantID
	Transport core.SignalTransport
	Conn      core.PeerConnection
	Observer  Observer
	// Accept filters observed offers for an idle answerer. Nil accepts all.
	Accept       func(core.SessionEvent) bool
	ChannelLabel string
}

type event interface{}

type (
	evStart           struct{}
	evDisconnect      struct{}
	evOffer           struct{ ev core.SessionEvent }
	evAnswer          struct{ ev core.SessionEvent }
	evEnded           struct{ id domain.SessionID }
	evPublished       struct{ id domain.SessionID }
	evLocalCandidate  struct{ c domain.IceCandidate }
	evRemoteCandidate struct {
		id domain.SessionID
		c  domain.IceCandidate
	}
	evTrack        struct{ t core.RemoteTrack }
	evChannelOpen  struct{}
	evEngineClosed struct{}
	evTransportErr struct{ err error }
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Machine drives one session from Idle to Disconnected. Every transition
// runs on a single goroutine fed by an event queue; publishing runs on a
// second goroutine in FIFO order so it never blocks event delivery.
type Machine struct {
	cfg MachineConfig

	ctx    context.Context
	cancel context.CancelFunc

	mailbox *queue[event]
	outbox  *queue[job]
	buf     *CandidateBuffer
	wg      conc.WaitGroup

	mu          sync.RWMutex
	session     domain.Session
	err         error
	channelOpen bool
	trackSeen   bool

	// answers seen before PublishOffer returned the id
	early []core.SessionEvent

	subMu sync.Mutex
	subs  []core.Subscription
	torn  bool
	// offer id returned to the publish job, for a teardown that races it
	published domain.SessionID

	startOnce     sync.Once
	connectedOnce sync.Once
	connected     chan struct{}
	done          chan struct{}
}

func NewMachine(cfg MachineConfig) *Machine {
	if cfg.ChannelLabel == "" {
		cfg.ChannelLabel = DefaultChannelLabel
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		mailbox:   newQueue[event](),
		outbox:    newQueue[job](),
		buf:       NewCandidateBuffer(),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
		session: domain.Session{
			Role:      cfg.Role,
			State:     domain.StateIdle,
			CreatedAt: time.Now(),
		},
	}
	conn := cfg.Conn
	conn.OnLocalICECandidate(func(c domain.IceCandidate) { m.post(evLocalCandidate{c: c}) })
	conn.OnRemoteTrack(func(t core.RemoteTrack) { m.post(evTrack{t: t}) })
	conn.OnDataChannelOpen(func() { m.post(evChannelOpen{}) })
	conn.OnClosed(func() { m.post(evEngineClosed{}) })
	conn.OnDataChannelMessage(func(b []byte) {
		if m.State() == domain.StateDisconnected {
			return
		}
		if fn := m.cfg.Observer.OnMessage; fn != nil {
			fn(b)
		}
	})
	return m
}

// Start launches the machine. An offerer begins negotiating immediately;
// an answerer stays Idle until OfferObserved.
func (m *Machine) Start() {
	m.startOnce.Do(func() {
		m.wg.Go(m.run)
		m.wg.Go(m.drainOutbox)
		m.post(evStart{})
	})
}

func (m *Machine) OfferObserved(ev core.SessionEvent)  { m.post(evOffer{ev: ev}) }
func (m *Machine) AnswerObserved(ev core.SessionEvent) { m.post(evAnswer{ev: ev}) }
func (m *Machine) RemoteEnded(id domain.SessionID)     { m.post(evEnded{id: id}) }
func (m *Machine) TransportFailed(err error)           { m.post(evTransportErr{err: err}) }

// Own hands a subscription to the machine; it is cancelled on teardown,
// or right away if the machine is already down.
func (m *Machine) Own(sub core.Subscription) {
	if sub == nil {
		return
	}
	m.subMu.Lock()
	if m.torn {
		m.subMu.Unlock()
		sub.Cancel()
		return
	}
	m.subs = append(m.subs, sub)
	m.subMu.Unlock()
}

// Disconnect tears the session down and waits until it is Disconnected.
func (m *Machine) Disconnect() {
	m.startOnce.Do(func() {
		m.wg.Go(m.run)
		m.wg.Go(m.drainOutbox)
	})
	m.post(evDisconnect{})
	<-m.done
}

// Shutdown disconnects and waits for the machine goroutines to exit.
func (m *Machine) Shutdown() {
	m.Disconnect()
	m.wg.Wait()
}

// Wait blocks until the session is Connected (nil), Disconnected (the
// terminal error) or ctx ends.
func (m *Machine) Wait(ctx context.Context) error {
	select {
	case <-m.connected:
		return nil
	case <-m.done:
		if err := m.Err(); err != nil {
			return err
		}
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Machine) Done() <-chan struct{}      { return m.done }
func (m *Machine) Connected() <-chan struct{} { return m.connected }

func (m *Machine) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

func (m *Machine) Snapshot() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Machine) State() domain.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.State
}

// ChannelOpen reports whether commands can be sent.
func (m *Machine) ChannelOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channelOpen && m.session.State != domain.StateDisconnected
}

func (m *Machine) Send(data []byte) error {
	m.mu.RLock()
	state, open := m.session.State, m.channelOpen
	m.mu.RUnlock()
	if state == domain.StateDisconnected {
		return domain.ErrSessionClosed
	}
	if !open {
		return domain.ErrNotInteractive
	}
	return m.cfg.Conn.SendData(data)
}

func (m *Machine) post(ev event) {
	m.mailbox.push(ev)
}

func (m *Machine) logger() *zerolog.Logger {
	s := m.Snapshot()
	l := log.With().
		Str("module", "app.machine").
		Str("role", s.Role.String()).
		Str("sid", string(s.ID)).
		Logger()
	return &l
}

func (m *Machine) run() {
	for {
		ev, ok := m.mailbox.pop()
		if !ok {
			return
		}
		m.handle(ev)
		if m.State() == domain.StateDisconnected {
			m.mailbox.close()
			m.mailbox.reset()
			return
		}
	}
}

func (m *Machine) handle(ev event) {
	switch e := ev.(type) {
	case evStart:
		if m.cfg.Role == domain.RoleOfferer {
			m.startOffer()
		}
	case evOffer:
		m.onOffer(e.ev)
	case evAnswer:
		m.onAnswer(e.ev)
	case evPublished:
		m.onPublished(e.id)
	case evLocalCandidate:
		m.onLocalCandidate(e.c)
	case evRemoteCandidate:
		m.onRemoteCandidate(e.id, e.c)
	case evTrack:
		m.mu.Lock()
		m.trackSeen = true
		m.mu.Unlock()
		m.logger().Info().Str("track_id", e.t.ID()).Msg("remote track")
		if fn := m.cfg.Observer.OnTrack; fn != nil {
			fn(e.t)
		}
		m.maybeConnected()
	case evChannelOpen:
		m.mu.Lock()
		m.channelOpen = true
		m.mu.Unlock()
		m.logger().Info().Msg("data channel open")
		m.maybeConnected()
	case evEnded:
		if e.id != "" && e.id == m.Snapshot().ID {
			m.teardown(fmt.Errorf("%w: remote ended the call", domain.ErrSessionClosed), false)
		}
	case evEngineClosed:
		m.teardown(fmt.Errorf("%w: peer connection closed", domain.ErrSessionClosed), true)
	case evTransportErr:
		m.onTransportErr(e.err)
	case evDisconnect:
		m.teardown(nil, true)
	}
}

func (m *Machine) startOffer() {
	m.setState(domain.StateNegotiating)
	conn := m.cfg.Conn
	if err := conn.CreateDataChannel(m.cfg.ChannelLabel); err != nil {
		m.fail("create data channel", err)
		return
	}
	offer, err := conn.CreateOffer(m.ctx)
	if err != nil {
		m.fail("create offer", err)
		return
	}
	if err := conn.SetLocalDescription(m.ctx, offer); err != nil {
		m.fail("set local offer", err)
		return
	}
	local := string(m.cfg.Local)
	m.enqueue("publish offer", func(ctx context.Context) error {
		id, err := m.cfg.Transport.PublishOffer(ctx, offer.SDP, local)
		if err != nil {
			return err
		}
		m.subMu.Lock()
		torn := m.torn
		if !torn {
			m.published = id
		}
		m.subMu.Unlock()
		if torn {
			m.logger().Info().Str("sid", string(id)).Msg("ending offer published after teardown")
			ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endSessionTimeout)
			defer cancel()
			return m.cfg.Transport.EndSession(ectx, id)
		}
		m.post(evPublished{id: id})
		return nil
	})
}

func (m *Machine) onPublished(id domain.SessionID) {
	m.mu.Lock()
	m.session.ID = id
	m.mu.Unlock()
	m.logger().Info().Msg("session id allocated")
	if fn := m.cfg.Observer.OnSessionID; fn != nil {
		fn(id)
	}
	own := domain.SideOf(m.cfg.Role)
	for _, c := range m.buf.Bind(id, own) {
		m.publishCandidate(id, own, c)
	}
	m.watchCandidates(id, own.Opposite())

	early := m.early
	m.early = nil
	for _, ev := range early {
		m.onAnswer(ev)
	}
}

func (m *Machine) onOffer(ev core.SessionEvent) {
	s := m.Snapshot()
	if m.cfg.Role != domain.RoleAnswerer {
		return
	}
	if s.State != domain.StateIdle {
		if ev.ID != s.ID {
			m.logger().Debug().Str("offer_sid", string(ev.ID)).Msg("ignoring offer while busy")
		}
		return
	}
	if m.cfg.Accept != nil && !m.cfg.Accept(ev) {
		m.logger().Debug().Str("offer_sid", string(ev.ID)).Msg("offer rejected by policy")
		return
	}

	m.mu.Lock()
	m.session.ID = ev.ID
	m.session.RemoteID = ev.ViewerID
	m.mu.Unlock()
	m.setState(domain.StateNegotiating)
	if fn := m.cfg.Observer.OnSessionID; fn != nil {
		fn(ev.ID)
	}

	conn := m.cfg.Conn
	own := domain.SideOf(m.cfg.Role)
	held := m.buf.Bind(ev.ID, own)
	if err := conn.SetRemoteDescription(m.ctx, ev.Description); err != nil {
		m.fail("set remote offer", err)
		return
	}
	if !m.applyReplay() {
		return
	}
	answer, err := conn.CreateAnswer(m.ctx)
	if err != nil {
		m.fail("create answer", err)
		return
	}
	if err := conn.SetLocalDescription(m.ctx, answer); err != nil {
		m.fail("set local answer", err)
		return
	}
	id := ev.ID
	m.enqueue("publish answer", func(ctx context.Context) error {
		return m.cfg.Transport.PublishAnswer(ctx, id, answer.SDP)
	})
	for _, c := range held {
		m.publishCandidate(id, own, c)
	}
	m.watchCandidates(id, own.Opposite())
	m.maybeConnected()
}

func (m *Machine) onAnswer(ev core.SessionEvent) {
	s := m.Snapshot()
	if m.cfg.Role != domain.RoleOfferer || s.State != domain.StateNegotiating {
		return
	}
	if s.ID == "" {
		m.early = append(m.early, ev)
		return
	}
	if ev.ID != s.ID {
		return
	}
	if m.buf.RemoteApplied() {
		m.logger().Debug().Msg("answer already applied, ignoring update")
		return
	}
	if err := m.cfg.Conn.SetRemoteDescription(m.ctx, ev.Description); err != nil {
		m.fail("set remote answer", err)
		return
	}
	if !m.applyReplay() {
		return
	}
	m.maybeConnected()
}

// applyReplay feeds the held remote candidates in arrival order.
func (m *Machine) applyReplay() bool {
	for _, c := range m.buf.MarkRemoteApplied() {
		if err := m.cfg.Conn.AddICECandidate(m.ctx, c); err != nil {
			m.fail("add held candidate", err)
			return false
		}
	}
	return true
}

func (m *Machine) onLocalCandidate(c domain.IceCandidate) {
	ready := m.buf.EnqueueLocal(c)
	if len(ready) == 0 {
		return
	}
	sid, side, _ := m.buf.Target()
	for _, rc := range ready {
		m.publishCandidate(sid, side, rc)
	}
}

func (m *Machine) onRemoteCandidate(id domain.SessionID, c domain.IceCandidate) {
	if id != m.Snapshot().ID {
		return
	}
	for _, rc := range m.buf.EnqueueRemote(c) {
		if err := m.cfg.Conn.AddICECandidate(m.ctx, rc); err != nil {
			if m.State() == domain.StateConnected {
				m.logger().Warn().Err(err).Str("candidate", rc.Encode()).Msg("remote candidate rejected")
				continue
			}
			m.fail("add remote candidate", err)
			return
		}
	}
}

func (m *Machine) onTransportErr(err error) {
	// Only an in-flight negotiation dies on transport errors.
	if s := m.State(); s == domain.StateConnected || s == domain.StateIdle {
		m.logger().Error().Err(err).Msg("signaling error outside negotiation")
		if fn := m.cfg.Observer.OnSideError; fn != nil {
			fn(err)
		}
		return
	}
	if !errors.Is(err, domain.ErrTransport) {
		err = fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	m.teardown(err, true)
}

func (m *Machine) maybeConnected() {
	m.mu.Lock()
	ready := m.session.State == domain.StateNegotiating && (m.trackSeen || m.channelOpen)
	interactive := m.trackSeen && m.channelOpen
	changed := m.session.Interactive != interactive
	m.session.Interactive = interactive
	m.mu.Unlock()

	switch {
	case ready && m.buf.RemoteApplied():
		m.setState(domain.StateConnected)
		m.connectedOnce.Do(func() { close(m.connected) })
	case changed && m.State() == domain.StateConnected:
		m.logger().Info().Bool("interactive", interactive).Msg("session interactive")
		m.notify()
	}
}

func (m *Machine) watchCandidates(id domain.SessionID, side domain.Side) {
	sub, err := m.cfg.Transport.WatchIceCandidates(m.ctx, id, side,
		func(c domain.IceCandidate) { m.post(evRemoteCandidate{id: id, c: c}) },
		func(err error) { m.post(evTransportErr{err: err}) },
	)
	if err != nil {
		m.onTransportErr(err)
		return
	}
	m.Own(sub)
}

func (m *Machine) publishCandidate(id domain.SessionID, side domain.Side, c domain.IceCandidate) {
	m.logger().Debug().Str("side", side.String()).Str("candidate", c.Encode()).Msg("local candidate")
	m.enqueue("append candidate", func(ctx context.Context) error {
		return m.cfg.Transport.AppendIceCandidate(ctx, id, side, c)
	})
}

func (m *Machine) enqueue(name string, run func(ctx context.Context) error) {
	m.outbox.push(job{name: name, run: run})
}

func (m *Machine) drainOutbox() {
	defer m.cancel()
	for {
		j, ok := m.outbox.pop()
		if !ok {
			return
		}
		if err := j.run(m.ctx); err != nil {
			m.logger().Error().Err(err).Str("job", j.name).Msg("publish failed")
			m.post(evTransportErr{err: err})
		}
	}
}

// fail ends negotiation on an engine rejection.
func (m *Machine) fail(op string, err error) {
	m.teardown(fmt.Errorf("%w: %s: %w", domain.ErrNegotiation, op, err), true)
}

// teardown moves to Disconnected: held candidates dropped, subscriptions
// cancelled, engine closed, and the remote told when endRemote is set.
func (m *Machine) teardown(reason error, endRemote bool) {
	if m.State() == domain.StateDisconnected {
		return
	}
	m.buf.Discard()

	m.subMu.Lock()
	m.torn = true
	subs := m.subs
	m.subs = nil
	published := m.published
	m.subMu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}

	m.cfg.Conn.Close()

	m.mu.Lock()
	m.err = reason
	m.channelOpen = false
	id := m.session.ID
	m.mu.Unlock()
	if id == "" {
		id = published
	}

	m.outbox.reset()
	if endRemote && id != "" {
		m.enqueue("end session", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, endSessionTimeout)
			defer cancel()
			return m.cfg.Transport.EndSession(ctx, id)
		})
	}
	m.outbox.close()

	if l := m.logger(); reason != nil {
		l.Warn().Err(reason).Msg("session disconnected")
	} else {
		l.Info().Msg("session disconnected")
	}
	m.setState(domain.StateDisconnected)
	close(m.done)
}

func (m *Machine) setState(s domain.State) {
	m.mu.Lock()
	if m.session.State == s {
		m.mu.Unlock()
		return
	}
	m.session.State = s
	m.mu.Unlock()
	m.logger().Info().Str("state", s.String()).Msg("transition")
	m.notify()
}

func (m *Machine) notify() {
	if fn := m.cfg.Observer.OnState; fn != nil {
		fn(m.Snapshot())
	}
}
