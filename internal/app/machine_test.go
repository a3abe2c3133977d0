package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/dkeye/Cast/internal/adapters/memstore"
	"github.com/dkeye/Cast/internal/adapters/signal"
	"github.com/dkeye/Cast/internal/app/apptest"
	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/core/mocks"
	"github.com/dkeye/Cast/internal/domain"
)

type stateLog struct {
	mu     sync.Mutex
	states []string
}

func (l *stateLog) observe(tag string) func(domain.Session) {
	return func(s domain.Session) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.states = append(l.states, tag+":"+s.State.String())
	}
}

func (l *stateLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.states)
}

type pair struct {
	store    *memstore.Store
	offerer  *Machine
	answerer *Machine
	oConn    *apptest.FakeConn
	aConn    *apptest.FakeConn
	inbox    chan []byte
	sideErrs chan error
}

// connectPair runs a full offer/answer exchange over an in-memory store.
func connectPair(t *testing.T) *pair {
	t.Helper()
	ctx := waitCtx(t)
	store := memstore.New()
	t.Cleanup(store.Close)
	tr := signal.NewTransport(store)

	p := &pair{
		store:    store,
		oConn:    apptest.NewFakeConn("viewer"),
		aConn:    apptest.NewFakeConn("broadcaster"),
		inbox:    make(chan []byte, 8),
		sideErrs: make(chan error, 8),
	}
	apptest.Link(p.oConn, p.aConn)

	answerNeg := NewNegotiator(tr, func(string) (core.PeerConnection, error) { return p.aConn, nil })
	offerNeg := NewNegotiator(tr, func(string) (core.PeerConnection, error) { return p.oConn, nil })
	t.Cleanup(answerNeg.Stop)
	t.Cleanup(offerNeg.Stop)

	var err error
	p.answerer, err = answerNeg.StartSession(ctx, false, "broadcaster", Observer{
		OnMessage:   func(b []byte) { p.inbox <- b },
		OnSideError: func(err error) { p.sideErrs <- err },
	})
	if err != nil {
		t.Fatalf("answerer StartSession: %v", err)
	}
	p.offerer, err = offerNeg.StartSession(ctx, true, "viewer", Observer{})
	if err != nil {
		t.Fatalf("offerer StartSession: %v", err)
	}

	if err := p.offerer.Wait(ctx); err != nil {
		t.Fatalf("offerer Wait = %v, want nil", err)
	}
	if err := p.answerer.Wait(ctx); err != nil {
		t.Fatalf("answerer Wait = %v, want nil", err)
	}
	return p
}

func TestOffererAndAnswererConnect(t *testing.T) {
	p := connectPair(t)

	o, a := p.offerer.Snapshot(), p.answerer.Snapshot()
	if o.ID == "" || o.ID != a.ID {
		t.Fatalf("session ids = %q / %q, want equal and non-empty", o.ID, a.ID)
	}
	if o.State != domain.StateConnected || a.State != domain.StateConnected {
		t.Fatalf("states = %v / %v, want connected", o.State, a.State)
	}
	if a.RemoteID != "viewer" {
		t.Fatalf("answerer RemoteID = %q, want viewer", a.RemoteID)
	}
	if o.Role != domain.RoleOfferer || a.Role != domain.RoleAnswerer {
		t.Fatalf("roles = %v / %v", o.Role, a.Role)
	}
	if got := p.oConn.Labels(); len(got) != 1 || got[0] != DefaultChannelLabel {
		t.Fatalf("offerer channels = %v, want [%s]", got, DefaultChannelLabel)
	}

	eventually(t, "candidates exchanged", func() bool {
		return len(p.oConn.Applied()) == 2 && len(p.aConn.Applied()) == 2
	})
	if got, want := p.oConn.Applied(), p.aConn.Trickle; !slices.Equal(got, want) {
		t.Fatalf("offerer applied %v, want %v", got, want)
	}
	if got, want := p.aConn.Applied(), p.oConn.Trickle; !slices.Equal(got, want) {
		t.Fatalf("answerer applied %v, want %v", got, want)
	}

	if err := p.offerer.Send([]byte("Home")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-p.inbox:
		if string(got) != "Home" {
			t.Fatalf("answerer got %q, want Home", got)
		}
	case <-waitCtx(t).Done():
		t.Fatal("message not delivered")
	}
}

func TestTransportErrorAfterConnectKeepsSession(t *testing.T) {
	p := connectPair(t)

	p.answerer.TransportFailed(errors.New("watch dropped"))
	select {
	case err := <-p.sideErrs:
		if err == nil {
			t.Fatal("side error = nil")
		}
	case <-waitCtx(t).Done():
		t.Fatal("side error not surfaced")
	}
	if s := p.answerer.State(); s != domain.StateConnected {
		t.Fatalf("state = %v, want connected", s)
	}
}

func TestDisconnectEndsRemote(t *testing.T) {
	p := connectPair(t)

	p.offerer.Disconnect()
	if s := p.offerer.State(); s != domain.StateDisconnected {
		t.Fatalf("offerer state = %v, want disconnected", s)
	}
	if !p.oConn.IsClosed() {
		t.Fatal("offerer connection not closed")
	}
	if err := p.offerer.Send([]byte("Home")); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("Send after disconnect = %v, want ErrSessionClosed", err)
	}

	select {
	case <-p.answerer.Done():
	case <-waitCtx(t).Done():
		t.Fatal("answerer did not observe the end of the call")
	}
	if err := p.answerer.Err(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("answerer Err = %v, want ErrSessionClosed", err)
	}
	if !p.aConn.IsClosed() {
		t.Fatal("answerer connection not closed")
	}
}

func TestRestartTearsDownNegotiatingSession(t *testing.T) {
	ctx := waitCtx(t)
	store := memstore.New()
	defer store.Close()
	tr := &countingTransport{SignalTransport: signal.NewTransport(store)}

	conns := []*apptest.FakeConn{apptest.NewFakeConn("first"), apptest.NewFakeConn("second")}
	next := 0
	neg := NewNegotiator(tr, func(string) (core.PeerConnection, error) {
		c := conns[next]
		next++
		return c, nil
	})
	defer neg.Stop()

	var log stateLog
	first, err := neg.StartSession(ctx, true, "viewer", Observer{OnState: log.observe("first")})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	eventually(t, "first session id", func() bool { return first.Snapshot().ID != "" })
	firstID := first.Snapshot().ID
	eventually(t, "candidate watch", func() bool { open, _ := tr.counts(); return open == 2 })

	second, err := neg.StartSession(ctx, true, "viewer", Observer{OnState: log.observe("second")})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if s := first.State(); s != domain.StateDisconnected {
		t.Fatalf("first state = %v, want disconnected", s)
	}
	if !conns[0].IsClosed() {
		t.Fatal("first connection not closed")
	}
	if _, canceled := tr.counts(); canceled != 2 {
		t.Fatalf("canceled subscriptions = %d, want 2", canceled)
	}
	if neg.Active() != second {
		t.Fatal("negotiator does not track the new session")
	}

	eventually(t, "second negotiating", func() bool { return second.State() == domain.StateNegotiating })
	states := log.snapshot()
	down := slices.Index(states, "first:disconnected")
	up := slices.Index(states, "second:negotiating")
	if down < 0 || up < 0 || down > up {
		t.Fatalf("transitions = %v, want first disconnected before second negotiating", states)
	}

	eventually(t, "first session ended in store", func() bool {
		doc, err := store.Get(context.Background(), "sessions", string(firstID))
		return err == nil && doc.Data["isActive"] == false
	})
}

func TestRemoteRejectionIsNegotiationError(t *testing.T) {
	ctx := waitCtx(t)
	store := memstore.New()
	defer store.Close()
	tr := signal.NewTransport(store)

	conn := apptest.NewFakeConn("broadcaster")
	conn.SetFailRemote(errors.New("bad sdp"))
	neg := NewNegotiator(tr, func(string) (core.PeerConnection, error) { return conn, nil })
	defer neg.Stop()

	m, err := neg.StartSession(ctx, false, "broadcaster", Observer{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := tr.PublishOffer(ctx, "garbage", "viewer"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	if err := m.Wait(ctx); !errors.Is(err, domain.ErrNegotiation) {
		t.Fatalf("Wait = %v, want ErrNegotiation", err)
	}
	if s := m.State(); s != domain.StateDisconnected {
		t.Fatalf("state = %v, want disconnected", s)
	}
}

func TestPublishFailureIsTransportError(t *testing.T) {
	ctx := waitCtx(t)
	store := memstore.New()
	defer store.Close()
	store.FailWrites(errors.New("quota exceeded"))
	tr := signal.NewTransport(store)

	conn := apptest.NewFakeConn("viewer")
	neg := NewNegotiator(tr, func(string) (core.PeerConnection, error) { return conn, nil })
	defer neg.Stop()

	m, err := neg.StartSession(ctx, true, "viewer", Observer{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := m.Wait(ctx); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("Wait = %v, want ErrTransport", err)
	}
	if !conn.IsClosed() {
		t.Fatal("connection not closed")
	}
}

func TestPolicyRejectsOwnOffer(t *testing.T) {
	ctx := waitCtx(t)
	store := memstore.New()
	defer store.Close()
	tr := signal.NewTransport(store)

	conn := apptest.NewFakeConn("me")
	neg := NewNegotiator(tr, func(string) (core.PeerConnection, error) { return conn, nil },
		WithPolicy(NewViewerPolicy(0)))
	defer neg.Stop()

	m, err := neg.StartSession(ctx, false, "me", Observer{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := tr.PublishOffer(ctx, "offer", "me"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	id, err := tr.PublishOffer(ctx, "offer", "someone")
	if err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	eventually(t, "offer adopted", func() bool { return m.Snapshot().ID == id })
	if got := m.Snapshot().RemoteID; got != "someone" {
		t.Fatalf("RemoteID = %q, want someone", got)
	}
}

func TestCreateOfferFailureWithMocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockPeerConnection(ctrl)
	tr := mocks.NewMockSignalTransport(ctrl)

	conn.EXPECT().OnLocalICECandidate(gomock.Any())
	conn.EXPECT().OnRemoteTrack(gomock.Any())
	conn.EXPECT().OnDataChannelOpen(gomock.Any())
	conn.EXPECT().OnDataChannelMessage(gomock.Any())
	conn.EXPECT().OnClosed(gomock.Any())
	gomock.InOrder(
		conn.EXPECT().CreateDataChannel(DefaultChannelLabel).Return(nil),
		conn.EXPECT().CreateOffer(gomock.Any()).Return(domain.SessionDescription{}, errors.New("no codecs")),
		conn.EXPECT().Close(),
	)
	// nothing was published, so no EndSession either
	tr.EXPECT().PublishOffer(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	tr.EXPECT().EndSession(gomock.Any(), gomock.Any()).Times(0)

	m := NewMachine(MachineConfig{Role: domain.RoleOfferer, Local: "viewer", Transport: tr, Conn: conn})
	m.Start()
	defer m.Shutdown()

	if err := m.Wait(waitCtx(t)); !errors.Is(err, domain.ErrNegotiation) {
		t.Fatalf("Wait = %v, want ErrNegotiation", err)
	}
}

func TestAnswerIgnoredForOtherSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockPeerConnection(ctrl)
	tr := mocks.NewMockSignalTransport(ctrl)

	conn.EXPECT().OnLocalICECandidate(gomock.Any())
	conn.EXPECT().OnRemoteTrack(gomock.Any())
	conn.EXPECT().OnDataChannelOpen(gomock.Any())
	conn.EXPECT().OnDataChannelMessage(gomock.Any())
	conn.EXPECT().OnClosed(gomock.Any())
	conn.EXPECT().CreateDataChannel(gomock.Any()).Return(nil)
	conn.EXPECT().CreateOffer(gomock.Any()).Return(domain.SessionDescription{SDP: "o", Kind: domain.SDPOffer}, nil)
	conn.EXPECT().SetLocalDescription(gomock.Any(), gomock.Any()).Return(nil)
	tr.EXPECT().PublishOffer(gomock.Any(), "o", "viewer").Return(domain.SessionID("s1"), nil)
	tr.EXPECT().WatchIceCandidates(gomock.Any(), domain.SessionID("s1"), domain.SideAnswer, gomock.Any(), gomock.Any()).
		Return(core.SubscriptionFunc(func() {}), nil)
	conn.EXPECT().SetRemoteDescription(gomock.Any(), domain.SessionDescription{SDP: "a", Kind: domain.SDPAnswer}).Return(nil)
	conn.EXPECT().Close()
	tr.EXPECT().EndSession(gomock.Any(), domain.SessionID("s1")).Return(nil)

	m := NewMachine(MachineConfig{Role: domain.RoleOfferer, Local: "viewer", Transport: tr, Conn: conn})
	m.Start()

	m.AnswerObserved(core.SessionEvent{ID: "other", Description: domain.SessionDescription{SDP: "x", Kind: domain.SDPAnswer}})
	m.AnswerObserved(core.SessionEvent{ID: "s1", Description: domain.SessionDescription{SDP: "a", Kind: domain.SDPAnswer}})
	eventually(t, "session id", func() bool { return m.Snapshot().ID == "s1" })

	m.Shutdown()
}

// slowPublish holds PublishOffer until release is closed.
type slowPublish struct {
	core.SignalTransport
	entered chan struct{}
	release chan struct{}
	id      chan domain.SessionID
}

func (s *slowPublish) PublishOffer(ctx context.Context, sdp, viewerID string) (domain.SessionID, error) {
	close(s.entered)
	<-s.release
	id, err := s.SignalTransport.PublishOffer(ctx, sdp, viewerID)
	s.id <- id
	return id, err
}

func TestDisconnectDuringPublishEndsOffer(t *testing.T) {
	ctx := waitCtx(t)
	store := memstore.New()
	defer store.Close()
	tr := &slowPublish{
		SignalTransport: signal.NewTransport(store),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
		id:              make(chan domain.SessionID, 1),
	}

	conn := apptest.NewFakeConn("viewer")
	neg := NewNegotiator(tr, func(string) (core.PeerConnection, error) { return conn, nil })
	defer neg.Stop()

	m, err := neg.StartSession(ctx, true, "viewer", Observer{})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	select {
	case <-tr.entered:
	case <-ctx.Done():
		t.Fatal("offer was never published")
	}

	m.Disconnect()
	if s := m.State(); s != domain.StateDisconnected {
		t.Fatalf("state = %v, want disconnected", s)
	}
	close(tr.release)

	var id domain.SessionID
	select {
	case id = <-tr.id:
	case <-ctx.Done():
		t.Fatal("publish did not finish")
	}
	eventually(t, "offer ended in the store", func() bool {
		doc, err := store.Get(ctx, "sessions", string(id))
		return err == nil && doc.Data["isActive"] == false
	})
}
