// Package apptest has in-memory stand-ins for the media engine.
package apptest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

var ErrNoRemote = errors.New("remote description not set")

// FakeConn stands in for the media engine. It trickles its candidates
// after SetLocalDescription and opens the data channel once both
// descriptions are in place. Messages go to the linked peer.
type FakeConn struct {
	Name string

	mu         sync.Mutex
	peer       *FakeConn
	local      *domain.SessionDescription
	remote     *domain.SessionDescription
	added      []domain.IceCandidate
	labels     []string
	closed     bool
	opened     bool
	failRemote error
	Trickle    []domain.IceCandidate

	onICE    func(domain.IceCandidate)
	onTrack  func(core.RemoteTrack)
	onOpen   func()
	onMsg    func([]byte)
	onClosed func()
}

func NewFakeConn(name string) *FakeConn {
	return &FakeConn{
		Name:    name,
		Trickle: []domain.IceCandidate{
			{Mid: "0", MLineIndex: 0, Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host " + name},
			{Mid: "0", MLineIndex: 0, Candidate: "candidate:2 1 udp 1694498815 1.2.3.4 5001 typ srflx " + name},
		},
	}
}

func Link(a, b *FakeConn) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

func (f *FakeConn) CreateOffer(context.Context) (domain.SessionDescription, error) {
	return domain.SessionDescription{SDP: "offer-" + f.Name, Kind: domain.SDPOffer}, nil
}

func (f *FakeConn) CreateAnswer(context.Context) (domain.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return domain.SessionDescription{}, ErrNoRemote
	}
	return domain.SessionDescription{SDP: "answer-" + f.Name, Kind: domain.SDPAnswer}, nil
}

func (f *FakeConn) SetLocalDescription(_ context.Context, d domain.SessionDescription) error {
	f.mu.Lock()
	f.local = &d
	trickle, onICE := f.Trickle, f.onICE
	f.mu.Unlock()
	go func() {
		for _, c := range trickle {
			onICE(c)
		}
	}()
	f.maybeOpen()
	return nil
}

func (f *FakeConn) SetRemoteDescription(_ context.Context, d domain.SessionDescription) error {
	f.mu.Lock()
	if f.failRemote != nil {
		err := f.failRemote
		f.mu.Unlock()
		return err
	}
	f.remote = &d
	f.mu.Unlock()
	f.maybeOpen()
	return nil
}

func (f *FakeConn) maybeOpen() {
	f.mu.Lock()
	ready := f.local != nil && f.remote != nil && !f.opened && !f.closed
	if ready {
		f.opened = true
	}
	open := f.onOpen
	f.mu.Unlock()
	if ready {
		go open()
	}
}

func (f *FakeConn) AddICECandidate(_ context.Context, c domain.IceCandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return ErrNoRemote
	}
	f.added = append(f.added, c)
	return nil
}

func (f *FakeConn) CreateDataChannel(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	return nil
}

func (f *FakeConn) SendData(data []byte) error {
	f.mu.Lock()
	peer := f.peer
	f.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("%s: no peer", f.Name)
	}
	peer.mu.Lock()
	fn := peer.onMsg
	peer.mu.Unlock()
	fn(data)
	return nil
}

func (f *FakeConn) OnLocalICECandidate(fn func(domain.IceCandidate)) { f.set(func() { f.onICE = fn }) }
func (f *FakeConn) OnRemoteTrack(fn func(core.RemoteTrack))         { f.set(func() { f.onTrack = fn }) }
func (f *FakeConn) OnDataChannelOpen(fn func())                      { f.set(func() { f.onOpen = fn }) }
func (f *FakeConn) OnDataChannelMessage(fn func([]byte))             { f.set(func() { f.onMsg = fn }) }
func (f *FakeConn) OnClosed(fn func())                               { f.set(func() { f.onClosed = fn }) }

func (f *FakeConn) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *FakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *FakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeConn) Applied() []domain.IceCandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.IceCandidate(nil), f.added...)
}

// Labels lists the data channels created.
func (f *FakeConn) Labels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.labels...)
}

// SetFailRemote makes every later SetRemoteDescription fail.
func (f *FakeConn) SetFailRemote(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRemote = err
}

// EmitTrack surfaces a remote track as the engine would.
func (f *FakeConn) EmitTrack(t core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onTrack
	f.mu.Unlock()
	fn(t)
}

// Drop simulates the engine reporting the connection failed.
func (f *FakeConn) Drop() {
	f.mu.Lock()
	fn := f.onClosed
	f.mu.Unlock()
	fn()
}

// Deliver pushes an inbound data channel message.
func (f *FakeConn) Deliver(b []byte) {
	f.mu.Lock()
	fn := f.onMsg
	f.mu.Unlock()
	fn(b)
}
