package sfu

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
)

// RelayManager owns one relay per named source (an ingest socket, a
// remote track).
type RelayManager struct {
	mu     sync.RWMutex
	relays map[string]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[string]*Relay),
	}
}

// StartRelay creates a new Relay for the source and starts its loop. An
// existing relay under the same name is replaced.
func (m *RelayManager) StartRelay(ctx context.Context, src string, reader core.PacketReader) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("src", src).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(reader, cancel)

	m.mu.Lock()
	if old, ok := m.relays[src]; ok {
		logger.Info().Msg("replacing existing relay for source")
		old.markAllDelete()
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[src] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")

	go func() {
		relay.loop(relayCtx, &logger)
		m.forget(src, relay)
	}()
	return relay
}

// AddSubscriber attaches sink to the relay of src under the name dst.
func (m *RelayManager) AddSubscriber(src, dst string, sink Sink) bool {
	m.mu.RLock()
	relay, ok := m.relays[src]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	relay.AddOutTrack(dst, NewOutTrack(sink))
	return true
}

// SetMuted pauses or resumes forwarding to dst without dropping it.
func (m *RelayManager) SetMuted(src, dst string, muted bool) bool {
	ot, ok := m.outTrack(src, dst)
	if !ok || ot.GetState() == TrackStateDelete {
		return false
	}
	if muted {
		ot.MarkMuted()
	} else {
		ot.MarkOk()
	}
	return true
}

// MarkSubscriberDelete marks subscriber's OutTrack as TrackStateDelete.
func (m *RelayManager) MarkSubscriberDelete(src, dst string) {
	if ot, ok := m.outTrack(src, dst); ok {
		ot.MarkDelete()
	}
}

// StopRelay stops a relay and removes it from the manager.
func (m *RelayManager) StopRelay(src string) {
	m.mu.Lock()
	relay, ok := m.relays[src]
	if ok {
		delete(m.relays, src)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	if relay.cancel != nil {
		relay.cancel()
	}
}

// StopAll stops every relay.
func (m *RelayManager) StopAll() {
	m.mu.RLock()
	srcs := make([]string, 0, len(m.relays))
	for src := range m.relays {
		srcs = append(srcs, src)
	}
	m.mu.RUnlock()
	for _, src := range srcs {
		m.StopRelay(src)
	}
}

// HasRelay reports whether a relay exists for src.
func (m *RelayManager) HasRelay(src string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[src]
	return ok
}

// Source returns the packet source of a relay.
func (m *RelayManager) Source(src string) (core.PacketReader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relay, ok := m.relays[src]
	if !ok {
		return nil, false
	}
	return relay.Src, true
}

func (m *RelayManager) outTrack(src, dst string) (*OutTrack, bool) {
	m.mu.RLock()
	relay, ok := m.relays[src]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return relay.outTrack(dst)
}

func (m *RelayManager) forget(src string, relay *Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relays[src] == relay {
		delete(m.relays, src)
	}
}
