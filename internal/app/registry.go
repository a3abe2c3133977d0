package app

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// SessionInfo is what the directory knows about one signaling session.
type SessionInfo struct {
	ID        domain.SessionID `json:"id"`
	ViewerID  string           `json:"viewerId,omitempty"`
	Answered  bool             `json:"answered"`
	Active    bool             `json:"active"`
	Timestamp int64            `json:"timestamp"`
}

// Registry is a directory of recent sessions fed by a session watch.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*SessionInfo
	limit    int
}

// NewRegistry keeps at most limit sessions, oldest evicted first. A
// non-positive limit keeps everything.
func NewRegistry(limit int) *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*SessionInfo),
		limit:    limit,
	}
}

// Track subscribes the registry to t. The caller owns the subscription.
func (r *Registry) Track(ctx context.Context, t core.SignalTransport) (core.Subscription, error) {
	return t.WatchLatestSession(ctx, core.SessionHandlers{
		OnOffer:  r.Offered,
		OnAnswer: r.Answered,
		OnEnded:  r.Ended,
		OnError: func(err error) {
			log.Error().Str("module", "app.registry").Err(err).Msg("session watch error")
		},
	})
}

func (r *Registry) Offered(ev core.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[ev.ID] = &SessionInfo{
		ID:        ev.ID,
		ViewerID:  ev.ViewerID,
		Active:    ev.Active,
		Timestamp: ev.Timestamp,
	}
	r.evictLocked()
	log.Info().Str("module", "app.registry").Str("sid", string(ev.ID)).Str("viewer", ev.ViewerID).Msg("session offered")
}

func (r *Registry) Answered(ev core.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[ev.ID]
	if !ok {
		s = &SessionInfo{ID: ev.ID, ViewerID: ev.ViewerID, Timestamp: ev.Timestamp, Active: true}
		r.sessions[ev.ID] = s
		r.evictLocked()
	}
	s.Answered = true
	log.Info().Str("module", "app.registry").Str("sid", string(ev.ID)).Msg("session answered")
}

func (r *Registry) Ended(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Active = false
		log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("session ended")
	}
}

func (r *Registry) Get(id domain.SessionID) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return *s, true
}

// List returns sessions newest first.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b SessionInfo) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	return out
}

func (r *Registry) evictLocked() {
	for r.limit > 0 && len(r.sessions) > r.limit {
		var oldest *SessionInfo
		for _, s := range r.sessions {
			if oldest == nil || s.Timestamp < oldest.Timestamp {
				oldest = s
			}
		}
		delete(r.sessions, oldest.ID)
	}
}
