// Package signal adapts a document store into the typed signaling channel
// and the shared presence record.
package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// DefaultRecencyWindow bounds which sessions a new watcher will resume.
const DefaultRecencyWindow = 10 * time.Second

var _ core.SignalTransport = (*Transport)(nil)

type Option func(*Transport)

func WithRecencyWindow(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

type Transport struct {
	store  core.DocumentStore
	window time.Duration
	now    func() time.Time
}

func NewTransport(store core.DocumentStore, opts ...Option) *Transport {
	t := &Transport{store: store, window: DefaultRecencyWindow, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Transport) RecencyWindow() time.Duration { return t.window }

func (t *Transport) PublishOffer(ctx context.Context, sdp string, viewerID string) (domain.SessionID, error) {
	doc := sessionDoc{
		SDP:       sdp,
		IsOffer:   true,
		IsActive:  true,
		ViewerID:  viewerID,
		Timestamp: t.now().UnixMilli(),
	}
	if err := validate.Struct(doc); err != nil {
		return "", fmt.Errorf("%w: publish offer: %w", domain.ErrTransport, err)
	}
	id, err := t.store.Add(ctx, sessionsCollection, doc.toMap())
	if err != nil {
		return "", fmt.Errorf("%w: publish offer: %w", domain.ErrTransport, err)
	}
	log.Info().Str("module", "signal").Str("sid", id).Msg("offer published")
	return domain.SessionID(id), nil
}

func (t *Transport) PublishAnswer(ctx context.Context, id domain.SessionID, sdp string) error {
	if sdp == "" {
		return fmt.Errorf("%w: publish answer: empty sdp", domain.ErrTransport)
	}
	err := t.store.Update(ctx, sessionsCollection, string(id), map[string]any{
		fieldSDP:     sdp,
		fieldIsOffer: false,
	})
	if err != nil {
		return fmt.Errorf("%w: publish answer %s: %w", domain.ErrTransport, id, err)
	}
	log.Info().Str("module", "signal").Str("sid", string(id)).Msg("answer published")
	return nil
}

func (t *Transport) AppendIceCandidate(ctx context.Context, id domain.SessionID, side domain.Side, c domain.IceCandidate) error {
	if _, err := t.store.Add(ctx, candidatesPath(id, side), candidateToMap(c)); err != nil {
		return fmt.Errorf("%w: append %s candidate %s: %w", domain.ErrTransport, side, id, err)
	}
	return nil
}

func (t *Transport) EndSession(ctx context.Context, id domain.SessionID) error {
	err := t.store.Update(ctx, sessionsCollection, string(id), map[string]any{fieldIsActive: false})
	if err != nil {
		return fmt.Errorf("%w: end session %s: %w", domain.ErrTransport, id, err)
	}
	log.Info().Str("module", "signal").Str("sid", string(id)).Msg("session ended")
	return nil
}

// WatchLatestSession reports offers, answers and hang-ups for sessions
// created inside the recency window. An offer older than one already
// reported is dropped so a resuming answerer only sees the latest.
func (t *Transport) WatchLatestSession(ctx context.Context, h core.SessionHandlers) (core.Subscription, error) {
	since := t.now().Add(-t.window)
	var (
		mu     sync.Mutex
		latest int64
		ended  = make(map[string]bool)
	)
	onChange := func(ch core.DocumentChange) {
		id := ch.Document.ID
		if ch.Kind == core.ChangeRemoved {
			mu.Lock()
			already := ended[id]
			ended[id] = true
			mu.Unlock()
			if !already && h.OnEnded != nil {
				h.OnEnded(domain.SessionID(id))
			}
			return
		}
		doc, err := decodeSession(id, ch.Document.Data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", id).Msg("invalid session document")
			if h.OnError != nil {
				h.OnError(err)
			}
			return
		}
		ev := core.SessionEvent{
			ID:        domain.SessionID(id),
			Active:    doc.IsActive,
			ViewerID:  doc.ViewerID,
			Timestamp: doc.Timestamp,
		}
		switch {
		case !doc.IsActive:
			mu.Lock()
			already := ended[id]
			ended[id] = true
			mu.Unlock()
			if !already && h.OnEnded != nil {
				h.OnEnded(ev.ID)
			}
		case doc.IsOffer:
			if ch.Kind == core.ChangeAdded && doc.Timestamp < since.UnixMilli() {
				return
			}
			mu.Lock()
			stale := doc.Timestamp < latest
			if !stale {
				latest = doc.Timestamp
			}
			mu.Unlock()
			if stale {
				log.Debug().Str("module", "signal").Str("sid", id).Msg("skipping older offer")
				return
			}
			ev.Description = domain.SessionDescription{SDP: doc.SDP, Kind: domain.SDPOffer}
			if h.OnOffer != nil {
				h.OnOffer(ev)
			}
		default:
			ev.Description = domain.SessionDescription{SDP: doc.SDP, Kind: domain.SDPAnswer}
			if h.OnAnswer != nil {
				h.OnAnswer(ev)
			}
		}
	}
	sub, err := t.store.Listen(ctx, core.Query{Collection: sessionsCollection, CreatedAfter: since}, onChange, t.wrapErr("watch sessions", h.OnError))
	if err != nil {
		return nil, fmt.Errorf("%w: watch sessions: %w", domain.ErrTransport, err)
	}
	return sub, nil
}

// WatchIceCandidates reports the candidates of one side in the order they
// were appended.
func (t *Transport) WatchIceCandidates(ctx context.Context, id domain.SessionID, side domain.Side, onAdded func(domain.IceCandidate), onErr func(error)) (core.Subscription, error) {
	onChange := func(ch core.DocumentChange) {
		if ch.Kind != core.ChangeAdded {
			return
		}
		c, err := decodeCandidate(ch.Document.ID, ch.Document.Data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(id)).Msg("invalid candidate document")
			if onErr != nil {
				onErr(err)
			}
			return
		}
		if onAdded != nil {
			onAdded(c)
		}
	}
	sub, err := t.store.Listen(ctx, core.Query{Collection: candidatesPath(id, side)}, onChange, t.wrapErr("watch candidates", onErr))
	if err != nil {
		return nil, fmt.Errorf("%w: watch %s candidates %s: %w", domain.ErrTransport, side, id, err)
	}
	return sub, nil
}

func (t *Transport) wrapErr(op string, fn func(error)) func(error) {
	return func(err error) {
		if !errors.Is(err, domain.ErrTransport) {
			err = fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
		}
		log.Error().Err(err).Str("module", "signal").Msg("subscription error")
		if fn != nil {
			fn(err)
		}
	}
}
