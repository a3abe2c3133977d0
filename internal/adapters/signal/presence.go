package signal

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// DefaultPresenceID is the document holding the online aggregate.
const DefaultPresenceID = "online"

var _ core.PresenceCounter = (*Presence)(nil)

// Presence merges membership with set semantics and writes the whole
// record back. No lock is taken: the store's last write wins and repeated
// merges converge.
type Presence struct {
	store core.DocumentStore
	docID string
}

func NewPresence(store core.DocumentStore, docID string) *Presence {
	if docID == "" {
		docID = DefaultPresenceID
	}
	return &Presence{store: store, docID: docID}
}

func (p *Presence) Join(ctx context.Context, memberID int, memberName string) (domain.PresenceRecord, error) {
	rec, err := p.merge(ctx, func(r domain.PresenceRecord) domain.PresenceRecord { return r.Join(memberID, memberName) })
	if err != nil {
		return rec, err
	}
	log.Info().Str("module", "presence").Int("member_id", memberID).Int("count", rec.Count).Msg("joined")
	return rec, nil
}

func (p *Presence) Leave(ctx context.Context, memberID int, memberName string) (domain.PresenceRecord, error) {
	rec, err := p.merge(ctx, func(r domain.PresenceRecord) domain.PresenceRecord { return r.Leave(memberID, memberName) })
	if err != nil {
		return rec, err
	}
	log.Info().Str("module", "presence").Int("member_id", memberID).Int("count", rec.Count).Msg("left")
	return rec, nil
}

func (p *Presence) Read(ctx context.Context) (domain.PresenceRecord, error) {
	doc, err := p.store.Get(ctx, presenceCollection, p.docID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PresenceRecord{}.Normalize(), nil
	}
	if err != nil {
		return domain.PresenceRecord{}, fmt.Errorf("%w: read: %w", domain.ErrPresenceMerge, err)
	}
	rec, err := decodePresence(doc.Data)
	if err != nil {
		return domain.PresenceRecord{}, fmt.Errorf("%w: decode: %w", domain.ErrPresenceMerge, err)
	}
	return rec, nil
}

func (p *Presence) merge(ctx context.Context, fn func(domain.PresenceRecord) domain.PresenceRecord) (domain.PresenceRecord, error) {
	cur, err := p.Read(ctx)
	if err != nil {
		return domain.PresenceRecord{}, err
	}
	next := fn(cur)
	if next.Equal(cur) {
		return next, nil
	}
	if err := p.store.Set(ctx, presenceCollection, p.docID, presenceToMap(next)); err != nil {
		return domain.PresenceRecord{}, fmt.Errorf("%w: write: %w", domain.ErrPresenceMerge, err)
	}
	return next, nil
}

func (p *Presence) Watch(ctx context.Context, fn func(domain.PresenceRecord), onErr func(error)) (core.Subscription, error) {
	if fn == nil {
		fn = func(domain.PresenceRecord) {}
	}
	onChange := func(ch core.DocumentChange) {
		if ch.Document.ID != p.docID {
			return
		}
		if ch.Kind == core.ChangeRemoved {
			fn(domain.PresenceRecord{}.Normalize())
			return
		}
		rec, err := decodePresence(ch.Document.Data)
		if err != nil {
			log.Warn().Err(err).Str("module", "presence").Msg("invalid presence document")
			if onErr != nil {
				onErr(fmt.Errorf("%w: decode: %w", domain.ErrTransport, err))
			}
			return
		}
		fn(rec)
	}
	sub, err := p.store.Listen(ctx, core.Query{Collection: presenceCollection}, onChange, onErr)
	if err != nil {
		return nil, fmt.Errorf("%w: watch presence: %w", domain.ErrTransport, err)
	}
	return sub, nil
}
