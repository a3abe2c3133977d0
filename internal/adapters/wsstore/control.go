package wsstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
)

func (ctl *Controller) handlePing(p *peer, f frame) {
	ctl.reply(p, frame{Type: typePong, Seq: f.Seq})
}

func (ctl *Controller) handleWrite(ctx context.Context, p *peer, f frame) {
	if !validPath(f.Collection) || (f.Type != typeAdd && f.ID == "") {
		ctl.reply(p, errorFrame(f.Seq, fmt.Errorf("%w: %s %q", errBadRequest, f.Type, f.Collection)))
		return
	}
	if !ctl.Limiter.Allow(p.token) {
		log.Warn().Str("module", "wsstore").Str("client", p.token).Str("op", f.Type).Msg("rate limited")
		ctl.reply(p, errorFrame(f.Seq, ErrRateLimited))
		return
	}

	var (
		id  = f.ID
		err error
	)
	switch f.Type {
	case typeAdd:
		id, err = ctl.Store.Add(ctx, f.Collection, f.Data)
	case typeSet:
		err = ctl.Store.Set(ctx, f.Collection, f.ID, f.Data)
	case typeUpdate:
		err = ctl.Store.Update(ctx, f.Collection, f.ID, f.Data)
	}
	if err != nil {
		ctl.reply(p, errorFrame(f.Seq, err))
		return
	}
	ctl.reply(p, frame{Type: typeResult, Seq: f.Seq, ID: id})
}

func (ctl *Controller) handleGet(ctx context.Context, p *peer, f frame) {
	if !validPath(f.Collection) || f.ID == "" {
		ctl.reply(p, errorFrame(f.Seq, errBadRequest))
		return
	}
	doc, err := ctl.Store.Get(ctx, f.Collection, f.ID)
	if err != nil {
		ctl.reply(p, errorFrame(f.Seq, err))
		return
	}
	ctl.reply(p, frame{Type: typeResult, Seq: f.Seq, Doc: toWireDoc(doc)})
}

func (ctl *Controller) handleListen(ctx context.Context, p *peer, f frame) {
	if !validPath(f.Collection) || f.Sub == 0 {
		ctl.reply(p, errorFrame(f.Seq, errBadRequest))
		return
	}
	q := core.Query{Collection: f.Collection}
	if f.CreatedAfter > 0 {
		q.CreatedAfter = time.Unix(0, f.CreatedAfter)
	}
	sub := f.Sub
	s, err := ctl.Store.Listen(ctx, q,
		func(ch core.DocumentChange) {
			ctl.reply(p, frame{Type: typeChange, Sub: sub, Kind: ch.Kind.String(), Doc: toWireDoc(ch.Document)})
		},
		func(err error) {
			ctl.reply(p, frame{Type: typeSubError, Sub: sub, Error: err.Error()})
		},
	)
	if err != nil {
		ctl.reply(p, errorFrame(f.Seq, err))
		return
	}
	p.mu.Lock()
	if old, ok := p.subs[sub]; ok {
		old.Cancel()
	}
	p.subs[sub] = s
	p.mu.Unlock()
	log.Debug().Str("module", "wsstore").Str("client", p.token).Str("collection", f.Collection).Uint64("sub", sub).Msg("listening")
	ctl.reply(p, frame{Type: typeResult, Seq: f.Seq, Sub: sub})
}

func (ctl *Controller) handleUnlisten(p *peer, f frame) {
	p.mu.Lock()
	s, ok := p.subs[f.Sub]
	delete(p.subs, f.Sub)
	p.mu.Unlock()
	if ok {
		s.Cancel()
	}
	if f.Seq != 0 {
		ctl.reply(p, frame{Type: typeResult, Seq: f.Seq, Sub: f.Sub})
	}
}
