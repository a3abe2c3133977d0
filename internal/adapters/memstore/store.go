// Package memstore is an in-process document store with snapshot-listener
// semantics. The signaling hub serves it to remote participants and tests
// use it directly.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

var _ core.DocumentStore = (*Store)(nil)

type Option func(*Store)

// WithClock replaces time.Now for create and update stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type entry struct {
	doc core.Document
	seq uint64
}

type collection struct {
	docs  map[string]*entry
	order []string // ids in creation order
}

type Store struct {
	mu        sync.Mutex
	colls     map[string]*collection
	listeners map[*listener]struct{}
	seq       uint64
	writeErr  error
	now       func() time.Time

	wg conc.WaitGroup
}

func New(opts ...Option) *Store {
	s := &Store{
		colls:     make(map[string]*collection),
		listeners: make(map[*listener]struct{}),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FailWrites makes every write return err until called with nil.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *Store) Add(ctx context.Context, coll string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, coll, id, data, writeCreate); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, coll, id string, data map[string]any) error {
	return s.write(ctx, coll, id, data, writeReplace)
}

func (s *Store) Update(ctx context.Context, coll, id string, data map[string]any) error {
	return s.write(ctx, coll, id, data, writeMerge)
}

func (s *Store) Get(ctx context.Context, coll, id string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[coll]
	if !ok {
		return core.Document{}, fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	e, ok := c.docs[id]
	if !ok {
		return core.Document{}, fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	}
	return cloneDoc(e.doc), nil
}

// Delete removes a document and notifies listeners.
func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[coll]
	if !ok {
		return nil
	}
	e, ok := c.docs[id]
	if !ok {
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.publishLocked(coll, core.DocumentChange{Kind: core.ChangeRemoved, Document: cloneDoc(e.doc)})
	return nil
}

type writeMode int

const (
	writeCreate writeMode = iota
	writeReplace
	writeMerge
)

func (s *Store) write(ctx context.Context, coll, id string, data map[string]any, mode writeMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	c, ok := s.colls[coll]
	if !ok {
		c = &collection{docs: make(map[string]*entry)}
		s.colls[coll] = c
	}
	now := s.now()
	e, exists := c.docs[id]
	switch {
	case mode == writeMerge && !exists:
		return fmt.Errorf("%s/%s: %w", coll, id, domain.ErrNotFound)
	case mode == writeCreate && exists:
		return fmt.Errorf("%s/%s: already exists", coll, id)
	}

	kind := core.ChangeModified
	if !exists {
		s.seq++
		e = &entry{seq: s.seq, doc: core.Document{ID: id, CreateTime: now, Data: map[string]any{}}}
		c.docs[id] = e
		c.order = append(c.order, id)
		kind = core.ChangeAdded
	}
	if mode == writeMerge {
		merged := maps.Clone(e.doc.Data)
		maps.Copy(merged, data)
		e.doc.Data = merged
	} else {
		e.doc.Data = maps.Clone(data)
		if e.doc.Data == nil {
			e.doc.Data = map[string]any{}
		}
	}
	e.doc.UpdateTime = now
	s.publishLocked(coll, core.DocumentChange{Kind: kind, Document: cloneDoc(e.doc)})
	return nil
}

func (s *Store) Listen(ctx context.Context, q core.Query, onChange func(core.DocumentChange), onErr func(error)) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := newListener(q, onChange)

	s.mu.Lock()
	if c, ok := s.colls[q.Collection]; ok {
		for _, id := range c.order {
			e := c.docs[id]
			if l.matches(e.doc) {
				l.push(core.DocumentChange{Kind: core.ChangeAdded, Document: cloneDoc(e.doc)})
			}
		}
	}
	s.listeners[l] = struct{}{}
	s.mu.Unlock()

	s.wg.Go(l.run)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, l)
			s.mu.Unlock()
			l.stop()
		})
	}
	stopAfter := context.AfterFunc(ctx, cancel)
	log.Debug().Str("module", "memstore").Str("collection", q.Collection).Msg("listener attached")
	return core.SubscriptionFunc(func() {
		stopAfter()
		cancel()
	}), nil
}

// Close detaches every listener and waits for their goroutines.
func (s *Store) Close() {
	s.mu.Lock()
	ls := make([]*listener, 0, len(s.listeners))
	for l := range s.listeners {
		ls = append(ls, l)
	}
	clear(s.listeners)
	s.mu.Unlock()
	for _, l := range ls {
		l.stop()
	}
	s.wg.Wait()
}

func (s *Store) publishLocked(coll string, ch core.DocumentChange) {
	for l := range s.listeners {
		if l.q.Collection == coll && (ch.Kind == core.ChangeRemoved || l.matches(ch.Document)) {
			l.push(ch)
		}
	}
}

func cloneDoc(d core.Document) core.Document {
	d.Data = maps.Clone(d.Data)
	return d
}
