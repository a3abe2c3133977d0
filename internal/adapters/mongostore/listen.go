package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/Cast/internal/core"
)

type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Listen opens the change stream before reading the snapshot so nothing
// written in between is lost. Inserts already seen in the snapshot are
// skipped.
func (s *Store) Listen(ctx context.Context, q core.Query, onChange func(core.DocumentChange), onErr func(error)) (core.Subscription, error) {
	p, err := splitPath(q.Collection)
	if err != nil {
		return nil, err
	}
	c := s.collection(ctx, p)

	match := bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}}}}}
	csOpts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cs, err := c.Watch(lctx, mongo.Pipeline{{{Key: "$match", Value: match}}}, csOpts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", q.Collection, err)
	}

	filter := bson.D{{Key: fieldParent, Value: p.parent}}
	if !q.CreatedAfter.IsZero() {
		filter = append(filter, bson.E{Key: fieldCreated, Value: bson.D{{Key: "$gt", Value: q.CreatedAfter.UnixNano()}}})
	}
	cur, err := c.Find(lctx, filter, options.Find().SetSort(bson.D{{Key: fieldCreated, Value: 1}}))
	if err != nil {
		_ = cs.Close(context.Background())
		cancel()
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	var snapshot []bson.M
	if err := cur.All(lctx, &snapshot); err != nil {
		_ = cs.Close(context.Background())
		cancel()
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}

	l := &mongoListener{
		q:        q,
		parent:   p.parent,
		onChange: onChange,
		onErr:    onErr,
		known:    make(map[string]bool, len(snapshot)),
	}
	s.wg.Go(func() {
		defer func() { _ = cs.Close(context.Background()) }()
		for _, raw := range snapshot {
			d := toDocument(raw)
			l.known[d.ID] = true
			l.deliver(core.DocumentChange{Kind: core.ChangeAdded, Document: d})
		}
		l.follow(lctx, cs)
	})

	var once sync.Once
	stopAfter := context.AfterFunc(ctx, cancel)
	log.Debug().Str("module", "mongostore").Str("collection", q.Collection).Msg("listener attached")
	return core.SubscriptionFunc(func() {
		once.Do(func() {
			stopAfter()
			cancel()
		})
	}), nil
}

type mongoListener struct {
	q        core.Query
	parent   string
	onChange func(core.DocumentChange)
	onErr    func(error)
	known    map[string]bool
}

func (l *mongoListener) deliver(ch core.DocumentChange) {
	if l.onChange != nil {
		l.onChange(ch)
	}
}

func (l *mongoListener) follow(ctx context.Context, cs *mongo.ChangeStream) {
	for cs.Next(ctx) {
		var ev changeEvent
		if err := cs.Decode(&ev); err != nil {
			log.Warn().Err(err).Str("module", "mongostore").Msg("decode change")
			continue
		}
		if ch, ok := l.translate(ev); ok {
			l.deliver(ch)
		}
	}
	if err := cs.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("module", "mongostore").Str("collection", l.q.Collection).Msg("change stream")
		if l.onErr != nil {
			l.onErr(err)
		}
	}
}

// translate maps a change event to this listener's view, dropping events
// for other parents or older documents.
func (l *mongoListener) translate(ev changeEvent) (core.DocumentChange, bool) {
	if ev.OperationType == "delete" {
		id := ev.DocumentKey.ID
		if !l.known[id] {
			return core.DocumentChange{}, false
		}
		delete(l.known, id)
		return core.DocumentChange{Kind: core.ChangeRemoved, Document: core.Document{ID: id}}, true
	}
	if ev.FullDocument == nil {
		return core.DocumentChange{}, false
	}
	if parent, _ := ev.FullDocument[fieldParent].(string); parent != l.parent {
		return core.DocumentChange{}, false
	}
	d := toDocument(ev.FullDocument)
	if !l.q.CreatedAfter.IsZero() && !d.CreateTime.After(l.q.CreatedAfter) {
		return core.DocumentChange{}, false
	}

	switch ev.OperationType {
	case "insert":
		if l.known[d.ID] {
			return core.DocumentChange{}, false
		}
		l.known[d.ID] = true
		return core.DocumentChange{Kind: core.ChangeAdded, Document: d}, true
	default:
		if !l.known[d.ID] {
			// upsert through Set
			l.known[d.ID] = true
			return core.DocumentChange{Kind: core.ChangeAdded, Document: d}, true
		}
		return core.DocumentChange{Kind: core.ChangeModified, Document: d}, true
	}
}
