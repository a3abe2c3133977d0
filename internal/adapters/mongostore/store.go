// Package mongostore implements core.DocumentStore on MongoDB. Nested
// collection paths ("sessions/<id>/offerCandidates") map to the last path
// segment as the Mongo collection, with the parent path kept in a field.
// Listen needs change streams, so the server must run as a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

const (
	fieldID      = "_id"
	fieldParent  = "_parent"
	fieldCreated = "_created"
	fieldUpdated = "_updated"
)

var ErrBadPath = errors.New("bad collection path")

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time

	mu      sync.Mutex
	indexed map[string]bool

	wg conc.WaitGroup
}

var _ core.DocumentStore = (*Store)(nil)

// Connect dials uri and uses database name.
func Connect(ctx context.Context, uri, name string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := New(client.Database(name))
	s.client = client
	log.Info().Str("module", "mongostore").Str("db", name).Msg("connected")
	return s, nil
}

func New(db *mongo.Database) *Store {
	return &Store{db: db, now: time.Now, indexed: make(map[string]bool)}
}

// Close waits for listeners and disconnects a client opened by Connect.
func (s *Store) Close(ctx context.Context) error {
	s.wg.Wait()
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

type path struct {
	coll   string
	parent string
}

// splitPath turns "a/b/c" into collection c under parent "a/b".
func splitPath(p string) (path, error) {
	parts := strings.Split(p, "/")
	if p == "" || len(parts)%2 == 0 {
		return path{}, fmt.Errorf("%w: %q", ErrBadPath, p)
	}
	for _, s := range parts {
		if s == "" {
			return path{}, fmt.Errorf("%w: %q", ErrBadPath, p)
		}
	}
	last := len(parts) - 1
	return path{coll: parts[last], parent: strings.Join(parts[:last], "/")}, nil
}

func (p path) filter(id string) bson.D {
	return bson.D{{Key: fieldID, Value: id}, {Key: fieldParent, Value: p.parent}}
}

func (s *Store) collection(ctx context.Context, p path) *mongo.Collection {
	c := s.db.Collection(p.coll)
	s.mu.Lock()
	done := s.indexed[p.coll]
	s.indexed[p.coll] = true
	s.mu.Unlock()
	if !done {
		_, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: fieldParent, Value: 1}, {Key: fieldCreated, Value: 1}},
		})
		if err != nil {
			log.Warn().Err(err).Str("module", "mongostore").Str("collection", p.coll).Msg("create index")
		}
	}
	return c
}

func (s *Store) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	p, err := splitPath(collection)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	now := s.now().UnixNano()
	doc := toBSON(data)
	doc = append(doc,
		bson.E{Key: fieldID, Value: id},
		bson.E{Key: fieldParent, Value: p.parent},
		bson.E{Key: fieldCreated, Value: now},
		bson.E{Key: fieldUpdated, Value: now},
	)
	if _, err := s.collection(ctx, p).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return id, nil
}

// Set replaces the document, creating it if needed. The creation time of an
// existing document is kept.
func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	p, err := splitPath(collection)
	if err != nil {
		return err
	}
	now := s.now().UnixNano()
	c := s.collection(ctx, p)

	created := now
	var prev bson.M
	err = c.FindOne(ctx, p.filter(id), options.FindOne().SetProjection(bson.D{{Key: fieldCreated, Value: 1}})).Decode(&prev)
	switch {
	case err == nil:
		if ct, ok := prev[fieldCreated].(int64); ok {
			created = ct
		}
	case !errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}

	doc := toBSON(data)
	doc = append(doc,
		bson.E{Key: fieldParent, Value: p.parent},
		bson.E{Key: fieldCreated, Value: created},
		bson.E{Key: fieldUpdated, Value: now},
	)
	_, err = c.ReplaceOne(ctx, p.filter(id), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data map[string]any) error {
	p, err := splitPath(collection)
	if err != nil {
		return err
	}
	set := toBSON(data)
	set = append(set, bson.E{Key: fieldUpdated, Value: s.now().UnixNano()})
	res, err := s.collection(ctx, p).UpdateOne(ctx, p.filter(id), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	p, err := splitPath(collection)
	if err != nil {
		return core.Document{}, err
	}
	var raw bson.M
	err = s.collection(ctx, p).FindOne(ctx, p.filter(id)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Document{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return core.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return toDocument(raw), nil
}

// Delete removes a document. Not part of core.DocumentStore; used for
// housekeeping.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	p, err := splitPath(collection)
	if err != nil {
		return err
	}
	res, err := s.collection(ctx, p).DeleteOne(ctx, p.filter(id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return nil
}
