package mongostore

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

func TestSplitPath(t *testing.T) {
	cases := []struct {
		in     string
		coll   string
		parent string
		ok     bool
	}{
		{"sessions", "sessions", "", true},
		{"sessions/abc/offerCandidates", "offerCandidates", "sessions/abc", true},
		{"sessions/abc", "", "", false},
		{"", "", "", false},
		{"sessions//x", "", "", false},
	}
	for _, tc := range cases {
		p, err := splitPath(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("splitPath(%q) error = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if !tc.ok {
			if !errors.Is(err, ErrBadPath) {
				t.Fatalf("splitPath(%q) error = %v, want ErrBadPath", tc.in, err)
			}
			continue
		}
		if p.coll != tc.coll || p.parent != tc.parent {
			t.Fatalf("splitPath(%q) = %+v, want coll=%q parent=%q", tc.in, p, tc.coll, tc.parent)
		}
	}
}

func TestToBSONDropsReservedKeys(t *testing.T) {
	d := toBSON(map[string]any{"sdp": "v=0", "_id": "x", "$set": 1, "isOffer": true})
	if len(d) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(d), d)
	}
	if d[0].Key != "isOffer" || d[1].Key != "sdp" {
		t.Fatalf("keys = [%s %s], want sorted [isOffer sdp]", d[0].Key, d[1].Key)
	}
}

func TestToDocumentNormalizes(t *testing.T) {
	raw := bson.M{
		fieldID:       "doc1",
		fieldParent:   "sessions/abc",
		fieldCreated:  int64(1_000_000_000),
		fieldUpdated:  int64(2_000_000_000),
		"memberNames": primitive.A{"a", "b"},
		"count":       int32(2),
		"nested":      bson.D{{Key: "k", Value: primitive.A{int32(1)}}},
	}
	d := toDocument(raw)
	if d.ID != "doc1" {
		t.Fatalf("ID = %q, want doc1", d.ID)
	}
	if !d.CreateTime.Equal(time.Unix(1, 0)) || !d.UpdateTime.Equal(time.Unix(2, 0)) {
		t.Fatalf("times = %v/%v", d.CreateTime, d.UpdateTime)
	}
	if _, ok := d.Data[fieldParent]; ok {
		t.Fatalf("_parent leaked into data")
	}
	names, ok := d.Data["memberNames"].([]any)
	if !ok || len(names) != 2 || names[1] != "b" {
		t.Fatalf("memberNames = %#v", d.Data["memberNames"])
	}
	if got := d.Data["count"]; got != int64(2) {
		t.Fatalf("count = %#v, want int64(2)", got)
	}
	nested, ok := d.Data["nested"].(map[string]any)
	if !ok {
		t.Fatalf("nested = %#v", d.Data["nested"])
	}
	if k, ok := nested["k"].([]any); !ok || k[0] != int64(1) {
		t.Fatalf("nested.k = %#v", nested["k"])
	}
}

func TestTranslateFiltersParentAndDedupes(t *testing.T) {
	l := &mongoListener{
		q:      core.Query{Collection: "sessions/abc/offerCandidates"},
		parent: "sessions/abc",
		known:  map[string]bool{"seen": true},
	}
	doc := func(id, parent string) bson.M {
		return bson.M{fieldID: id, fieldParent: parent, fieldCreated: int64(5)}
	}

	if _, ok := l.translate(changeEvent{OperationType: "insert", FullDocument: doc("seen", "sessions/abc")}); ok {
		t.Fatalf("insert already in snapshot should be skipped")
	}
	if _, ok := l.translate(changeEvent{OperationType: "insert", FullDocument: doc("x", "sessions/other")}); ok {
		t.Fatalf("other parent should be skipped")
	}

	ch, ok := l.translate(changeEvent{OperationType: "insert", FullDocument: doc("new", "sessions/abc")})
	if !ok || ch.Kind != core.ChangeAdded || ch.Document.ID != "new" {
		t.Fatalf("insert = %+v, %v", ch, ok)
	}
	ch, ok = l.translate(changeEvent{OperationType: "update", FullDocument: doc("new", "sessions/abc")})
	if !ok || ch.Kind != core.ChangeModified {
		t.Fatalf("update = %+v, %v", ch, ok)
	}

	var del changeEvent
	del.OperationType = "delete"
	del.DocumentKey.ID = "new"
	ch, ok = l.translate(del)
	if !ok || ch.Kind != core.ChangeRemoved || ch.Document.ID != "new" {
		t.Fatalf("delete = %+v, %v", ch, ok)
	}
	if _, ok := l.translate(del); ok {
		t.Fatalf("second delete of unknown id should be skipped")
	}
}

func TestTranslateCreatedAfter(t *testing.T) {
	l := &mongoListener{
		q:     core.Query{Collection: "sessions", CreatedAfter: time.Unix(0, 100)},
		known: map[string]bool{},
	}
	old := bson.M{fieldID: "old", fieldParent: "", fieldCreated: int64(50)}
	if _, ok := l.translate(changeEvent{OperationType: "insert", FullDocument: old}); ok {
		t.Fatalf("document created before the cut should be skipped")
	}
	fresh := bson.M{fieldID: "fresh", fieldParent: "", fieldCreated: int64(150)}
	if _, ok := l.translate(changeEvent{OperationType: "insert", FullDocument: fresh}); !ok {
		t.Fatalf("document created after the cut should pass")
	}
}

// TestLiveMongo runs against a replica set named by CAST_TEST_MONGO_URI.
func TestLiveMongo(t *testing.T) {
	uri := os.Getenv("CAST_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CAST_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	s, err := Connect(ctx, uri, "cast_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close(context.Background())
	}()

	first, err := s.Add(ctx, "sessions", map[string]any{"sdp": "v=0", "isActive": true})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var (
		mu      sync.Mutex
		changes []core.DocumentChange
	)
	sub, err := s.Listen(ctx, core.Query{Collection: "sessions"}, func(ch core.DocumentChange) {
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer sub.Cancel()

	if err := s.Update(ctx, "sessions", first, map[string]any{"isActive": false}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := s.Update(ctx, "sessions", "missing", map[string]any{"isActive": false}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(changes)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(changes) < 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	if changes[0].Kind != core.ChangeAdded || changes[1].Kind != core.ChangeModified {
		t.Fatalf("kinds = %v %v, want added modified", changes[0].Kind, changes[1].Kind)
	}
	if changes[1].Document.Data["isActive"] != false {
		t.Fatalf("isActive = %v, want false", changes[1].Document.Data["isActive"])
	}

	doc, err := s.Get(ctx, "sessions", first)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Data["sdp"] != "v=0" {
		t.Fatalf("sdp = %v, want v=0", doc.Data["sdp"])
	}
}
