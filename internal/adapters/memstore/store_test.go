package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

type recorder struct {
	mu      sync.Mutex
	changes []core.DocumentChange
	signal  chan struct{}
}

func newRecorder() *recorder { return &recorder{signal: make(chan struct{}, 64)} }

func (r *recorder) add(ch core.DocumentChange) {
	r.mu.Lock()
	r.changes = append(r.changes, ch)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recorder) waitFor(t *testing.T, n int) []core.DocumentChange {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		if len(r.changes) >= n {
			out := append([]core.DocumentChange(nil), r.changes...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		select {
		case <-r.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d changes", n)
		}
	}
}

func TestListenDeliversExistingThenLive(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	first, err := s.Add(ctx, "sessions", map[string]any{"n": 1})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	rec := newRecorder()
	sub, err := s.Listen(ctx, core.Query{Collection: "sessions"}, rec.add, nil)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer sub.Cancel()

	second, _ := s.Add(ctx, "sessions", map[string]any{"n": 2})
	if err := s.Update(ctx, "sessions", first, map[string]any{"m": true}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := rec.waitFor(t, 3)
	if got[0].Kind != core.ChangeAdded || got[0].Document.ID != first {
		t.Fatalf("change 0 = %+v", got[0])
	}
	if got[1].Kind != core.ChangeAdded || got[1].Document.ID != second {
		t.Fatalf("change 1 = %+v", got[1])
	}
	if got[2].Kind != core.ChangeModified || got[2].Document.Data["n"] != 1 || got[2].Document.Data["m"] != true {
		t.Fatalf("change 2 = %+v", got[2])
	}
}

func TestListenCreatedAfter(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	s := New(WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}))
	defer s.Close()

	_, _ = s.Add(ctx, "sessions", map[string]any{"old": true})
	mu.Lock()
	now = now.Add(time.Minute)
	mu.Unlock()
	fresh, _ := s.Add(ctx, "sessions", map[string]any{"old": false})

	rec := newRecorder()
	sub, _ := s.Listen(ctx, core.Query{Collection: "sessions", CreatedAfter: time.Unix(1030, 0)}, rec.add, nil)
	defer sub.Cancel()
	got := rec.waitFor(t, 1)
	if got[0].Document.ID != fresh {
		t.Fatalf("got %s, want %s", got[0].Document.ID, fresh)
	}
}

func TestUpdateMissing(t *testing.T) {
	s := New()
	defer s.Close()
	err := s.Update(context.Background(), "presence", "global", map[string]any{"count": 1})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(context.Background(), "presence", "global"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	rec := newRecorder()
	sub, _ := s.Listen(ctx, core.Query{Collection: "c"}, rec.add, nil)
	sub.Cancel()
	sub.Cancel()
	_, _ = s.Add(ctx, "c", nil)
	time.Sleep(20 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.changes) != 0 {
		t.Fatalf("got %d changes after cancel", len(rec.changes))
	}
}

func TestFailWrites(t *testing.T) {
	s := New()
	defer s.Close()
	boom := errors.New("boom")
	s.FailWrites(boom)
	if _, err := s.Add(context.Background(), "c", nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	s.FailWrites(nil)
	if _, err := s.Add(context.Background(), "c", nil); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteNotifies(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()
	id, _ := s.Add(ctx, "c", map[string]any{"a": 1})
	rec := newRecorder()
	sub, _ := s.Listen(ctx, core.Query{Collection: "c"}, rec.add, nil)
	defer sub.Cancel()
	if err := s.Delete(ctx, "c", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := rec.waitFor(t, 2)
	if got[1].Kind != core.ChangeRemoved || got[1].Document.ID != id {
		t.Fatalf("change = %+v", got[1])
	}
}
