package core

import (
	"context"
	"time"
)

// Document is a raw key/value snapshot. Schema lives in the adapters that
// read it, never here.
type Document struct {
	ID         string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	}
	return "removed"
}

type DocumentChange struct {
	Kind     ChangeKind
	Document Document
}

// Query selects a collection path ("sessions", "sessions/<id>/offerCandidates").
// A zero CreatedAfter matches every document.
type Query struct {
	Collection   string
	CreatedAfter time.Time
}

// DocumentStore is the managed document database used as the signaling
// channel. Listen has snapshot-listener semantics: existing documents are
// delivered first as added, in creation order, then live changes.
type DocumentStore interface {
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Update(ctx context.Context, collection, id string, data map[string]any) error
	Get(ctx context.Context, collection, id string) (Document, error)
	Listen(ctx context.Context, q Query, onChange func(DocumentChange), onErr func(error)) (Subscription, error)
}
