package core

import (
	"context"

	"github.com/dkeye/Cast/internal/domain"
)

// PresenceCounter keeps the shared online aggregate. Join and Leave are
// idempotent read-modify-write merges; failures wrap domain.ErrPresenceMerge.
type PresenceCounter interface {
	Join(ctx context.Context, memberID int, memberName string) (domain.PresenceRecord, error)
	Leave(ctx context.Context, memberID int, memberName string) (domain.PresenceRecord, error)
	Read(ctx context.Context) (domain.PresenceRecord, error)
	Watch(ctx context.Context, fn func(domain.PresenceRecord), onErr func(error)) (Subscription, error)
}
