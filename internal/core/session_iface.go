package core

import "github.com/dkeye/Cast/internal/domain"

// Subscription is a continuous watch. It is never collected on its own;
// the owner must Cancel it on teardown. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a plain func to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Cancel() { f() }

// SessionEvent is a validated session document as observed by a watcher.
type SessionEvent struct {
	ID          domain.SessionID
	Description domain.SessionDescription
	Active      bool
	ViewerID    string
	Timestamp   int64 // unix millis, set by the offering side
}

// SessionHandlers receives typed events from WatchLatestSession.
// Handlers may run on any goroutine.
type SessionHandlers struct {
	OnOffer  func(SessionEvent)
	OnAnswer func(SessionEvent)
	OnEnded  func(domain.SessionID)
	OnError  func(error)
}
