package core

//go:generate mockgen -source=signal_iface.go -destination=mocks/mock_signal.go -package=mocks

import (
	"context"

	"github.com/dkeye/Cast/internal/domain"
)

// SignalTransport turns document store primitives into typed signaling
// events. Failures wrap domain.ErrTransport and are never retried here.
type SignalTransport interface {
	// PublishOffer mints the session id.
	PublishOffer(ctx context.Context, sdp string, viewerID string) (domain.SessionID, error)
	PublishAnswer(ctx context.Context, id domain.SessionID, sdp string) error
	AppendIceCandidate(ctx context.Context, id domain.SessionID, side domain.Side, c domain.IceCandidate) error
	// WatchLatestSession only reports sessions created inside the recency window.
	WatchLatestSession(ctx context.Context, h SessionHandlers) (Subscription, error)
	WatchIceCandidates(ctx context.Context, id domain.SessionID, side domain.Side, onAdded func(domain.IceCandidate), onErr func(error)) (Subscription, error)
	EndSession(ctx context.Context, id domain.SessionID) error
}
