package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// countingTransport records subscription lifetimes.
type countingTransport struct {
	core.SignalTransport

	mu       sync.Mutex
	open     int
	canceled int
}

func (c *countingTransport) track(sub core.Subscription) core.Subscription {
	c.mu.Lock()
	c.open++
	c.mu.Unlock()
	var once sync.Once
	return core.SubscriptionFunc(func() {
		once.Do(func() {
			c.mu.Lock()
			c.canceled++
			c.mu.Unlock()
			sub.Cancel()
		})
	})
}

func (c *countingTransport) WatchLatestSession(ctx context.Context, h core.SessionHandlers) (core.Subscription, error) {
	sub, err := c.SignalTransport.WatchLatestSession(ctx, h)
	if err != nil {
		return nil, err
	}
	return c.track(sub), nil
}

func (c *countingTransport) WatchIceCandidates(ctx context.Context, id domain.SessionID, side domain.Side, onAdded func(domain.IceCandidate), onErr func(error)) (core.Subscription, error) {
	sub, err := c.SignalTransport.WatchIceCandidates(ctx, id, side, onAdded, onErr)
	if err != nil {
		return nil, err
	}
	return c.track(sub), nil
}

func (c *countingTransport) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open, c.canceled
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}
