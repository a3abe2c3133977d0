package app

import (
	"sync"

	"github.com/dkeye/Cast/internal/domain"
)

// CandidateBuffer orders trickle ICE in both directions.
//
// Local candidates wait until the session id and the local side are known,
// then leave in generation order. Remote candidates wait until the remote
// description is applied, then are replayed in arrival order. After
// Discard nothing is ever released again.
type CandidateBuffer struct {
	mu sync.Mutex

	sid   domain.SessionID
	side  domain.Side
	bound bool

	local         []domain.IceCandidate
	remote        []domain.IceCandidate
	remoteApplied bool
	discarded     bool
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{}
}

// EnqueueLocal returns the candidates that may be published now.
func (b *CandidateBuffer) EnqueueLocal(c domain.IceCandidate) []domain.IceCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded {
		return nil
	}
	b.local = append(b.local, c)
	if !b.bound {
		return nil
	}
	return b.drainLocalLocked()
}

// Bind fixes where local candidates go and releases the held ones.
func (b *CandidateBuffer) Bind(sid domain.SessionID, side domain.Side) []domain.IceCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded {
		return nil
	}
	b.sid, b.side, b.bound = sid, side, true
	return b.drainLocalLocked()
}

// Target reports the session and side local candidates are written to.
func (b *CandidateBuffer) Target() (domain.SessionID, domain.Side, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sid, b.side, b.bound
}

// EnqueueRemote returns the candidates that may be applied now: the new
// one if the remote description is in place, nothing otherwise.
func (b *CandidateBuffer) EnqueueRemote(c domain.IceCandidate) []domain.IceCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded {
		return nil
	}
	if !b.remoteApplied {
		b.remote = append(b.remote, c)
		return nil
	}
	return []domain.IceCandidate{c}
}

// MarkRemoteApplied releases the queued remote candidates in order.
func (b *CandidateBuffer) MarkRemoteApplied() []domain.IceCandidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded || b.remoteApplied {
		return nil
	}
	b.remoteApplied = true
	out := b.remote
	b.remote = nil
	return out
}

func (b *CandidateBuffer) RemoteApplied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remoteApplied
}

// Pending reports held candidates as (local, remote).
func (b *CandidateBuffer) Pending() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.local), len(b.remote)
}

// Discard drops everything still queued.
func (b *CandidateBuffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discarded = true
	b.local = nil
	b.remote = nil
}

func (b *CandidateBuffer) drainLocalLocked() []domain.IceCandidate {
	out := b.local
	b.local = nil
	return out
}
