package app

import (
	"time"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

// Policy decides whether an idle answerer adopts an observed offer.
type Policy interface {
	AcceptOffer(local domain.ParticipantID, ev core.SessionEvent) bool
}

type AcceptAll struct{}

func (AcceptAll) AcceptOffer(domain.ParticipantID, core.SessionEvent) bool { return true }

// ViewerPolicy accepts active offers from other participants, optionally
// limited to an allow list and to offers younger than MaxAge.
type ViewerPolicy struct {
	Allow  map[string]struct{}
	MaxAge time.Duration
	Now    func() time.Time
}

func NewViewerPolicy(maxAge time.Duration, allow ...string) *ViewerPolicy {
	p := &ViewerPolicy{MaxAge: maxAge, Now: time.Now}
	if len(allow) > 0 {
		p.Allow = make(map[string]struct{}, len(allow))
		for _, id := range allow {
			p.Allow[id] = struct{}{}
		}
	}
	return p
}

func (p *ViewerPolicy) AcceptOffer(local domain.ParticipantID, ev core.SessionEvent) bool {
	if !ev.Active {
		return false
	}
	if ev.ViewerID != "" && ev.ViewerID == string(local) {
		return false
	}
	if p.Allow != nil {
		if _, ok := p.Allow[ev.ViewerID]; !ok {
			return false
		}
	}
	if p.MaxAge > 0 && ev.Timestamp > 0 {
		now := time.Now
		if p.Now != nil {
			now = p.Now
		}
		if now().Sub(time.UnixMilli(ev.Timestamp)) > p.MaxAge {
			return false
		}
	}
	return true
}
