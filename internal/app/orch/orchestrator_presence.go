package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const presenceTimeout = 5 * time.Second

// joinPresence counts the participant online. A failed merge is reported
// on the side channel and never blocks the session. It waits for the Leave
// of the previous session so the two merges land in order.
func (o *Orchestrator) joinPresence(ctx context.Context) bool {
	o.mu.Lock()
	pending := o.leaving
	o.mu.Unlock()
	if pending != nil {
		select {
		case <-pending:
		case <-ctx.Done():
			o.onSideError(ctx.Err())
			return false
		}
	}

	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	rec, err := o.Presence.Join(ctx, o.Participant.MemberID, o.Participant.Name)
	if err != nil {
		log.Error().Str("module", "orch").Err(err).Int("member_id", o.Participant.MemberID).Msg("presence join failed")
		o.onSideError(err)
		return false
	}
	log.Info().Str("module", "orch").Int("member_id", o.Participant.MemberID).Int("online", rec.Count).Msg("presence joined")
	return true
}

// leavePresence runs off the machine goroutine, after any earlier Leave;
// Close waits for it.
func (o *Orchestrator) leavePresence() {
	done := make(chan struct{})
	o.mu.Lock()
	prev := o.leaving
	o.leaving = done
	o.mu.Unlock()

	o.wg.Go(func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		rec, err := o.Presence.Leave(ctx, o.Participant.MemberID, o.Participant.Name)
		if err != nil {
			log.Error().Str("module", "orch").Err(err).Int("member_id", o.Participant.MemberID).Msg("presence leave failed")
			o.onSideError(err)
			return
		}
		log.Info().Str("module", "orch").Int("member_id", o.Participant.MemberID).Int("online", rec.Count).Msg("presence left")
	})
}
