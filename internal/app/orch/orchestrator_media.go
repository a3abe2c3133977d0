package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
)

// OnTrack is called when a remote media track appears for the session.
// With relays configured the track is consumed here and copied to every
// sink; the callback is then only a notification.
func (o *Orchestrator) OnTrack(track core.RemoteTrack) {
	if o.Relays != nil && len(o.Sinks) > 0 {
		src := "track:" + track.ID()
		o.Relays.StartRelay(context.Background(), src, track)
		for name, sink := range o.Sinks {
			o.Relays.AddSubscriber(src, name, sink)
		}
		o.mu.Lock()
		o.tracks = append(o.tracks, src)
		o.mu.Unlock()
		log.Info().
			Str("module", "orch").
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Int("sinks", len(o.Sinks)).
			Msg("relaying remote track")
	}
	if fn := o.Callbacks.OnRemoteTrack; fn != nil {
		fn(track)
	}
}

// cleanupMedia stops the relays fed by the session's tracks.
func (o *Orchestrator) cleanupMedia() {
	o.mu.Lock()
	tracks := o.tracks
	o.tracks = nil
	o.mu.Unlock()
	if o.Relays == nil {
		return
	}
	for _, src := range tracks {
		o.Relays.StopRelay(src)
	}
}
