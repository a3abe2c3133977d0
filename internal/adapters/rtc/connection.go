package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

var ErrNoDataChannel = errors.New("data channel not open")

type Config struct {
	ICEServers []string
	// ReceiveVideo adds a recvonly video transceiver so an offer asks for
	// the broadcaster's screen.
	ReceiveVideo bool
	// Tracks are sent to the remote side.
	Tracks []webrtc.TrackLocal
	// IncludeLoopback gathers 127.0.0.1 candidates; for same-host runs.
	IncludeLoopback bool
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func (c Config) webrtcConfig() webrtc.Configuration {
	if c.ICEServers == nil {
		return DefaultWebRTCConfig()
	}
	cfg := webrtc.Configuration{}
	if len(c.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: c.ICEServers}}
	}
	return cfg
}

// WebRTCConnection adapts a pion PeerConnection to core.PeerConnection.
type WebRTCConnection struct {
	pc  *webrtc.PeerConnection
	sid string

	mu       sync.RWMutex
	dc       *webrtc.DataChannel
	onICE    func(domain.IceCandidate)
	onTrack  func(core.RemoteTrack)
	onOpen   func()
	onMsg    func([]byte)
	onClosed func()

	closeOnce  sync.Once
	closedOnce sync.Once
}

var _ core.PeerConnection = (*WebRTCConnection)(nil)

// NewFactory returns a factory building one connection per session.
func NewFactory(cfg Config) core.PeerConnectionFactory {
	return func(sid string) (core.PeerConnection, error) {
		return NewWebRTCConnection(cfg, sid)
	}
}

func NewWebRTCConnection(cfg Config, sid string) (*WebRTCConnection, error) {
	se := webrtc.SettingEngine{}
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))
	pc, err := api.NewPeerConnection(cfg.webrtcConfig())
	if err != nil {
		return nil, err
	}
	c := &WebRTCConnection{pc: pc, sid: sid}
	c.register()

	if cfg.ReceiveVideo {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	for _, t := range cfg.Tracks {
		if _, err := c.AddLocalTrack(t); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *WebRTCConnection) register() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", c.sid).Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("sid", c.sid).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			c.fireClosed()
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.RLock()
		fn := c.onICE
		c.mu.RUnlock()
		if fn != nil {
			fn(fromICEInit(cand.ToJSON()))
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("sid", c.sid).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.RLock()
		fn := c.onTrack
		c.mu.RUnlock()
		if fn != nil {
			fn(track)
		}
	})

	// The answerer gets the channel from the offerer.
	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Info().Str("module", "webrtc").Str("sid", c.sid).Str("label", dc.Label()).Msg("remote data channel")
		c.bindChannel(dc)
	})
}

func (c *WebRTCConnection) bindChannel(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()
	dc.OnOpen(func() {
		c.mu.RLock()
		fn := c.onOpen
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.mu.RLock()
		fn := c.onMsg
		c.mu.RUnlock()
		if fn != nil {
			fn(msg.Data)
		}
	})
}

func (c *WebRTCConnection) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionDescription{}, err
	}
	sd, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromSDP(sd)
}

func (c *WebRTCConnection) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionDescription{}, err
	}
	sd, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromSDP(sd)
}

func (c *WebRTCConnection) SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.pc.SetLocalDescription(toSDP(desc))
}

func (c *WebRTCConnection) SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.pc.SetRemoteDescription(toSDP(desc))
}

func (c *WebRTCConnection) AddICECandidate(ctx context.Context, cand domain.IceCandidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.pc.AddICECandidate(toICEInit(cand))
}

func (c *WebRTCConnection) CreateDataChannel(label string) error {
	ordered := true
	dc, err := c.pc.CreateDataChannel(label, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return err
	}
	c.bindChannel(dc)
	return nil
}

func (c *WebRTCConnection) SendData(data []byte) error {
	c.mu.RLock()
	dc := c.dc
	c.mu.RUnlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNoDataChannel
	}
	return dc.SendText(string(data))
}

func (c *WebRTCConnection) OnLocalICECandidate(fn func(domain.IceCandidate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

func (c *WebRTCConnection) OnRemoteTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

func (c *WebRTCConnection) OnDataChannelOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

func (c *WebRTCConnection) OnDataChannelMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = fn
}

// OnClosed sets application-level callback for cleanup; it fires once.
func (c *WebRTCConnection) OnClosed(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClosed = fn
}

func (c *WebRTCConnection) fireClosed() {
	c.closedOnce.Do(func() {
		c.mu.RLock()
		fn := c.onClosed
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	})
}

func (c *WebRTCConnection) Close() {
	c.closeOnce.Do(func() {
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "webrtc").Str("sid", c.sid).Msg("close error")
		} else {
			log.Info().Str("module", "webrtc").Str("sid", c.sid).Msg("closed")
		}
		c.fireClosed()
	})
}

// AddLocalTrack attaches a local track and drains its RTCP.
func (c *WebRTCConnection) AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, fmt.Errorf("add track %s: %w", track.ID(), err)
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return sender, nil
}

func (c *WebRTCConnection) ConnectionState() webrtc.PeerConnectionState {
	return c.pc.ConnectionState()
}
