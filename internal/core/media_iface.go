package core

//go:generate mockgen -source=media_iface.go -destination=mocks/mock_media.go -package=mocks

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"

	"github.com/dkeye/Cast/internal/domain"
)

// PacketReader is anything RTP can be pulled from: a remote track or an ingest socket.
type PacketReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RemoteTrack is a media track surfaced by the peer connection.
type RemoteTrack interface {
	PacketReader
	ID() string
	StreamID() string
}

// PeerConnection is a thin facade over the media engine. It owns no
// business logic; ICE and DTLS are the engine's job.
type PeerConnection interface {
	CreateOffer(ctx context.Context) (domain.SessionDescription, error)
	CreateAnswer(ctx context.Context) (domain.SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc domain.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc domain.SessionDescription) error
	AddICECandidate(ctx context.Context, c domain.IceCandidate) error
	// CreateDataChannel opens the control channel. Only the offerer calls it;
	// the answerer receives the channel from the engine.
	CreateDataChannel(label string) error
	// SendData writes to the open control channel.
	SendData(data []byte) error

	OnLocalICECandidate(func(domain.IceCandidate))
	OnRemoteTrack(func(RemoteTrack))
	OnDataChannelOpen(func())
	OnDataChannelMessage(func([]byte))
	// OnClosed fires when the engine reports the connection failed or closed.
	OnClosed(func())
	Close()
}

// PeerConnectionFactory builds one engine connection per session.
type PeerConnectionFactory func(sid string) (PeerConnection, error)
