package sfu

import (
	"errors"
	"net"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

const maxDatagram = 1500

// UDPSource reads RTP datagrams from a socket, e.g. an ffmpeg or
// gstreamer pipeline sending to 127.0.0.1:5004.
type UDPSource struct {
	conn net.PacketConn
	buf  []byte
}

func ListenUDP(addr string) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return NewUDPSource(conn), nil
}

func NewUDPSource(conn net.PacketConn) *UDPSource {
	return &UDPSource{conn: conn, buf: make([]byte, maxDatagram)}
}

func (s *UDPSource) Addr() net.Addr { return s.conn.LocalAddr() }

// ReadRTP skips datagrams that do not parse as RTP.
func (s *UDPSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	for {
		n, _, err := s.conn.ReadFrom(s.buf)
		if err != nil {
			return nil, nil, err
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(s.buf[:n]); err != nil {
			log.Debug().Str("module", "relay").Err(err).Msg("dropping non-RTP datagram")
			continue
		}
		return pkt, nil, nil
	}
}

func (s *UDPSource) Close() error { return s.conn.Close() }

// UDPSink writes forwarded packets to a fixed address.
type UDPSink struct {
	conn net.Conn
}

func DialUDP(addr string) (*UDPSink, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPSink{conn: conn}, nil
}

func (s *UDPSink) WriteRTP(p *rtp.Packet) error {
	if p == nil {
		return errors.New("nil packet")
	}
	b, err := p.Marshal()
	if err != nil {
		return err
	}
	_, err = s.conn.Write(b)
	return err
}

func (s *UDPSink) Close() error { return s.conn.Close() }
