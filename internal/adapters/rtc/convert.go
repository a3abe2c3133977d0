package rtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Cast/internal/domain"
)

func toSDP(d domain.SessionDescription) webrtc.SessionDescription {
	t := webrtc.SDPTypeOffer
	if d.Kind == domain.SDPAnswer {
		t = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: t, SDP: d.SDP}
}

func fromSDP(sd webrtc.SessionDescription) (domain.SessionDescription, error) {
	switch sd.Type {
	case webrtc.SDPTypeOffer:
		return domain.SessionDescription{SDP: sd.SDP, Kind: domain.SDPOffer}, nil
	case webrtc.SDPTypeAnswer:
		return domain.SessionDescription{SDP: sd.SDP, Kind: domain.SDPAnswer}, nil
	}
	return domain.SessionDescription{}, fmt.Errorf("unsupported sdp type %s", sd.Type)
}

func toICEInit(c domain.IceCandidate) webrtc.ICECandidateInit {
	mid := c.Mid
	idx := uint16(c.MLineIndex)
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}

func fromICEInit(in webrtc.ICECandidateInit) domain.IceCandidate {
	c := domain.IceCandidate{Candidate: in.Candidate}
	if in.SDPMid != nil {
		c.Mid = *in.SDPMid
	}
	if in.SDPMLineIndex != nil {
		c.MLineIndex = int(*in.SDPMLineIndex)
	}
	return c
}
