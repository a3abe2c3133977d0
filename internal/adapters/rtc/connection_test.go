package rtc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Cast/internal/domain"
)

func TestCandidateConversion(t *testing.T) {
	in := domain.IceCandidate{Mid: "0", MLineIndex: 1, Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"}
	if got := fromICEInit(toICEInit(in)); got != in {
		t.Fatalf("round trip = %+v, want %+v", got, in)
	}
	if got := fromICEInit(webrtc.ICECandidateInit{Candidate: "c"}); got.Mid != "" || got.MLineIndex != 0 {
		t.Fatalf("nil fields = %+v", got)
	}
}

func TestDescriptionConversion(t *testing.T) {
	if got := toSDP(domain.SessionDescription{SDP: "x", Kind: domain.SDPAnswer}); got.Type != webrtc.SDPTypeAnswer {
		t.Fatalf("type = %v, want answer", got.Type)
	}
	if _, err := fromSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err == nil {
		t.Fatal("rollback accepted")
	}
}

func TestSendBeforeOpen(t *testing.T) {
	c, err := NewWebRTCConnection(Config{ICEServers: []string{}}, "s")
	if err != nil {
		t.Fatalf("NewWebRTCConnection: %v", err)
	}
	defer c.Close()
	if err := c.SendData([]byte("Home")); !errors.Is(err, ErrNoDataChannel) {
		t.Fatalf("SendData = %v, want ErrNoDataChannel", err)
	}
}

func TestCloseFiresOnce(t *testing.T) {
	c, err := NewWebRTCConnection(Config{ICEServers: []string{}}, "s")
	if err != nil {
		t.Fatalf("NewWebRTCConnection: %v", err)
	}
	calls := make(chan struct{}, 4)
	c.OnClosed(func() { calls <- struct{}{} })
	c.Close()
	c.Close()
	time.Sleep(50 * time.Millisecond)
	if n := len(calls); n != 1 {
		t.Fatalf("OnClosed fired %d times, want 1", n)
	}
}

func TestLoopbackDataChannel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := Config{ICEServers: []string{}, IncludeLoopback: true}
	offerer, err := NewWebRTCConnection(cfg, "o")
	if err != nil {
		t.Fatalf("offerer: %v", err)
	}
	defer offerer.Close()
	answerer, err := NewWebRTCConnection(cfg, "a")
	if err != nil {
		t.Fatalf("answerer: %v", err)
	}
	defer answerer.Close()

	// candidates flow straight across; descriptions are set before any arrive
	offerer.OnLocalICECandidate(func(c domain.IceCandidate) { _ = answerer.AddICECandidate(ctx, c) })
	answerer.OnLocalICECandidate(func(c domain.IceCandidate) { _ = offerer.AddICECandidate(ctx, c) })

	opened := make(chan struct{}, 2)
	offerer.OnDataChannelOpen(func() { opened <- struct{}{} })
	answerer.OnDataChannelOpen(func() { opened <- struct{}{} })
	got := make(chan string, 1)
	answerer.OnDataChannelMessage(func(b []byte) { got <- string(b) })

	if err := offerer.CreateDataChannel("control"); err != nil {
		t.Fatalf("CreateDataChannel: %v", err)
	}
	offer, err := offerer.CreateOffer(ctx)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := answerer.SetRemoteDescription(ctx, offer); err != nil {
		t.Fatalf("answerer SetRemoteDescription: %v", err)
	}
	answer, err := answerer.CreateAnswer(ctx)
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if answer.Kind != domain.SDPAnswer {
		t.Fatalf("answer kind = %v", answer.Kind)
	}
	if err := offerer.SetRemoteDescription(ctx, answer); err == nil {
		t.Fatal("answer applied before local offer")
	}
	if err := offerer.SetLocalDescription(ctx, offer); err != nil {
		t.Fatalf("offerer SetLocalDescription: %v", err)
	}
	if err := offerer.SetRemoteDescription(ctx, answer); err != nil {
		t.Fatalf("offerer SetRemoteDescription: %v", err)
	}
	if err := answerer.SetLocalDescription(ctx, answer); err != nil {
		t.Fatalf("answerer SetLocalDescription: %v", err)
	}

	for range 2 {
		select {
		case <-opened:
		case <-ctx.Done():
			t.Fatal("data channel did not open")
		}
	}
	if err := offerer.SendData([]byte("10 20 30 40 SwipeLeft")); err != nil {
		t.Fatalf("SendData: %v", err)
	}
	select {
	case msg := <-got:
		if msg != "10 20 30 40 SwipeLeft" {
			t.Fatalf("message = %q", msg)
		}
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}
