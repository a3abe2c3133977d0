package domain

import (
	"errors"
	"testing"
)

func TestPresenceJoinIdempotent(t *testing.T) {
	once := PresenceRecord{}.Join(42, "deviceA")
	twice := once.Join(42, "deviceA")
	if !once.Equal(twice) {
		t.Fatalf("second join changed record: %+v -> %+v", once, twice)
	}
	if twice.Count != 1 {
		t.Fatalf("count = %d, want 1", twice.Count)
	}
}

func TestPresenceLeaveAbsentIsNoop(t *testing.T) {
	r := PresenceRecord{}.Join(1, "a")
	got := r.Leave(99, "zzz")
	if !got.Equal(r) {
		t.Fatalf("leave of absent member changed record: %+v -> %+v", r, got)
	}
	empty := PresenceRecord{}.Leave(5, "x")
	if empty.Count != 0 {
		t.Fatalf("count = %d, want 0", empty.Count)
	}
}

func TestPresenceJoinLeave(t *testing.T) {
	r := PresenceRecord{}.Join(2, "b").Join(1, "a").Join(3, "c")
	if r.Count != 3 {
		t.Fatalf("count = %d, want 3", r.Count)
	}
	r = r.Leave(2, "b")
	if r.Count != 2 || r.Has(2) {
		t.Fatalf("after leave: %+v", r)
	}
	if r.MemberIDs[0] != 1 || r.MemberIDs[1] != 3 {
		t.Fatalf("ids = %v, want [1 3]", r.MemberIDs)
	}
}

func TestPresenceNormalize(t *testing.T) {
	r := PresenceRecord{Count: 7, MemberIDs: []int{3, 3, 1}, MemberNames: []string{"b", "a", "b"}}.Normalize()
	if r.Count != 2 {
		t.Fatalf("count = %d, want 2", r.Count)
	}
	if len(r.MemberNames) != 2 {
		t.Fatalf("names = %v", r.MemberNames)
	}
}

func TestCandidateEncodeParse(t *testing.T) {
	c := IceCandidate{Mid: "0", MLineIndex: 1, Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host"}
	got, err := ParseIceCandidate(c.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != c {
		t.Fatalf("got %+v, want %+v", got, c)
	}
}

func TestParseIceCandidateMalformed(t *testing.T) {
	for _, in := range []string{"", "0|x|cand", "only|two"} {
		if _, err := ParseIceCandidate(in); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("ParseIceCandidate(%q) err = %v, want ErrMalformedMessage", in, err)
		}
	}
}

func TestSides(t *testing.T) {
	s := Session{Role: RoleOfferer}
	if s.LocalSide() != SideOffer || s.RemoteSide() != SideAnswer {
		t.Fatalf("offerer sides wrong")
	}
	if SideAnswer.Collection() != "answerCandidates" {
		t.Fatalf("collection = %s", SideAnswer.Collection())
	}
}

func TestNewParticipant(t *testing.T) {
	p, err := NewParticipant("", "tablet", 7)
	if err != nil {
		t.Fatalf("NewParticipant: %v", err)
	}
	if p.ID == "" || p.Name != "tablet" {
		t.Fatalf("participant = %+v", p)
	}
	long := make([]byte, MaxParticipantIDLen+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := NewParticipant(string(long), "", 0); !errors.Is(err, ErrParticipantIDTooLong) {
		t.Fatalf("err = %v, want ErrParticipantIDTooLong", err)
	}
}
