package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CandidateSeparator joins the fields of a single-string candidate.
// It never appears in a mid or in candidate attribute syntax.
const CandidateSeparator = "|"

type Side int

const (
	SideOffer Side = iota
	SideAnswer
)

// SideOf returns the collection a role writes its own candidates to.
func SideOf(r Role) Side {
	if r == RoleOfferer {
		return SideOffer
	}
	return SideAnswer
}

func (s Side) Opposite() Side {
	if s == SideOffer {
		return SideAnswer
	}
	return SideOffer
}

// Collection is the subcollection name under a session document.
func (s Side) Collection() string {
	if s == SideOffer {
		return "offerCandidates"
	}
	return "answerCandidates"
}

func (s Side) String() string {
	if s == SideOffer {
		return "offer"
	}
	return "answer"
}

type IceCandidate struct {
	Mid        string
	MLineIndex int
	Candidate  string
}

func (c IceCandidate) Encode() string {
	return c.Mid + CandidateSeparator + strconv.Itoa(c.MLineIndex) + CandidateSeparator + c.Candidate
}

func (c IceCandidate) String() string { return c.Encode() }

// ParseIceCandidate is the inverse of Encode.
func ParseIceCandidate(s string) (IceCandidate, error) {
	parts := strings.SplitN(s, CandidateSeparator, 3)
	if len(parts) != 3 {
		return IceCandidate{}, fmt.Errorf("%w: candidate needs 3 fields, got %d", ErrMalformedMessage, len(parts))
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 {
		return IceCandidate{}, fmt.Errorf("%w: bad mline index %q", ErrMalformedMessage, parts[1])
	}
	return IceCandidate{Mid: parts[0], MLineIndex: idx, Candidate: parts[2]}, nil
}
