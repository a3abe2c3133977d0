package domain

import (
	"fmt"
	"time"
)

type SessionID string

type Role int

const (
	RoleOfferer Role = iota
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// RoleFor maps the connect flag to a role.
func RoleFor(asOfferer bool) Role {
	if asOfferer {
		return RoleOfferer
	}
	return RoleAnswerer
}

type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type SDPKind int

const (
	SDPOffer SDPKind = iota
	SDPAnswer
)

func (k SDPKind) String() string {
	if k == SDPOffer {
		return "offer"
	}
	return "answer"
}

type SessionDescription struct {
	SDP  string
	Kind SDPKind
}

// Session is the call as seen by the local participant.
// ID stays empty for an offerer until its description is published.
type Session struct {
	ID          SessionID
	Role        Role
	State       State
	RemoteID    string
	CreatedAt   time.Time
	Interactive bool
}

// LocalSide is the candidate collection this session writes to.
func (s Session) LocalSide() Side { return SideOf(s.Role) }

// RemoteSide is the candidate collection this session watches.
func (s Session) RemoteSide() Side { return SideOf(s.Role).Opposite() }
