// Package domain contains entities without transport logic, just meta-data
// and the pure merge rules they obey.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxParticipantIDLen   = 36
	MaxParticipantNameLen = 64
)

var (
	ErrParticipantIDEmpty     = errors.New("participant id empty")
	ErrParticipantIDTooLong   = errors.New("participant id too long")
	ErrParticipantNameTooLong = errors.New("participant name too long")
)

type ParticipantID string

// Participant is the local device or browser taking part in a session.
// MemberID is the numeric identity used by the presence record.
type Participant struct {
	ID       ParticipantID `json:"id"`
	Name     string        `json:"name"`
	MemberID int           `json:"member_id"`
}

// NewParticipant validates id and name. An empty id gets a fresh uuid.
func NewParticipant(id, name string, memberID int) (*Participant, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > MaxParticipantIDLen {
		return nil, ErrParticipantIDTooLong
	}
	if len(name) > MaxParticipantNameLen {
		return nil, ErrParticipantNameTooLong
	}
	if name == "" {
		name = id
	}
	return &Participant{ID: ParticipantID(id), Name: name, MemberID: memberID}, nil
}

func (p *Participant) Validate() error {
	if p.ID == "" {
		return ErrParticipantIDEmpty
	}
	if len(p.ID) > MaxParticipantIDLen {
		return ErrParticipantIDTooLong
	}
	if len(p.Name) > MaxParticipantNameLen {
		return ErrParticipantNameTooLong
	}
	return nil
}
