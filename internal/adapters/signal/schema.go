package signal

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/dkeye/Cast/internal/domain"
)

// Document-store schema. Raw documents are decoded into these records and
// validated before anything else sees them.
const (
	sessionsCollection = "sessions"
	presenceCollection = "presence"

	fieldSDP       = "sdp"
	fieldIsOffer   = "isOffer"
	fieldIsActive  = "isActive"
	fieldViewerID  = "viewerId"
	fieldTimestamp = "timestamp"

	fieldMid        = "sdpMid"
	fieldMLineIndex = "sdpMLineIndex"
	fieldCandidate  = "candidate"

	fieldCount       = "count"
	fieldMemberNames = "memberNames"
	fieldMemberIDs   = "memberIds"
)

type sessionDoc struct {
	SDP       string `mapstructure:"sdp" validate:"required"`
	IsOffer   bool   `mapstructure:"isOffer"`
	IsActive  bool   `mapstructure:"isActive"`
	ViewerID  string `mapstructure:"viewerId" validate:"max=64"`
	Timestamp int64  `mapstructure:"timestamp" validate:"gt=0"`
}

type candidateDoc struct {
	SDPMid        string `mapstructure:"sdpMid"`
	SDPMLineIndex int    `mapstructure:"sdpMLineIndex" validate:"gte=0"`
	Candidate     string `mapstructure:"candidate" validate:"required"`
}

type presenceDoc struct {
	Count       int      `mapstructure:"count" validate:"gte=0"`
	MemberNames []string `mapstructure:"memberNames"`
	MemberIDs   []int    `mapstructure:"memberIds"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func decode[T any](data map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(data); err != nil {
		return out, err
	}
	if err := validate.Struct(out); err != nil {
		return out, err
	}
	return out, nil
}

func decodeSession(id string, data map[string]any) (sessionDoc, error) {
	doc, err := decode[sessionDoc](data)
	if err != nil {
		return doc, fmt.Errorf("%w: session %s: %w", domain.ErrTransport, id, err)
	}
	return doc, nil
}

// decodeCandidate also accepts the compact mid|mLineIndex|candidate form in
// the candidate field when sdpMid is absent.
func decodeCandidate(id string, data map[string]any) (domain.IceCandidate, error) {
	doc, err := decode[candidateDoc](data)
	if err != nil {
		return domain.IceCandidate{}, fmt.Errorf("%w: candidate %s: %w", domain.ErrTransport, id, err)
	}
	if _, hasMid := data[fieldMid]; !hasMid && strings.Contains(doc.Candidate, domain.CandidateSeparator) {
		c, err := domain.ParseIceCandidate(doc.Candidate)
		if err != nil {
			return domain.IceCandidate{}, fmt.Errorf("%w: candidate %s: %w", domain.ErrTransport, id, err)
		}
		return c, nil
	}
	return domain.IceCandidate{Mid: doc.SDPMid, MLineIndex: doc.SDPMLineIndex, Candidate: doc.Candidate}, nil
}

func decodePresence(data map[string]any) (domain.PresenceRecord, error) {
	doc, err := decode[presenceDoc](data)
	if err != nil {
		return domain.PresenceRecord{}, err
	}
	return domain.PresenceRecord{Count: doc.Count, MemberNames: doc.MemberNames, MemberIDs: doc.MemberIDs}.Normalize(), nil
}

func (d sessionDoc) toMap() map[string]any {
	m := map[string]any{
		fieldSDP:       d.SDP,
		fieldIsOffer:   d.IsOffer,
		fieldIsActive:  d.IsActive,
		fieldTimestamp: d.Timestamp,
	}
	if d.ViewerID != "" {
		m[fieldViewerID] = d.ViewerID
	}
	return m
}

func candidateToMap(c domain.IceCandidate) map[string]any {
	return map[string]any{
		fieldMid:        c.Mid,
		fieldMLineIndex: c.MLineIndex,
		fieldCandidate:  c.Candidate,
	}
}

func presenceToMap(r domain.PresenceRecord) map[string]any {
	return map[string]any{
		fieldCount:       r.Count,
		fieldMemberNames: r.MemberNames,
		fieldMemberIDs:   r.MemberIDs,
	}
}

func candidatesPath(id domain.SessionID, side domain.Side) string {
	return sessionsCollection + "/" + string(id) + "/" + side.Collection()
}
