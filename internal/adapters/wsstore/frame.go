// Package wsstore carries core.DocumentStore over a websocket so remote
// participants can share the hub's store. Frames are JSON objects with a
// type tag; requests carry a seq echoed by the reply, listener traffic
// carries the client-chosen sub id.
package wsstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

const (
	typeAdd      = "add"
	typeSet      = "set"
	typeUpdate   = "update"
	typeGet      = "get"
	typeListen   = "listen"
	typeUnlisten = "unlisten"
	typePing     = "ping"

	typeResult   = "result"
	typeError    = "error"
	typeChange   = "change"
	typeSubError = "sub_error"
	typePong     = "pong"
)

const (
	codeNotFound    = "not_found"
	codeRateLimited = "rate_limited"
	codeBadRequest  = "bad_request"
	codeInternal    = "internal"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrRateLimited  = errors.New("rate limited")
	ErrClosed       = errors.New("connection closed")
	ErrRemote       = errors.New("remote store error")
)

type wireDoc struct {
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	CreateTime int64          `json:"createTime"`
	UpdateTime int64          `json:"updateTime"`
}

type frame struct {
	Type         string         `json:"type"`
	Seq          uint64         `json:"seq,omitempty"`
	Sub          uint64         `json:"sub,omitempty"`
	Collection   string         `json:"collection,omitempty"`
	ID           string         `json:"id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAfter int64          `json:"createdAfter,omitempty"`
	Kind         string         `json:"kind,omitempty"`
	Doc          *wireDoc       `json:"doc,omitempty"`
	Code         string         `json:"code,omitempty"`
	Error        string         `json:"error,omitempty"`
}

func encodeFrame(f frame) ([]byte, error) {
	return json.Marshal(f)
}

func decodeFrame(b []byte) (frame, error) {
	var f frame
	err := json.Unmarshal(b, &f)
	return f, err
}

func toWireDoc(d core.Document) *wireDoc {
	return &wireDoc{
		ID:         d.ID,
		Data:       d.Data,
		CreateTime: d.CreateTime.UnixNano(),
		UpdateTime: d.UpdateTime.UnixNano(),
	}
}

func (w *wireDoc) document() core.Document {
	if w == nil {
		return core.Document{}
	}
	return core.Document{
		ID:         w.ID,
		Data:       w.Data,
		CreateTime: time.Unix(0, w.CreateTime),
		UpdateTime: time.Unix(0, w.UpdateTime),
	}
}

func kindOf(s string) (core.ChangeKind, bool) {
	switch s {
	case "added":
		return core.ChangeAdded, true
	case "modified":
		return core.ChangeModified, true
	case "removed":
		return core.ChangeRemoved, true
	}
	return 0, false
}

func errorFrame(seq uint64, err error) frame {
	code := codeInternal
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = codeNotFound
	case errors.Is(err, ErrRateLimited):
		code = codeRateLimited
	case errors.Is(err, errBadRequest):
		code = codeBadRequest
	}
	return frame{Type: typeError, Seq: seq, Code: code, Error: err.Error()}
}

// err turns an error reply back into a sentinel the caller can match.
func (f frame) err() error {
	switch f.Code {
	case codeNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, f.Error)
	case codeRateLimited:
		return fmt.Errorf("%w: %s", ErrRateLimited, f.Error)
	}
	return fmt.Errorf("%w: %s: %s", ErrRemote, f.Code, f.Error)
}
