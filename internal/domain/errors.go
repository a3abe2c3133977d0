package domain

import "errors"

// Error kinds. Concrete failures wrap one of these so callers can match
// with errors.Is.
var (
	ErrTransport        = errors.New("transport error")
	ErrNegotiation      = errors.New("negotiation error")
	ErrMalformedMessage = errors.New("malformed message")
	ErrPresenceMerge    = errors.New("presence merge error")

	ErrNotFound       = errors.New("not found")
	ErrNotInteractive = errors.New("data channel not open")
	ErrSessionClosed  = errors.New("session closed")
)
