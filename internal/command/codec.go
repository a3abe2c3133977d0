// Package command implements the remote-control wire format carried over
// the data channel.
//
// A gesture is one line of five space separated fields:
//
//	startX startY endX endY kind
//
// endX and endY are empty strings for single-point gestures. A navigation
// action is a single keyword field.
package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/domain"
)

const (
	gestureFields    = 5
	navigationFields = 1
	fieldSep         = " "
)

// Codec decodes with the receiver's declared scale. Encoding never scales.
type Codec struct {
	scale Scale
}

func NewCodec(scale Scale) *Codec {
	if scale.X == 0 || scale.Y == 0 {
		scale = Identity()
	}
	return &Codec{scale: scale}
}

func (c *Codec) Scale() Scale { return c.scale }

func Encode(ev domain.ControlEvent) (string, error) {
	switch e := ev.(type) {
	case domain.GestureEvent:
		return EncodeGesture(e)
	case *domain.GestureEvent:
		return EncodeGesture(*e)
	case domain.NavigationEvent:
		return EncodeNavigation(e.Action)
	case *domain.NavigationEvent:
		return EncodeNavigation(e.Action)
	}
	return "", fmt.Errorf("%w: unknown event %T", domain.ErrMalformedMessage, ev)
}

func EncodeGesture(g domain.GestureEvent) (string, error) {
	if !g.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown gesture %q", domain.ErrMalformedMessage, g.Kind)
	}
	endX, endY := "", ""
	if g.End != nil {
		endX, endY = formatCoord(g.End.X), formatCoord(g.End.Y)
	}
	return strings.Join([]string{
		formatCoord(g.Start.X), formatCoord(g.Start.Y), endX, endY, string(g.Kind),
	}, fieldSep), nil
}

func EncodeNavigation(a domain.NavigationAction) (string, error) {
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown navigation action %q", domain.ErrMalformedMessage, a)
	}
	return string(a), nil
}

// Decode parses one wire message. Any field count other than 5 or 1, or
// an unknown keyword, is ErrMalformedMessage.
func (c *Codec) Decode(msg string) (domain.ControlEvent, error) {
	msg = strings.TrimRight(msg, "\r\n")
	fields := strings.Split(msg, fieldSep)
	switch len(fields) {
	case gestureFields:
		return c.decodeGesture(fields)
	case navigationFields:
		a := domain.NavigationAction(fields[0])
		if !a.Valid() {
			return nil, fmt.Errorf("%w: unknown navigation action %q", domain.ErrMalformedMessage, fields[0])
		}
		return domain.NavigationEvent{Action: a}, nil
	}
	return nil, fmt.Errorf("%w: %d fields", domain.ErrMalformedMessage, len(fields))
}

func (c *Codec) decodeGesture(f []string) (domain.ControlEvent, error) {
	kind := domain.GestureKind(f[4])
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown gesture %q", domain.ErrMalformedMessage, f[4])
	}
	start, err := parsePoint(f[0], f[1])
	if err != nil {
		return nil, err
	}
	ev := domain.GestureEvent{Kind: kind, Start: c.scale.Apply(start)}
	switch {
	case f[2] == "" && f[3] == "":
	case f[2] == "" || f[3] == "":
		return nil, fmt.Errorf("%w: half an end point", domain.ErrMalformedMessage)
	default:
		end, err := parsePoint(f[2], f[3])
		if err != nil {
			return nil, err
		}
		end = c.scale.Apply(end)
		ev.End = &end
	}
	return ev, nil
}

// HandleMessage decodes data and hands the event to fn. Malformed input is
// dropped with a warning.
func (c *Codec) HandleMessage(data []byte, fn func(domain.ControlEvent)) bool {
	ev, err := c.Decode(string(data))
	if err != nil {
		log.Warn().Err(err).Str("module", "command").Str("raw", string(data)).Msg("dropping control message")
		return false
	}
	if fn != nil {
		fn(ev)
	}
	return true
}

func parsePoint(xs, ys string) (domain.Point, error) {
	x, err := parseCoord(xs)
	if err != nil {
		return domain.Point{}, err
	}
	y, err := parseCoord(ys)
	if err != nil {
		return domain.Point{}, err
	}
	return domain.Point{X: x, Y: y}, nil
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: bad coordinate %q", domain.ErrMalformedMessage, s)
	}
	return v, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
