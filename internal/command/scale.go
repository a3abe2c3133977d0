package command

import "github.com/dkeye/Cast/internal/domain"

// Size is a screen dimension in pixels.
type Size struct {
	Width, Height float64
}

// Scale is the factor a receiver applies to inbound points, per axis.
type Scale struct {
	X, Y float64
}

// Identity leaves points untouched.
func Identity() Scale { return Scale{X: 1, Y: 1} }

// InverseScale computes remote/local per axis. A zero dimension on either
// side yields 1 for that axis.
func InverseScale(remote, local Size) Scale {
	s := Identity()
	if remote.Width > 0 && local.Width > 0 {
		s.X = remote.Width / local.Width
	}
	if remote.Height > 0 && local.Height > 0 {
		s.Y = remote.Height / local.Height
	}
	return s
}

func (s Scale) Apply(p domain.Point) domain.Point {
	return domain.Point{X: p.X * s.X, Y: p.Y * s.Y}
}
