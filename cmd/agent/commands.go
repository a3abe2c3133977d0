package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/domain"
)

var (
	errQuit       = errors.New("quit")
	errBadCommand = errors.New("bad command")
)

// inputCmd is one parsed stdin line: either a navigation action or a gesture.
type inputCmd struct {
	nav     domain.NavigationAction
	gesture *domain.GestureEvent
}

var navAliases = map[string]domain.NavigationAction{
	"home":    domain.NavHome,
	"back":    domain.NavGoBack,
	"recents": domain.NavGoToRecent,
	"unlock":  domain.NavUnlockDevice,
}

var swipeAliases = map[string]domain.GestureKind{
	"up":    domain.GestureSwipeUp,
	"down":  domain.GestureSwipeDown,
	"left":  domain.GestureSwipeLeft,
	"right": domain.GestureSwipeRight,
}

// parseCommand understands:
//
//	home | back | recents | unlock
//	tap X Y
//	swipe up|down|left|right X1 Y1 X2 Y2
//	gesture KIND X Y [X2 Y2]
//	quit
func parseCommand(line string) (inputCmd, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return inputCmd{}, fmt.Errorf("%w: empty", errBadCommand)
	}
	verb := strings.ToLower(f[0])
	if nav, ok := navAliases[verb]; ok && len(f) == 1 {
		return inputCmd{nav: nav}, nil
	}
	switch verb {
	case "quit", "exit":
		return inputCmd{}, errQuit
	case "tap":
		return gestureCommand(domain.GestureTap, f[1:])
	case "swipe":
		if len(f) < 2 {
			return inputCmd{}, fmt.Errorf("%w: swipe needs a direction", errBadCommand)
		}
		kind, ok := swipeAliases[strings.ToLower(f[1])]
		if !ok {
			return inputCmd{}, fmt.Errorf("%w: swipe direction %q", errBadCommand, f[1])
		}
		return gestureCommand(kind, f[2:])
	case "gesture":
		if len(f) < 2 {
			return inputCmd{}, fmt.Errorf("%w: gesture needs a kind", errBadCommand)
		}
		return gestureCommand(domain.GestureKind(f[1]), f[2:])
	}
	return inputCmd{}, fmt.Errorf("%w: %q", errBadCommand, f[0])
}

func gestureCommand(kind domain.GestureKind, args []string) (inputCmd, error) {
	if !kind.Valid() {
		return inputCmd{}, fmt.Errorf("%w: gesture %q", errBadCommand, kind)
	}
	if len(args) != 2 && len(args) != 4 {
		return inputCmd{}, fmt.Errorf("%w: %s wants 2 or 4 coordinates", errBadCommand, kind)
	}
	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return inputCmd{}, fmt.Errorf("%w: coordinate %q", errBadCommand, a)
		}
		vals[i] = v
	}
	g := &domain.GestureEvent{Kind: kind, Start: domain.Point{X: vals[0], Y: vals[1]}}
	if len(vals) == 4 {
		g.End = &domain.Point{X: vals[2], Y: vals[3]}
	}
	return inputCmd{gesture: g}, nil
}

// sender is the part of the orchestrator the command loop drives.
type sender interface {
	SendGesture(kind domain.GestureKind, start domain.Point, end *domain.Point) error
	SendNavigationAction(action domain.NavigationAction) error
}

func (c inputCmd) send(s sender) error {
	if c.gesture != nil {
		return s.SendGesture(c.gesture.Kind, c.gesture.Start, c.gesture.End)
	}
	return s.SendNavigationAction(c.nav)
}

// readCommands sends one command per input line until quit, EOF, ctx or a
// closed session.
func readCommands(ctx context.Context, s sender, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				log.Warn().Err(err).Str("module", "agent").Msg("ignored")
				continue
			}
			if err := cmd.send(s); err != nil {
				if errors.Is(err, domain.ErrSessionClosed) {
					return err
				}
				log.Warn().Err(err).Str("module", "agent").Msg("send failed")
			}
		}
	}
}
