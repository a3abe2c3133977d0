package domain

type GestureKind string

const (
	GestureTap        GestureKind = "Tap"
	GestureDoubleTap  GestureKind = "DoubleTap"
	GestureLongPress  GestureKind = "LongPress"
	GesturePress      GestureKind = "Press"
	GestureDragStart  GestureKind = "DragStart"
	GestureDragEnd    GestureKind = "DragEnd"
	GestureDragCancel GestureKind = "DragCancel"
	GestureZoom       GestureKind = "Zoom"
	GestureRotate     GestureKind = "Rotate"
	GesturePinch      GestureKind = "Pinch"
	GestureSwipeUp    GestureKind = "SwipeUp"
	GestureSwipeDown  GestureKind = "SwipeDown"
	GestureSwipeLeft  GestureKind = "SwipeLeft"
	GestureSwipeRight GestureKind = "SwipeRight"
)

var gestureKinds = map[GestureKind]struct{}{
	GestureTap: {}, GestureDoubleTap: {}, GestureLongPress: {}, GesturePress: {},
	GestureDragStart: {}, GestureDragEnd: {}, GestureDragCancel: {},
	GestureZoom: {}, GestureRotate: {}, GesturePinch: {},
	GestureSwipeUp: {}, GestureSwipeDown: {}, GestureSwipeLeft: {}, GestureSwipeRight: {},
}

func (k GestureKind) Valid() bool {
	_, ok := gestureKinds[k]
	return ok
}

type NavigationAction string

const (
	NavHome         NavigationAction = "Home"
	NavGoBack       NavigationAction = "GoBack"
	NavGoToRecent   NavigationAction = "GoToRecent"
	NavUnlockDevice NavigationAction = "UnlockDevice"
)

func (a NavigationAction) Valid() bool {
	switch a {
	case NavHome, NavGoBack, NavGoToRecent, NavUnlockDevice:
		return true
	}
	return false
}

type Point struct {
	X, Y float64
}

// ControlEvent is either a GestureEvent or a NavigationEvent.
type ControlEvent interface {
	controlEvent()
}

// GestureEvent has an End point only for two-point gestures (swipes, drags).
type GestureEvent struct {
	Kind  GestureKind
	Start Point
	End   *Point
}

type NavigationEvent struct {
	Action NavigationAction
}

func (GestureEvent) controlEvent()    {}
func (NavigationEvent) controlEvent() {}
