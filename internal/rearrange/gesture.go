// Package rearrange turns pointer input into taps and drag-to-swap requests.
//
// Mouse and touch input share one state machine:
//
//	Idle -> Pressed -> (Tap | Dragging) -> Resolving -> Idle
//
// A press becomes a drag once the pointer has moved further than the
// threshold from where it went down. Releasing without crossing the threshold
// is a tap. Releasing a drag hit-tests the point under the pointer, ignoring
// the dragged item, and asks for a swap when another item is there.
package rearrange

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// DefaultThreshold is the tap/drag movement threshold in board units.
const DefaultThreshold = 5.0

var (
	ErrBusy       = errors.New("swap in progress")
	ErrNotPressed = errors.New("no pointer is down")
	ErrPressed    = errors.New("pointer already down")
)

type State int

const (
	Idle State = iota
	Pressed
	Dragging
	Resolving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Dragging:
		return "dragging"
	case Resolving:
		return "resolving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Device records where input came from. It never changes behaviour.
type Device string

const (
	Mouse Device = "mouse"
	Touch Device = "touch"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Gesture is the pure state machine. It is not safe for concurrent use;
// Controller serialises access to it.
type Gesture struct {
	threshold float64
	state     State
	device    Device
	source    uuid.UUID
	origin    Point
	current   Point
}

func NewGesture(threshold float64) *Gesture {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gesture{threshold: threshold}
}

func (g *Gesture) State() State       { return g.state }
func (g *Gesture) Source() uuid.UUID  { return g.source }
func (g *Gesture) Device() Device     { return g.device }
func (g *Gesture) Threshold() float64 { return g.threshold }

// Offset is the pointer displacement since the press.
func (g *Gesture) Offset() Point {
	return g.current.Sub(g.origin)
}

// Press starts a gesture on source at p.
func (g *Gesture) Press(device Device, source uuid.UUID, p Point) error {
	switch g.state {
	case Resolving:
		return ErrBusy
	case Pressed, Dragging:
		return ErrPressed
	}
	g.state = Pressed
	g.device = device
	g.source = source
	g.origin = p
	g.current = p
	return nil
}

// Move tracks the pointer. It reports true when this move turned the press
// into a drag.
func (g *Gesture) Move(p Point) (bool, error) {
	switch g.state {
	case Idle:
		return false, ErrNotPressed
	case Resolving:
		return false, ErrBusy
	}
	g.current = p
	if g.state == Pressed && p.Dist(g.origin) > g.threshold {
		g.state = Dragging
		return true, nil
	}
	return false, nil
}

// Release ends the pointer contact. A press that never crossed the
// threshold is a tap and returns the gesture to Idle. A drag moves to
// Resolving and must be closed with Finish.
func (g *Gesture) Release(p Point) (tap bool, err error) {
	switch g.state {
	case Idle:
		return false, ErrNotPressed
	case Resolving:
		return false, ErrBusy
	}
	g.current = p
	if g.state == Pressed && p.Dist(g.origin) > g.threshold {
		g.state = Dragging
	}
	if g.state == Pressed {
		g.reset()
		return true, nil
	}
	g.state = Resolving
	return false, nil
}

// Finish closes a resolving gesture.
func (g *Gesture) Finish() {
	if g.state == Resolving {
		g.reset()
	}
}

// Cancel abandons a press or drag. Resolving gestures are left alone; the
// pending swap owns them.
func (g *Gesture) Cancel() bool {
	if g.state == Pressed || g.state == Dragging {
		g.reset()
		return true
	}
	return false
}

func (g *Gesture) reset() {
	g.state = Idle
	g.source = uuid.Nil
	g.device = ""
	g.origin = Point{}
	g.current = Point{}
}
