package rearrange

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// HitTester finds the item whose representation contains p. The item named
// by exclude is treated as hidden.
type HitTester interface {
	HitTest(p Point, exclude uuid.UUID) (uuid.UUID, bool)
}

// Swapper exchanges the positions of two items.
type Swapper interface {
	Swap(ctx context.Context, source, target uuid.UUID) error
}

type EventKind string

const (
	Down   EventKind = "down"
	Move   EventKind = "move"
	Up     EventKind = "up"
	Cancel EventKind = "cancel"
)

// PointerEvent is one press, move, release or cancel. ItemID is the item
// under the press; when it is empty the press point is hit-tested.
type PointerEvent struct {
	Kind   EventKind `json:"kind"`
	Device Device    `json:"device"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	ItemID uuid.UUID `json:"item_id,omitempty"`
}

func (e PointerEvent) Point() Point {
	return Point{X: e.X, Y: e.Y}
}

type Action string

const (
	ActionNone       Action = "none"
	ActionPress      Action = "press"
	ActionDrag       Action = "drag"
	ActionOpen       Action = "open"
	ActionSnapBack   Action = "snap_back"
	ActionSwapped    Action = "swapped"
	ActionSwapFailed Action = "swap_failed"
)

// Result is what the view should do after an event.
type Result struct {
	Action Action    `json:"action"`
	State  State     `json:"-"`
	Source uuid.UUID `json:"source,omitzero"`
	Target uuid.UUID `json:"target,omitzero"`
	// Position is where the dragged representation is drawn: the pointer,
	// not the slot it came from.
	Position *Point `json:"position,omitempty"`
	Err      error  `json:"-"`
}

// Controller feeds pointer events through a Gesture and performs the swap a
// completed drag asks for.
type Controller struct {
	mu      sync.Mutex
	gesture *Gesture
	hit     HitTester
	swapper Swapper
}

func NewController(threshold float64, hit HitTester, swapper Swapper) *Controller {
	return &Controller{
		gesture: NewGesture(threshold),
		hit:     hit,
		swapper: swapper,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gesture.State()
}

// Handle applies one pointer event. Protocol misuse (a move with no press,
// any event while a swap is pending) is returned as an error; a failed swap
// is reported in the Result.
func (c *Controller) Handle(ctx context.Context, ev PointerEvent) (Result, error) {
	switch ev.Kind {
	case Down:
		return c.down(ev)
	case Move:
		return c.move(ev)
	case Up:
		return c.up(ctx, ev)
	case Cancel:
		return c.cancel()
	default:
		return Result{}, fmt.Errorf("unknown pointer event %q", ev.Kind)
	}
}

func (c *Controller) down(ev PointerEvent) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := ev.ItemID
	if id == uuid.Nil {
		found, ok := c.hit.HitTest(ev.Point(), uuid.Nil)
		if !ok {
			return Result{Action: ActionNone, State: c.gesture.State()}, nil
		}
		id = found
	}
	if err := c.gesture.Press(ev.Device, id, ev.Point()); err != nil {
		return Result{}, err
	}
	return Result{Action: ActionPress, State: Pressed, Source: id}, nil
}

func (c *Controller) move(ev PointerEvent) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.gesture.Move(ev.Point()); err != nil {
		return Result{}, err
	}
	res := Result{Action: ActionNone, State: c.gesture.State(), Source: c.gesture.Source()}
	if c.gesture.State() == Dragging {
		p := ev.Point()
		res.Action = ActionDrag
		res.Position = &p
	}
	return res, nil
}

func (c *Controller) up(ctx context.Context, ev PointerEvent) (Result, error) {
	c.mu.Lock()
	source := c.gesture.Source()
	tap, err := c.gesture.Release(ev.Point())
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	if tap {
		c.mu.Unlock()
		return Result{Action: ActionOpen, State: Idle, Source: source}, nil
	}

	// Resolving: the lock is dropped so other events see ErrBusy instead of
	// queueing behind the swap.
	target, hit := c.hit.HitTest(ev.Point(), source)
	c.mu.Unlock()

	res := Result{Source: source, State: Idle}
	switch {
	case !hit || target == source:
		res.Action = ActionSnapBack
	default:
		res.Target = target
		if err := c.swapper.Swap(ctx, source, target); err != nil {
			res.Action = ActionSwapFailed
			res.Err = err
		} else {
			res.Action = ActionSwapped
		}
	}

	c.mu.Lock()
	c.gesture.Finish()
	c.mu.Unlock()
	return res, nil
}

func (c *Controller) cancel() (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gesture.State() == Resolving {
		return Result{}, ErrBusy
	}
	source := c.gesture.Source()
	if c.gesture.Cancel() {
		return Result{Action: ActionSnapBack, State: Idle, Source: source}, nil
	}
	return Result{Action: ActionNone, State: Idle}, nil
}
