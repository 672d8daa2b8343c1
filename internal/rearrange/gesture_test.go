package rearrange

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingSwapper struct {
	mu    sync.Mutex
	calls [][2]uuid.UUID
	err   error
	block chan struct{}
}

func (s *recordingSwapper) Swap(ctx context.Context, source, target uuid.UUID) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]uuid.UUID{source, target})
	return s.err
}

func (s *recordingSwapper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func twoBoxes() (uuid.UUID, uuid.UUID, BoxHitTester) {
	a, b := uuid.New(), uuid.New()
	return a, b, BoxHitTester{
		{ID: a, X: 10, Y: 10, Width: 6, Height: 15},
		{ID: b, X: 50, Y: 10, Width: 6, Height: 15},
	}
}

func TestGestureTapUnderThreshold(t *testing.T) {
	g := NewGesture(5)
	id := uuid.New()

	require.NoError(t, g.Press(Mouse, id, Point{X: 10, Y: 10}))
	assert.Equal(t, Pressed, g.State())

	started, err := g.Move(Point{X: 12, Y: 12})
	require.NoError(t, err)
	assert.False(t, started)

	tap, err := g.Release(Point{X: 12, Y: 13})
	require.NoError(t, err)
	assert.True(t, tap)
	assert.Equal(t, Idle, g.State())
	assert.Equal(t, uuid.Nil, g.Source())
}

func TestGestureDragThenResolve(t *testing.T) {
	g := NewGesture(5)
	id := uuid.New()

	require.NoError(t, g.Press(Touch, id, Point{X: 10, Y: 10}))
	started, err := g.Move(Point{X: 20, Y: 10})
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, Dragging, g.State())
	assert.Equal(t, Point{X: 10}, g.Offset())

	tap, err := g.Release(Point{X: 25, Y: 10})
	require.NoError(t, err)
	assert.False(t, tap)
	assert.Equal(t, Resolving, g.State())

	assert.ErrorIs(t, g.Press(Mouse, id, Point{}), ErrBusy)
	_, err = g.Move(Point{})
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, g.Cancel())

	g.Finish()
	assert.Equal(t, Idle, g.State())
}

func TestGestureReleaseFarWithoutMoveIsDrag(t *testing.T) {
	g := NewGesture(5)
	require.NoError(t, g.Press(Mouse, uuid.New(), Point{}))
	tap, err := g.Release(Point{X: 30})
	require.NoError(t, err)
	assert.False(t, tap)
	assert.Equal(t, Resolving, g.State())
}

func TestGestureMisuse(t *testing.T) {
	g := NewGesture(0)
	assert.Equal(t, DefaultThreshold, g.Threshold())

	_, err := g.Move(Point{})
	assert.ErrorIs(t, err, ErrNotPressed)
	_, err = g.Release(Point{})
	assert.ErrorIs(t, err, ErrNotPressed)

	require.NoError(t, g.Press(Mouse, uuid.New(), Point{}))
	assert.ErrorIs(t, g.Press(Mouse, uuid.New(), Point{}), ErrPressed)
	assert.True(t, g.Cancel())
	assert.Equal(t, Idle, g.State())
}

func TestControllerTapOpensWithoutSwap(t *testing.T) {
	a, _, hit := twoBoxes()
	sw := &recordingSwapper{}
	c := NewController(5, hit, sw)
	ctx := context.Background()

	res, err := c.Handle(ctx, PointerEvent{Kind: Down, Device: Mouse, X: 12, Y: 12, ItemID: a})
	require.NoError(t, err)
	assert.Equal(t, ActionPress, res.Action)

	res, err = c.Handle(ctx, PointerEvent{Kind: Up, Device: Mouse, X: 13, Y: 12})
	require.NoError(t, err)
	assert.Equal(t, ActionOpen, res.Action)
	assert.Equal(t, a, res.Source)
	assert.Zero(t, sw.count())
	assert.Equal(t, Idle, c.State())
}

func TestResultJSONOmitsUnsetIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	raw, err := json.Marshal(Result{Action: ActionOpen, Source: a})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"open","source":"`+a.String()+`"}`, string(raw))

	raw, err = json.Marshal(Result{Action: ActionNone})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"none"}`, string(raw))

	raw, err = json.Marshal(Result{Action: ActionSwapped, Source: a, Target: b})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"target":"`+b.String()+`"`)
}

func TestControllerDragOntoItemSwaps(t *testing.T) {
	a, b, hit := twoBoxes()
	sw := &recordingSwapper{}
	c := NewController(5, hit, sw)
	ctx := context.Background()

	_, err := c.Handle(ctx, PointerEvent{Kind: Down, Device: Touch, X: 12, Y: 12})
	require.NoError(t, err)

	res, err := c.Handle(ctx, PointerEvent{Kind: Move, Device: Touch, X: 30, Y: 15})
	require.NoError(t, err)
	assert.Equal(t, ActionDrag, res.Action)
	require.NotNil(t, res.Position)
	assert.Equal(t, Point{X: 30, Y: 15}, *res.Position)

	res, err = c.Handle(ctx, PointerEvent{Kind: Up, Device: Touch, X: 52, Y: 15})
	require.NoError(t, err)
	assert.Equal(t, ActionSwapped, res.Action)
	assert.Equal(t, a, res.Source)
	assert.Equal(t, b, res.Target)
	assert.Equal(t, [][2]uuid.UUID{{a, b}}, sw.calls)
	assert.Equal(t, Idle, c.State())
}

func TestControllerDropOnSelfSnapsBack(t *testing.T) {
	a, _, hit := twoBoxes()
	sw := &recordingSwapper{}
	c := NewController(2, hit, sw)
	ctx := context.Background()

	_, err := c.Handle(ctx, PointerEvent{Kind: Down, X: 10, Y: 10, ItemID: a})
	require.NoError(t, err)
	_, err = c.Handle(ctx, PointerEvent{Kind: Move, X: 14, Y: 20})
	require.NoError(t, err)

	// The drop point is inside a's own box; a is hidden for the hit test.
	res, err := c.Handle(ctx, PointerEvent{Kind: Up, X: 14, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, ActionSnapBack, res.Action)
	assert.Zero(t, sw.count())
}

func TestControllerSwapFailureReturnsToIdle(t *testing.T) {
	a, _, hit := twoBoxes()
	boom := errors.New("store down")
	sw := &recordingSwapper{err: boom}
	c := NewController(5, hit, sw)
	ctx := context.Background()

	_, err := c.Handle(ctx, PointerEvent{Kind: Down, X: 12, Y: 12, ItemID: a})
	require.NoError(t, err)
	res, err := c.Handle(ctx, PointerEvent{Kind: Up, X: 52, Y: 12})
	require.NoError(t, err)
	assert.Equal(t, ActionSwapFailed, res.Action)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, Idle, c.State())
}

func TestControllerBusyWhileResolving(t *testing.T) {
	a, _, hit := twoBoxes()
	sw := &recordingSwapper{block: make(chan struct{})}
	c := NewController(5, hit, sw)
	ctx := context.Background()

	_, err := c.Handle(ctx, PointerEvent{Kind: Down, X: 12, Y: 12, ItemID: a})
	require.NoError(t, err)

	done := make(chan Result)
	go func() {
		res, _ := c.Handle(ctx, PointerEvent{Kind: Up, X: 52, Y: 12})
		done <- res
	}()

	require.Eventually(t, func() bool { return c.State() == Resolving }, time.Second, time.Millisecond)
	_, err = c.Handle(ctx, PointerEvent{Kind: Down, X: 52, Y: 12})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Handle(ctx, PointerEvent{Kind: Cancel})
	assert.ErrorIs(t, err, ErrBusy)

	close(sw.block)
	res := <-done
	assert.Equal(t, ActionSwapped, res.Action)
	assert.Equal(t, Idle, c.State())
}

func TestControllerPressOnEmptySpaceIsIgnored(t *testing.T) {
	_, _, hit := twoBoxes()
	c := NewController(5, hit, &recordingSwapper{})

	res, err := c.Handle(context.Background(), PointerEvent{Kind: Down, X: 90, Y: 90})
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action)
	assert.Equal(t, Idle, c.State())
}

// Taps, and drags released over empty space, never reach the swapper.
func TestControllerNonSwapGesturesNeverMutate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a, _, hit := twoBoxes()
		sw := &recordingSwapper{}
		threshold := rapid.Float64Range(1, 10).Draw(t, "threshold")
		c := NewController(threshold, hit, sw)
		ctx := context.Background()
		device := rapid.SampledFrom([]Device{Mouse, Touch}).Draw(t, "device")

		start := Point{X: 12, Y: 12}
		_, err := c.Handle(ctx, PointerEvent{Kind: Down, Device: device, X: start.X, Y: start.Y, ItemID: a})
		if err != nil {
			t.Fatalf("down: %v", err)
		}

		var end Point
		if rapid.Bool().Draw(t, "tap") {
			// stay within the threshold
			dx := rapid.Float64Range(-threshold/2, threshold/2).Draw(t, "dx")
			dy := rapid.Float64Range(-threshold/2, threshold/2).Draw(t, "dy")
			end = Point{X: start.X + dx, Y: start.Y + dy}
		} else {
			// empty region right of the second box
			end = Point{X: rapid.Float64Range(70, 100).Draw(t, "x"), Y: rapid.Float64Range(40, 100).Draw(t, "y")}
		}

		moves := rapid.IntRange(0, 3).Draw(t, "moves")
		for i := 0; i < moves; i++ {
			if _, err := c.Handle(ctx, PointerEvent{Kind: Move, Device: device, X: end.X, Y: end.Y}); err != nil {
				t.Fatalf("move: %v", err)
			}
		}
		res, err := c.Handle(ctx, PointerEvent{Kind: Up, Device: device, X: end.X, Y: end.Y})
		if err != nil {
			t.Fatalf("up: %v", err)
		}
		if res.Action != ActionOpen && res.Action != ActionSnapBack {
			t.Fatalf("unexpected action %s", res.Action)
		}
		if sw.count() != 0 {
			t.Fatalf("swapper called %d times", sw.count())
		}
		if c.State() != Idle {
			t.Fatalf("state %s after release", c.State())
		}
	})
}
