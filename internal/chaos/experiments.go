// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"shelfboard/internal/layout"
	"shelfboard/internal/rearrange"
	"shelfboard/internal/shelf"
)

// Harness is a seeded board whose store can be made to misbehave.
type Harness struct {
	Store  *FaultyStore
	Board  *shelf.Board
	Layout *layout.Layout
	Seeded []uuid.UUID
}

// NewHarness wraps inner in a FaultyStore, builds a board for ownerID over it
// and shelves seed items.
func NewHarness(ctx context.Context, inner shelf.Store, ownerID string, l *layout.Layout, opts shelf.Options, seed int) (*Harness, error) {
	store := NewFaultyStore(inner)
	board := shelf.NewBoard(ownerID, store, l, opts)
	h := &Harness{Store: store, Board: board, Layout: l}

	for i := 0; i < seed; i++ {
		it, err := board.AddItem(ctx, shelf.ItemFields{
			Title:  fmt.Sprintf("Chaos Volume %d", i+1),
			Author: "Harness",
		})
		if err != nil {
			return nil, fmt.Errorf("seed item %d: %w", i+1, err)
		}
		h.Seeded = append(h.Seeded, it.ID)
	}
	return h, nil
}

// RegisterExperiments registers the store fault experiments against h.
func (e *Engine) RegisterExperiments(h *Harness) {
	e.RegisterExperiment(h.SwapWriteFailureExperiment())
	e.RegisterExperiment(h.CreateFailureExperiment())
	e.RegisterExperiment(h.OverlappingSyncExperiment())
}

func (h *Harness) occupancyMetric() Metric {
	return Metric{
		Name: "occupancy_consistent",
		Query: func(ctx context.Context) (float64, error) {
			if err := h.Board.Verify(ctx); err != nil {
				return 0, nil
			}
			return 1, nil
		},
		Threshold: Threshold{Op: OpEq, Value: 1},
	}
}

func (h *Harness) itemCountMetric() Metric {
	return Metric{
		Name: "items_on_board",
		Query: func(ctx context.Context) (float64, error) {
			return float64(h.Board.Stats().TotalItems), nil
		},
		Threshold: Threshold{Op: OpEq, Value: float64(len(h.Seeded))},
	}
}

func (h *Harness) positions() map[uuid.UUID]shelf.Position {
	out := make(map[uuid.UUID]shelf.Position)
	for _, id := range h.Seeded {
		if it, ok := h.Board.Item(id); ok {
			out[id] = it.Position()
		}
	}
	return out
}

// center returns the middle of an item's spine on the active page.
func (h *Harness) center(id uuid.UUID) (rearrange.Point, error) {
	it, ok := h.Board.Item(id)
	if !ok {
		return rearrange.Point{}, fmt.Errorf("item %s not on board", id)
	}
	slot, ok := h.Layout.Slot(it.SlotID)
	if !ok {
		return rearrange.Point{}, fmt.Errorf("slot %d not in layout", it.SlotID)
	}
	spine := h.Layout.Spine()
	return rearrange.Point{X: slot.X + spine.Width/2, Y: slot.Y + spine.Height/2}, nil
}

// SwapWriteFailureExperiment fails every swap write, both through Swap and
// through a completed drag gesture, and expects no item to move.
func (h *Harness) SwapWriteFailureExperiment() Experiment {
	var (
		mu     sync.Mutex
		before map[uuid.UUID]shelf.Position
	)
	unchanged := Metric{
		Name: "positions_unchanged",
		Query: func(ctx context.Context) (float64, error) {
			mu.Lock()
			defer mu.Unlock()
			if before == nil {
				return 1, nil
			}
			now := h.positions()
			for id, pos := range before {
				if now[id] != pos {
					return 0, nil
				}
			}
			return 1, nil
		},
		Threshold: Threshold{Op: OpEq, Value: 1},
	}

	return Experiment{
		Name:        "swap-write-failure",
		Hypothesis:  "A failed swap write leaves both items in their original slots and occupancy consistent",
		SteadyState: []Metric{h.occupancyMetric(), h.itemCountMetric(), unchanged},
		Method: []Action{
			{
				Type:   "fail-writes",
				Target: "store.swap",
				Execute: func(ctx context.Context) error {
					if len(h.Seeded) < 2 {
						return errors.New("need two seeded items")
					}
					mu.Lock()
					before = h.positions()
					mu.Unlock()
					h.Store.Fail(OpSwap, nil)
					return nil
				},
			},
			{
				Type:   "swap",
				Target: "board",
				Execute: func(ctx context.Context) error {
					err := h.Board.Swap(ctx, h.Seeded[0], h.Seeded[1])
					if !errors.Is(err, shelf.ErrStoreUnavailable) {
						return fmt.Errorf("swap: want %v, got %v", shelf.ErrStoreUnavailable, err)
					}
					return nil
				},
			},
			{
				Type:   "drag",
				Target: "pointer",
				Execute: func(ctx context.Context) error {
					return h.dragOnto(ctx, h.Seeded[0], h.Seeded[1], rearrange.ActionSwapFailed)
				},
			},
		},
		Rollback: []Action{
			{Type: "heal", Target: "store", Execute: func(context.Context) error { h.Store.Heal(); return nil }},
		},
		Validation: []Assertion{
			{Metric: "positions_unchanged", Condition: func(v float64) bool { return v == 1 }, Message: "no item may move when the swap write fails"},
			{Metric: "occupancy_consistent", Condition: func(v float64) bool { return v == 1 }, Message: "occupancy must match the store"},
			{Metric: "items_on_board", Condition: func(v float64) bool { return v == float64(len(h.Seeded)) }, Message: "item count must not change"},
		},
	}
}

func (h *Harness) dragOnto(ctx context.Context, source, target uuid.UUID, want rearrange.Action) error {
	from, err := h.center(source)
	if err != nil {
		return err
	}
	to, err := h.center(target)
	if err != nil {
		return err
	}

	events := []rearrange.PointerEvent{
		{Kind: rearrange.Down, Device: rearrange.Mouse, X: from.X, Y: from.Y, ItemID: source},
		{Kind: rearrange.Move, Device: rearrange.Mouse, X: to.X, Y: to.Y},
		{Kind: rearrange.Up, Device: rearrange.Mouse, X: to.X, Y: to.Y},
	}
	var last shelf.PointerOutcome
	for _, ev := range events {
		if last, err = h.Board.HandlePointer(ctx, ev); err != nil {
			return fmt.Errorf("pointer %s: %w", ev.Kind, err)
		}
	}
	if last.Result.Action != want {
		return fmt.Errorf("drag: want %s, got %s", want, last.Result.Action)
	}
	return nil
}

// CreateFailureExperiment fails item creation and expects the add to be
// rejected without touching the board.
func (h *Harness) CreateFailureExperiment() Experiment {
	rejected := 0.0
	return Experiment{
		Name:        "create-failure",
		Hypothesis:  "A failed create returns store-unavailable and the board is unchanged",
		SteadyState: []Metric{h.occupancyMetric(), h.itemCountMetric()},
		Method: []Action{
			{
				Type:   "fail-writes",
				Target: "store.create",
				Execute: func(ctx context.Context) error {
					h.Store.Fail(OpCreate, nil)
					_, err := h.Board.AddItem(ctx, shelf.ItemFields{Title: "Never Shelved", Author: "Harness"})
					if !errors.Is(err, shelf.ErrStoreUnavailable) {
						return fmt.Errorf("add: want %v, got %v", shelf.ErrStoreUnavailable, err)
					}
					rejected = 1
					return nil
				},
			},
		},
		Rollback: []Action{
			{Type: "heal", Target: "store", Execute: func(context.Context) error { h.Store.Heal(); return nil }},
		},
		Validation: []Assertion{
			{Metric: "items_on_board", Condition: func(v float64) bool { return v == float64(len(h.Seeded)) && rejected == 1 }, Message: "the add must fail and leave the item count unchanged"},
			{Metric: "occupancy_consistent", Condition: func(v float64) bool { return v == 1 }, Message: "occupancy must match the store"},
		},
	}
}

// OverlappingSyncExperiment holds the first of two syncs inside its store
// read until the second has been applied, and expects the first to be
// discarded.
func (h *Harness) OverlappingSyncExperiment() Experiment {
	var (
		mu         sync.Mutex
		discarded  float64
		lastWins   float64
		generation uint64
	)
	staleMetric := Metric{
		Name: "older_sync_discarded",
		Query: func(context.Context) (float64, error) {
			mu.Lock()
			defer mu.Unlock()
			return discarded, nil
		},
		Threshold: Threshold{Op: OpGte, Value: 0},
	}
	winsMetric := Metric{
		Name: "last_started_applied",
		Query: func(context.Context) (float64, error) {
			mu.Lock()
			defer mu.Unlock()
			if generation != 0 && h.Board.View().Generation == generation {
				lastWins = 1
			}
			return lastWins, nil
		},
		Threshold: Threshold{Op: OpGte, Value: 0},
	}

	return Experiment{
		Name:        "overlapping-syncs",
		Hypothesis:  "When a slow sync overlaps a later one, the later result is kept and the older one is discarded",
		SteadyState: []Metric{h.occupancyMetric(), h.itemCountMetric(), staleMetric, winsMetric},
		Method: []Action{
			{
				Type:   "slow-read",
				Target: "store.list",
				Execute: func(ctx context.Context) error {
					entered := make(chan struct{})
					release := make(chan struct{})
					first := h.Store.Calls(OpList) + 1
					h.Store.OnList(func(ctx context.Context, call int) {
						if call != first {
							return
						}
						close(entered)
						select {
						case <-release:
						case <-ctx.Done():
						}
					})

					type outcome struct {
						res shelf.SyncResult
						err error
					}
					slow := make(chan outcome, 1)
					go func() {
						res, err := h.Board.Sync(ctx)
						slow <- outcome{res, err}
					}()

					select {
					case <-entered:
					case <-ctx.Done():
						return ctx.Err()
					}
					fast, err := h.Board.Sync(ctx)
					close(release)
					older := <-slow
					if err != nil {
						return fmt.Errorf("fast sync: %w", err)
					}
					if older.err != nil {
						return fmt.Errorf("slow sync: %w", older.err)
					}

					mu.Lock()
					defer mu.Unlock()
					generation = fast.Generation
					if older.res.Stale && !fast.Stale && older.res.Generation < fast.Generation {
						discarded = 1
					}
					return nil
				},
			},
		},
		Rollback: []Action{
			{Type: "heal", Target: "store", Execute: func(context.Context) error { h.Store.Heal(); return nil }},
		},
		Validation: []Assertion{
			{Metric: "older_sync_discarded", Condition: func(v float64) bool { return v == 1 }, Message: "the older sync result must be discarded"},
			{Metric: "last_started_applied", Condition: func(v float64) bool { return v == 1 }, Message: "the board must show the last-started sync"},
			{Metric: "occupancy_consistent", Condition: func(v float64) bool { return v == 1 }, Message: "occupancy must match the store"},
		},
	}
}
