// internal/layout/layout.go
package layout

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrEmptyLayout     = errors.New("layout has no slots")
	ErrDuplicateSlot   = errors.New("duplicate slot id")
	ErrSlotOutOfBounds = errors.New("slot position outside 0..100")
)

// Slot is one addressable position on a shelf page. X and Y are percentages
// of the board width and height measured from the top-left corner.
type Slot struct {
	ID int     `json:"id" toml:"id"`
	X  float64 `json:"x" toml:"x"`
	Y  float64 `json:"y" toml:"y"`
}

// Spine is the size of a rendered book spine, in the same percentage units
// as slot positions. It is used for hit testing during rearrangement.
type Spine struct {
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// DefaultSpine is used when a layout file does not declare one.
var DefaultSpine = Spine{Width: 6, Height: 15}

// Layout is an immutable, id-ordered set of slots.
type Layout struct {
	slots []Slot
	index map[int]int
	spine Spine
}

// New validates slots and returns a layout ordered by ascending slot id.
func New(slots []Slot, spine Spine) (*Layout, error) {
	if len(slots) == 0 {
		return nil, ErrEmptyLayout
	}

	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	index := make(map[int]int, len(sorted))
	for i, s := range sorted {
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSlot, s.ID)
		}
		if s.X < 0 || s.X > 100 || s.Y < 0 || s.Y > 100 {
			return nil, fmt.Errorf("%w: slot %d at (%.2f, %.2f)", ErrSlotOutOfBounds, s.ID, s.X, s.Y)
		}
		index[s.ID] = i
	}

	if spine.Width <= 0 || spine.Height <= 0 {
		spine = DefaultSpine
	}

	return &Layout{slots: sorted, index: index, spine: spine}, nil
}

// Slots returns the slots in ascending id order. The returned slice is a copy.
func (l *Layout) Slots() []Slot {
	out := make([]Slot, len(l.slots))
	copy(out, l.slots)
	return out
}

// Capacity is the number of slots on one page.
func (l *Layout) Capacity() int {
	return len(l.slots)
}

// Slot looks up a slot by id.
func (l *Layout) Slot(id int) (Slot, bool) {
	i, ok := l.index[id]
	if !ok {
		return Slot{}, false
	}
	return l.slots[i], true
}

// Has reports whether id names a slot of this layout.
func (l *Layout) Has(id int) bool {
	_, ok := l.index[id]
	return ok
}

func (l *Layout) Spine() Spine {
	return l.spine
}
