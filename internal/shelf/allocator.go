package shelf

import (
	"shelfboard/internal/layout"
)

// Allocate returns the lowest-id slot of l that is free on page, or
// ErrNoFreeSlot when every slot is taken.
func Allocate(l *layout.Layout, page *Page) (layout.Slot, error) {
	for _, s := range l.Slots() {
		if !page.IsOccupied(s.ID) {
			return s, nil
		}
	}
	return layout.Slot{}, ErrNoFreeSlot
}

// placement picks a page and slot for a new item. The active page is tried
// first, then every later page, then the earlier ones. With overflow the
// first slot of the page one past the end is returned; that page is created
// by the sync that loads the new item. It never mutates m.
func placement(m *PageManager, allowOverflow bool) (Position, error) {
	n := m.PageCount()
	start := m.ActiveIndex()
	for k := 0; k < n; k++ {
		i := (start + k) % n
		p, _ := m.Page(i)
		if s, err := Allocate(m.Layout(), p); err == nil {
			return Position{PageIndex: i, SlotID: s.ID}, nil
		}
	}

	if !allowOverflow || n >= m.maxPages {
		return Position{}, ErrNoFreeSlot
	}
	s, err := Allocate(m.Layout(), newPage(n))
	if err != nil {
		return Position{}, err
	}
	return Position{PageIndex: n, SlotID: s.ID}, nil
}
