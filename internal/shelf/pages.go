// internal/shelf/pages.go
package shelf

import (
	"fmt"
	"sort"

	"shelfboard/internal/layout"
)

// DefaultMaxPages bounds how many pages a board may grow to.
const DefaultMaxPages = 64

// Page is one instance of the layout together with the items placed on it.
// Occupancy is written only by the Syncer.
type Page struct {
	index int
	items map[int]Item // slot id -> occupant
}

func newPage(index int) *Page {
	return &Page{index: index, items: make(map[int]Item)}
}

func (p *Page) Index() int {
	return p.index
}

// Occupied returns the occupied slot ids in ascending order.
func (p *Page) Occupied() []int {
	out := make([]int, 0, len(p.items))
	for id := range p.items {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (p *Page) IsOccupied(slotID int) bool {
	_, ok := p.items[slotID]
	return ok
}

func (p *Page) ItemAt(slotID int) (Item, bool) {
	it, ok := p.items[slotID]
	return it, ok
}

// Items returns the page's items ordered by slot id.
func (p *Page) Items() []Item {
	out := make([]Item, 0, len(p.items))
	for _, id := range p.Occupied() {
		out = append(out, p.items[id])
	}
	return out
}

func (p *Page) Len() int {
	return len(p.items)
}

func (p *Page) clear() {
	p.items = make(map[int]Item)
}

func (p *Page) place(item Item) {
	p.items[item.SlotID] = item
}

// PageManager owns the ordered, append-only list of pages and the index of
// the page currently shown.
type PageManager struct {
	layout   *layout.Layout
	pages    []*Page
	active   int
	maxPages int
}

// NewPageManager creates a manager holding page 0.
func NewPageManager(l *layout.Layout, maxPages int) *PageManager {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &PageManager{
		layout:   l,
		pages:    []*Page{newPage(0)},
		maxPages: maxPages,
	}
}

func (m *PageManager) Layout() *layout.Layout {
	return m.layout
}

// EnsurePage returns page index, creating every missing page up to it in
// order. Existing pages are never removed or reordered.
func (m *PageManager) EnsurePage(index int) (*Page, error) {
	if index < 0 || index >= m.maxPages {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	for len(m.pages) <= index {
		m.pages = append(m.pages, newPage(len(m.pages)))
	}
	return m.pages[index], nil
}

// Page returns an existing page without creating it.
func (m *PageManager) Page(index int) (*Page, bool) {
	if index < 0 || index >= len(m.pages) {
		return nil, false
	}
	return m.pages[index], true
}

func (m *PageManager) Pages() []*Page {
	out := make([]*Page, len(m.pages))
	copy(out, m.pages)
	return out
}

func (m *PageManager) PageCount() int {
	return len(m.pages)
}

func (m *PageManager) ActiveIndex() int {
	return m.active
}

func (m *PageManager) Active() *Page {
	return m.pages[m.active]
}

// SetActive switches the visible page. Index one past the last page creates
// that page first. Any other out-of-range index is ignored and reported
// false.
func (m *PageManager) SetActive(index int) bool {
	switch {
	case index >= 0 && index < len(m.pages):
		m.active = index
		return true
	case index == len(m.pages):
		if _, err := m.EnsurePage(index); err != nil {
			return false
		}
		m.active = index
		return true
	default:
		return false
	}
}

func (m *PageManager) Next() bool {
	return m.SetActive(m.active + 1)
}

func (m *PageManager) Prev() bool {
	return m.SetActive(m.active - 1)
}

// Items returns every placed item ordered by page then slot.
func (m *PageManager) Items() []Item {
	var out []Item
	for _, p := range m.pages {
		out = append(out, p.Items()...)
	}
	return out
}

func (m *PageManager) clearOccupancy() {
	for _, p := range m.pages {
		p.clear()
	}
}

// clone copies the manager so a sync can build the next state off to the
// side.
func (m *PageManager) clone() *PageManager {
	c := &PageManager{
		layout:   m.layout,
		pages:    make([]*Page, len(m.pages)),
		active:   m.active,
		maxPages: m.maxPages,
	}
	for i, p := range m.pages {
		np := newPage(p.index)
		for k, v := range p.items {
			np.items[k] = v
		}
		c.pages[i] = np
	}
	return c
}
