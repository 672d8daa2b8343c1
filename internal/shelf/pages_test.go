package shelf

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"shelfboard/internal/layout"
)

func item(page, slot int) Item {
	return Item{ID: uuid.New(), Title: "T", Author: "A", PageIndex: page, SlotID: slot}
}

func TestPageManager_StartsWithPageZero(t *testing.T) {
	m := NewPageManager(layout.Default(), 0)
	assert.Equal(t, 1, m.PageCount())
	assert.Equal(t, 0, m.ActiveIndex())
	assert.Equal(t, 0, m.Active().Len())
}

func TestPageManager_SetActive(t *testing.T) {
	m := NewPageManager(layout.Default(), 3)

	assert.True(t, m.SetActive(1), "one past the end creates the page")
	assert.Equal(t, 2, m.PageCount())
	assert.Equal(t, 1, m.ActiveIndex())

	assert.False(t, m.SetActive(5))
	assert.False(t, m.SetActive(-1))
	assert.Equal(t, 1, m.ActiveIndex())

	assert.True(t, m.Next())
	assert.False(t, m.Next(), "max pages reached")
	assert.Equal(t, 3, m.PageCount())

	assert.True(t, m.Prev())
	assert.True(t, m.Prev())
	assert.False(t, m.Prev())
	assert.Equal(t, 0, m.ActiveIndex())
}

func TestPageManager_EnsurePageAppendsInOrder(t *testing.T) {
	m := NewPageManager(layout.Default(), 10)
	p, err := m.EnsurePage(3)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Index())

	for i, pg := range m.Pages() {
		assert.Equal(t, i, pg.Index())
	}

	_, err = m.EnsurePage(10)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = m.EnsurePage(-1)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestAllocate_LowestFreeSlot(t *testing.T) {
	l := layout.Default()
	p := newPage(0)
	p.place(item(0, 1))
	p.place(item(0, 3))

	s, err := Allocate(l, p)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ID)

	for _, slot := range l.Slots() {
		p.place(item(0, slot.ID))
	}
	_, err = Allocate(l, p)
	assert.ErrorIs(t, err, ErrNoFreeSlot)
}

func fill(m *PageManager, page int) {
	p, _ := m.EnsurePage(page)
	for _, s := range m.Layout().Slots() {
		p.place(item(page, s.ID))
	}
}

func TestPlacement(t *testing.T) {
	l := layout.Default()

	t.Run("active page first", func(t *testing.T) {
		m := NewPageManager(l, 4)
		m.SetActive(1)
		pos, err := placement(m, true)
		require.NoError(t, err)
		assert.Equal(t, Position{PageIndex: 1, SlotID: 1}, pos)
	})

	t.Run("wraps to earlier pages", func(t *testing.T) {
		m := NewPageManager(l, 4)
		m.SetActive(1)
		fill(m, 1)
		pos, err := placement(m, false)
		require.NoError(t, err)
		assert.Equal(t, Position{PageIndex: 0, SlotID: 1}, pos)
	})

	t.Run("overflow opens the next page", func(t *testing.T) {
		m := NewPageManager(l, 4)
		fill(m, 0)
		pos, err := placement(m, true)
		require.NoError(t, err)
		assert.Equal(t, Position{PageIndex: 1, SlotID: 1}, pos)
		assert.Equal(t, 1, m.PageCount(), "placement never creates pages")
	})

	t.Run("full without overflow", func(t *testing.T) {
		m := NewPageManager(l, 4)
		fill(m, 0)
		_, err := placement(m, false)
		assert.ErrorIs(t, err, ErrNoFreeSlot)
	})

	t.Run("full at max pages", func(t *testing.T) {
		m := NewPageManager(l, 1)
		fill(m, 0)
		_, err := placement(m, true)
		assert.ErrorIs(t, err, ErrNoFreeSlot)
	})
}

func TestRebuild_SkipsUnplaceableItems(t *testing.T) {
	m := NewPageManager(layout.Default(), 4)
	older := item(0, 2)
	older.CreatedAt = time.Unix(100, 0)
	newer := item(0, 2)
	newer.CreatedAt = time.Unix(200, 0)

	items := []Item{newer, older, item(0, 99), item(7, 1), item(2, 5)}
	warnings := rebuild(m, items)

	require.Len(t, warnings, 3)
	reasons := map[uuid.UUID]string{}
	for _, w := range warnings {
		reasons[w.ItemID] = w.Reason
	}
	assert.Equal(t, "slot already occupied", reasons[newer.ID])
	assert.Equal(t, "slot not in layout", reasons[items[2].ID])
	assert.Equal(t, "page index out of range", reasons[items[3].ID])

	got, ok := m.Pages()[0].ItemAt(2)
	require.True(t, ok)
	assert.Equal(t, older.ID, got.ID, "the older item keeps a contested slot")
	assert.Equal(t, 3, m.PageCount(), "pages up to the highest referenced are created")
	assert.NoError(t, VerifyOccupancy(m, items))
}

func TestVerifyOccupancy_DetectsDrift(t *testing.T) {
	m := NewPageManager(layout.Default(), 4)
	items := []Item{item(0, 1), item(0, 2)}
	rebuild(m, items)
	require.NoError(t, VerifyOccupancy(m, items))

	assert.Error(t, VerifyOccupancy(m, items[:1]))
	assert.Error(t, VerifyOccupancy(m, append(items, item(1, 1))))
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewPageManager(layout.Default(), 4)
	rebuild(m, []Item{item(0, 1)})

	c := m.clone()
	c.clearOccupancy()
	assert.Equal(t, 1, m.Active().Len())
	assert.Equal(t, 0, c.Active().Len())
}

func TestComputeStats(t *testing.T) {
	items := []Item{
		{Rating: 5, GenreTag: "fantasy", PageIndex: 0},
		{Rating: 4, GenreTag: "sci-fi", PageIndex: 0},
		{Rating: 0, GenreTag: "sci-fi", PageIndex: 1},
		{Rating: 4, GenreTag: "fantasy", PageIndex: 1},
		{Rating: 0, PageIndex: 3},
	}
	st := ComputeStats(items)
	assert.Equal(t, 5, st.TotalItems)
	assert.Equal(t, 3, st.RatedItems)
	assert.Equal(t, 4.3, st.AverageRating)
	assert.Equal(t, "fantasy", st.FavoriteGenre, "ties break alphabetically")
	assert.Equal(t, 3, st.PagesInUse)

	assert.Equal(t, Stats{}, ComputeStats(nil))
}

func TestItemPatch(t *testing.T) {
	assert.True(t, ItemPatch{}.Empty())

	bad := 6
	assert.ErrorIs(t, ItemPatch{Rating: &bad}.Validate(), ErrInvalidRating)

	rating, genre := 3, "poetry"
	got := ItemPatch{Rating: &rating, GenreTag: &genre}.Apply(Item{Rating: 1, ColorTag: "#fff"})
	assert.Equal(t, 3, got.Rating)
	assert.Equal(t, "poetry", got.GenreTag)
	assert.Equal(t, "#fff", got.ColorTag)
}

func TestItemFieldsValidate(t *testing.T) {
	assert.NoError(t, ItemFields{Title: "Dune", Author: "Herbert"}.Validate())
	assert.ErrorIs(t, ItemFields{Author: "Herbert"}.Validate(), ErrInvalidItem)
	assert.ErrorIs(t, ItemFields{Title: "Dune", Author: " "}.Validate(), ErrInvalidItem)
	assert.ErrorIs(t, ItemFields{Title: "Dune", Author: "H", PageIndex: -1}.Validate(), ErrInvalidItem)
	assert.ErrorIs(t, ItemFields{Title: "Dune", Author: "H", Rating: -1}.Validate(), ErrInvalidRating)
}

// Whatever the store holds, a rebuild never places two items in one slot,
// never references a slot outside the layout, and matches VerifyOccupancy.
func TestRebuild_OccupancyProperty(t *testing.T) {
	l := layout.Default()
	rapid.Check(t, func(t *rapid.T) {
		maxPages := rapid.IntRange(1, 5).Draw(t, "maxPages")
		n := rapid.IntRange(0, 40).Draw(t, "items")
		items := make([]Item, n)
		for i := range items {
			items[i] = Item{
				ID:        uuid.New(),
				PageIndex: rapid.IntRange(0, 6).Draw(t, "page"),
				SlotID:    rapid.IntRange(0, 16).Draw(t, "slot"),
				CreatedAt: time.Unix(int64(rapid.IntRange(0, 5).Draw(t, "created")), 0),
			}
		}

		m := NewPageManager(l, maxPages)
		warnings := rebuild(m, items)

		placed := 0
		for _, p := range m.Pages() {
			placed += p.Len()
			for _, slot := range p.Occupied() {
				if !l.Has(slot) {
					t.Fatalf("page %d holds slot %d outside the layout", p.Index(), slot)
				}
			}
		}
		if placed+len(warnings) != n {
			t.Fatalf("placed %d + warned %d != %d items", placed, len(warnings), n)
		}
		if err := VerifyOccupancy(m, items); err != nil {
			t.Fatalf("verify: %v", err)
		}
	})
}

// Placement always names a free slot inside the layout on an allowed page.
func TestPlacement_Property(t *testing.T) {
	l := layout.Default()
	rapid.Check(t, func(t *rapid.T) {
		maxPages := rapid.IntRange(1, 4).Draw(t, "maxPages")
		m := NewPageManager(l, maxPages)
		n := rapid.IntRange(0, 60).Draw(t, "n")
		for i := 0; i < n; i++ {
			page := rapid.IntRange(0, maxPages-1).Draw(t, "page")
			slot := rapid.IntRange(1, l.Capacity()).Draw(t, "slot")
			p, _ := m.EnsurePage(page)
			p.place(item(page, slot))
		}
		m.SetActive(rapid.IntRange(0, m.PageCount()-1).Draw(t, "active"))
		overflow := rapid.Bool().Draw(t, "overflow")

		pos, err := placement(m, overflow)
		if err != nil {
			for _, p := range m.Pages() {
				if p.Len() < l.Capacity() {
					t.Fatalf("page %d has room but placement failed", p.Index())
				}
			}
			return
		}
		if !l.Has(pos.SlotID) || pos.PageIndex >= maxPages {
			t.Fatalf("placement %+v outside bounds", pos)
		}
		if p, ok := m.Page(pos.PageIndex); ok && p.IsOccupied(pos.SlotID) {
			t.Fatalf("placement %+v is occupied", pos)
		}
	})
}
