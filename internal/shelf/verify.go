package shelf

import (
	"fmt"
	"sort"
)

// VerifyOccupancy checks that every page's occupied set equals the slots of
// the placeable items recorded for that page, and that no page references
// a slot outside the layout. items is the store's full item list.
func VerifyOccupancy(m *PageManager, items []Item) error {
	want := make(map[int]map[int]struct{})
	for _, it := range items {
		if !m.Layout().Has(it.SlotID) || it.PageIndex < 0 || it.PageIndex >= m.maxPages {
			continue
		}
		if want[it.PageIndex] == nil {
			want[it.PageIndex] = make(map[int]struct{})
		}
		want[it.PageIndex][it.SlotID] = struct{}{}
	}

	for idx := range want {
		if idx >= m.PageCount() {
			return fmt.Errorf("page %d referenced by items but missing", idx)
		}
	}

	for _, p := range m.Pages() {
		var expected []int
		for slot := range want[p.Index()] {
			expected = append(expected, slot)
		}
		sort.Ints(expected)

		got := p.Occupied()
		if len(got) != len(expected) {
			return fmt.Errorf("page %d: occupied %v, want %v", p.Index(), got, expected)
		}
		for i := range got {
			if got[i] != expected[i] {
				return fmt.Errorf("page %d: occupied %v, want %v", p.Index(), got, expected)
			}
			if !m.Layout().Has(got[i]) {
				return fmt.Errorf("page %d: slot %d not in layout", p.Index(), got[i])
			}
		}
	}
	return nil
}
