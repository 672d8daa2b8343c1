package shelf

import (
	"shelfboard/internal/rearrange"
)

// View is the render state handed to the view layer.
type View struct {
	OwnerID    string     `json:"owner_id"`
	ActivePage int        `json:"active_page"`
	PageCount  int        `json:"page_count"`
	Capacity   int        `json:"capacity"`
	Generation uint64     `json:"generation"`
	Pages      []PageView `json:"pages"`
}

type PageView struct {
	Index    int        `json:"index"`
	Occupied []int      `json:"occupied"`
	Slots    []SlotView `json:"slots"`
}

// SlotView is one slot and, when occupied, its item.
type SlotView struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Item *Item   `json:"item,omitempty"`
}

// PointerOutcome is the result of a pointer event plus what the view needs
// to redraw: the item to open on a tap and the board after a swap.
type PointerOutcome struct {
	Result rearrange.Result `json:"result"`
	Error  string           `json:"error,omitempty"`
	Detail *Item            `json:"detail,omitempty"`
	View   *View            `json:"view,omitempty"`
}

func buildView(owner string, m *PageManager, generation uint64) View {
	v := View{
		OwnerID:    owner,
		ActivePage: m.ActiveIndex(),
		PageCount:  m.PageCount(),
		Capacity:   m.Layout().Capacity(),
		Generation: generation,
	}
	slots := m.Layout().Slots()
	for _, p := range m.Pages() {
		pv := PageView{Index: p.Index(), Occupied: p.Occupied()}
		for _, s := range slots {
			sv := SlotView{ID: s.ID, X: s.X, Y: s.Y}
			if it, ok := p.ItemAt(s.ID); ok {
				it := it
				sv.Item = &it
			}
			pv.Slots = append(pv.Slots, sv)
		}
		v.Pages = append(v.Pages, pv)
	}
	return v
}
