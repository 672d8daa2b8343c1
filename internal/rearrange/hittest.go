package rearrange

import "github.com/google/uuid"

// Box is the rectangle an item occupies on the board, top-left anchored.
type Box struct {
	ID     uuid.UUID
	X, Y   float64
	Width  float64
	Height float64
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// BoxHitTester hit-tests a fixed list of boxes. When boxes overlap the one
// listed last is on top.
type BoxHitTester []Box

func (h BoxHitTester) HitTest(p Point, exclude uuid.UUID) (uuid.UUID, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		b := h[i]
		if b.ID == exclude {
			continue
		}
		if b.Contains(p) {
			return b.ID, true
		}
	}
	return uuid.Nil, false
}
