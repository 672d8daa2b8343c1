package layout

// defaultSlots is the five-shelf board: four spines on the top shelf, three on
// the second and third, two on the fourth and two on the bottom.
var defaultSlots = []Slot{
	// top shelf
	{ID: 1, X: 8, Y: 5},
	{ID: 2, X: 15.5, Y: 5},
	{ID: 3, X: 23, Y: 5},
	{ID: 4, X: 85, Y: 5},

	// second shelf
	{ID: 5, X: 8, Y: 23.5},
	{ID: 6, X: 15.5, Y: 23.5},
	{ID: 7, X: 23, Y: 23.5},

	// third shelf
	{ID: 8, X: 70, Y: 42},
	{ID: 9, X: 78, Y: 42},
	{ID: 10, X: 85, Y: 42},

	// fourth shelf
	{ID: 11, X: 8, Y: 60},
	{ID: 12, X: 15.5, Y: 60},

	// bottom shelf
	{ID: 13, X: 55, Y: 81},
	{ID: 14, X: 63, Y: 81},
}

// Default returns the built-in 14-slot layout.
func Default() *Layout {
	l, err := New(defaultSlots, DefaultSpine)
	if err != nil {
		panic("layout: invalid default layout: " + err.Error())
	}
	return l
}
