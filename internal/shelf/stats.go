package shelf

import "math"

// Stats summarises a shelf for the owner's profile.
type Stats struct {
	TotalItems    int     `json:"total_items"`
	RatedItems    int     `json:"rated_items"`
	AverageRating float64 `json:"average_rating"`
	FavoriteGenre string  `json:"favorite_genre,omitempty"`
	PagesInUse    int     `json:"pages_in_use"`
}

// ComputeStats averages ratings over rated items only, rounded to one
// decimal. The favourite genre is the most frequent non-empty genre tag,
// ties broken alphabetically.
func ComputeStats(items []Item) Stats {
	var st Stats
	sum := 0
	genres := make(map[string]int)
	pages := make(map[int]struct{})

	for _, it := range items {
		st.TotalItems++
		pages[it.PageIndex] = struct{}{}
		if it.Rating > 0 {
			st.RatedItems++
			sum += it.Rating
		}
		if it.GenreTag != "" {
			genres[it.GenreTag]++
		}
	}

	if st.RatedItems > 0 {
		st.AverageRating = math.Round(float64(sum)/float64(st.RatedItems)*10) / 10
	}
	best := 0
	for g, n := range genres {
		if n > best || (n == best && g < st.FavoriteGenre) {
			best = n
			st.FavoriteGenre = g
		}
	}
	st.PagesInUse = len(pages)
	return st
}
