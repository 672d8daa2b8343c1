// internal/catalog/domain.go
package catalog

import "errors"

const (
	DefaultMaxResults = 8
	UnknownAuthor     = "Unknown"
	NoDescription     = "No description available"

	descriptionLimit = 150
)

var (
	ErrEmptyQuery  = errors.New("search query is empty")
	ErrUnavailable = errors.New("catalog unavailable")
)

// Result is one search hit, shaped so it can be added straight to a shelf.
type Result struct {
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	CoverRef   string   `json:"cover_ref,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Entry identifies a book whose reviews are wanted.
type Entry struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Review is the public rating information found for one entry. Rating is nil
// when neither source had one.
type Review struct {
	Title        string   `json:"title"`
	Rating       *float64 `json:"rating"`
	RatingsCount int      `json:"ratings_count"`
	Description  string   `json:"description"`
}

// ReviewSummary aggregates reviews for a list of entries. AverageRating is
// formatted to one decimal and is "0.0" when nothing was rated.
type ReviewSummary struct {
	AverageRating string   `json:"average_rating"`
	RatedCount    int      `json:"rated_count"`
	Reviews       []Review `json:"reviews"`
}
