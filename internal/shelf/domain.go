// internal/shelf/domain.go
package shelf

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxRating is the highest star rating. Zero means unrated.
const MaxRating = 5

// SpinePalette is the set of colour tags assigned to new items that do not
// bring their own.
var SpinePalette = []string{"#d4a5a5", "#a8d8d8", "#d8d8a8", "#c8b8a8", "#b8d8c8"}

// Item represents a book placed on an owner's shelf.
type Item struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CoverRef  string    `json:"cover_ref,omitempty"`
	PageIndex int       `json:"page_index"`
	SlotID    int       `json:"slot_id"`
	ColorTag  string    `json:"color_tag,omitempty"`
	GenreTag  string    `json:"genre_tag,omitempty"`
	Rating    int       `json:"rating"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Position is the placement of an item: a page and a slot on that page.
type Position struct {
	PageIndex int `json:"page_index"`
	SlotID    int `json:"slot_id"`
}

func (i Item) Position() Position {
	return Position{PageIndex: i.PageIndex, SlotID: i.SlotID}
}

// ItemFields are the values supplied when an item is created.
type ItemFields struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	CoverRef  string `json:"cover_ref,omitempty"`
	PageIndex int    `json:"page_index"`
	SlotID    int    `json:"slot_id"`
	ColorTag  string `json:"color_tag,omitempty"`
	GenreTag  string `json:"genre_tag,omitempty"`
	Rating    int    `json:"rating"`
}

// Validate checks the fields a store must never persist out of range.
func (f ItemFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidItem)
	}
	if strings.TrimSpace(f.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidItem)
	}
	if f.PageIndex < 0 {
		return fmt.Errorf("%w: page index %d", ErrInvalidItem, f.PageIndex)
	}
	return ValidateRating(f.Rating)
}

// ItemPatch is a partial update. Nil fields are left unchanged.
type ItemPatch struct {
	Rating   *int    `json:"rating,omitempty"`
	GenreTag *string `json:"genre_tag,omitempty"`
	ColorTag *string `json:"color_tag,omitempty"`
}

func (p ItemPatch) Empty() bool {
	return p.Rating == nil && p.GenreTag == nil && p.ColorTag == nil
}

func (p ItemPatch) Validate() error {
	if p.Rating != nil {
		return ValidateRating(*p.Rating)
	}
	return nil
}

// Apply returns a copy of item with the patch applied.
func (p ItemPatch) Apply(item Item) Item {
	if p.Rating != nil {
		item.Rating = *p.Rating
	}
	if p.GenreTag != nil {
		item.GenreTag = *p.GenreTag
	}
	if p.ColorTag != nil {
		item.ColorTag = *p.ColorTag
	}
	return item
}

func ValidateRating(r int) error {
	if r < 0 || r > MaxRating {
		return fmt.Errorf("%w: %d", ErrInvalidRating, r)
	}
	return nil
}

// ItemShelvedEvent is recorded when an item is created.
type ItemShelvedEvent struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	PageIndex int       `json:"page_index"`
	SlotID    int       `json:"slot_id"`
}

// ItemUpdatedEvent is recorded when rating, genre or colour changes.
type ItemUpdatedEvent struct {
	ID    uuid.UUID `json:"id"`
	Patch ItemPatch `json:"patch"`
}

// ItemRemovedEvent is recorded when an item is deleted.
type ItemRemovedEvent struct {
	ID uuid.UUID `json:"id"`
}

// ItemsSwappedEvent is recorded when two items exchange positions.
type ItemsSwappedEvent struct {
	SourceID   uuid.UUID `json:"source_id"`
	TargetID   uuid.UUID `json:"target_id"`
	SourceFrom Position  `json:"source_from"`
	TargetFrom Position  `json:"target_from"`
}
