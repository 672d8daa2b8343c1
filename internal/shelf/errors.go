package shelf

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNoFreeSlot is returned when a page, or the whole board when
	// overflow is disabled, has no unoccupied slot.
	ErrNoFreeSlot = errors.New("no free slot")

	// ErrDuplicateItem is returned when an item with the same title and
	// author is already shelved for the owner.
	ErrDuplicateItem = errors.New("item already on shelf")

	// ErrInvalidIndex is returned for a negative or over-limit page index.
	ErrInvalidIndex = errors.New("invalid page index")

	// ErrStoreUnavailable wraps any unexpected item store failure.
	ErrStoreUnavailable = errors.New("item store unavailable")

	ErrItemNotFound  = errors.New("item not found")
	ErrSameItem      = errors.New("cannot swap an item with itself")
	ErrInvalidRating = errors.New("rating must be between 0 and 5")
	ErrInvalidItem   = errors.New("invalid item")

	// ErrSlotConflict is returned by a store when another write claimed the
	// slot first.
	ErrSlotConflict = errors.New("slot already occupied")
)

// IntegrityWarning describes a stored item that Sync could not place.
type IntegrityWarning struct {
	ItemID    uuid.UUID `json:"item_id"`
	PageIndex int       `json:"page_index"`
	SlotID    int       `json:"slot_id"`
	Reason    string    `json:"reason"`
}

func (w IntegrityWarning) String() string {
	return fmt.Sprintf("item %s at page %d slot %d: %s", w.ItemID, w.PageIndex, w.SlotID, w.Reason)
}

// storeErr keeps the errors callers can act on and folds everything else
// into ErrStoreUnavailable.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrSlotConflict),
		errors.Is(err, ErrInvalidRating),
		errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrSameItem):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
}
