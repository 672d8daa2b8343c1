// internal/shelf/service.go
package shelf

import (
	"context"

	"github.com/google/uuid"

	"shelfboard/internal/rearrange"
)

// Service defines the operations of one owner's shelf board. Every mutation
// writes to the store and then re-syncs; local state is never patched
// directly.
type Service interface {
	Sync(ctx context.Context) (SyncResult, error)
	View() View
	Item(id uuid.UUID) (Item, bool)

	AddItem(ctx context.Context, fields ItemFields) (*Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, patch ItemPatch) error
	RemoveItem(ctx context.Context, id uuid.UUID) error
	Swap(ctx context.Context, source, target uuid.UUID) error

	NextPage() View
	PrevPage() View
	SetActivePage(index int) (View, bool)

	HandlePointer(ctx context.Context, ev rearrange.PointerEvent) (PointerOutcome, error)
	Stats() Stats
}
