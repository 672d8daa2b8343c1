package shelf

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Store is the remote item store, scoped per owner. Implementations validate
// fields at this boundary and report a missing or foreign item as
// ErrItemNotFound.
type Store interface {
	List(ctx context.Context, ownerID string) ([]Item, error)
	Create(ctx context.Context, ownerID string, fields ItemFields) (uuid.UUID, error)
	Update(ctx context.Context, ownerID string, id uuid.UUID, patch ItemPatch) error
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error

	// SwapPositions exchanges the page and slot of a and b as one
	// all-or-nothing write.
	SwapPositions(ctx context.Context, ownerID string, a, b uuid.UUID) error
}

// HistoryEntry is one recorded shelf mutation.
type HistoryEntry struct {
	Version    int             `json:"version"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// HistoryReader is implemented by stores that keep a mutation log.
type HistoryReader interface {
	History(ctx context.Context, ownerID string) ([]HistoryEntry, error)
}
