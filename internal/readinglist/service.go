// internal/readinglist/service.go
package readinglist

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the reading list service.
type Service interface {
	Add(ctx context.Context, ownerID, title, author string) (*Entry, error)
	Remove(ctx context.Context, ownerID string, id uuid.UUID) error
	List(ctx context.Context, ownerID string) ([]Entry, error)
}
