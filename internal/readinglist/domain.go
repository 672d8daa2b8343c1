// internal/readinglist/domain.go
package readinglist

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingField = errors.New("title and author are required")
	ErrNotFound     = errors.New("reading list entry not found")
)

// Entry is a book an owner intends to read.
type Entry struct {
	ID      uuid.UUID `json:"id"`
	OwnerID string    `json:"owner_id"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	AddedAt time.Time `json:"added_at"`
}
