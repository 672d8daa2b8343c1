// internal/owner/domain.go
package owner

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrNotFound           = errors.New("owner not found")
	ErrInvalidOwner       = errors.New("invalid owner")
	ErrInvalidToken       = errors.New("invalid token")
)

// Owner is a registered shelf owner. Every shelf, reading list and history
// stream is keyed by the owner's id.
type Owner struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Credential represents an owner's login credentials.
type Credential struct {
	OwnerID      uuid.UUID `json:"owner_id"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}
