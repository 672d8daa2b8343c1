// internal/owner/service.go
package owner

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the owner service.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*Owner, error)
	Authenticate(ctx context.Context, email, password string) (*Owner, error)
	Get(ctx context.Context, id uuid.UUID) (*Owner, error)
}
