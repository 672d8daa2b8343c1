// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	Search(ctx context.Context, query string) ([]Result, error)
	Reviews(ctx context.Context, entries []Entry) (ReviewSummary, error)
}
