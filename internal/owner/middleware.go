// internal/owner/middleware.go
package owner

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const ctxOwnerKey contextKey = "ownerID"

// Middleware rejects requests without a valid bearer token and stores the
// token's owner id in the request context.
func Middleware(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			ownerID, err := tokens.Verify(strings.TrimSpace(raw))
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), ownerID)))
		})
	}
}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxOwnerKey, ownerID)
}

func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxOwnerKey).(string)
	return id, ok && id != ""
}
