package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-sculptor/internal/constants"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// maxOwnerLength matches the session store column width.
const maxOwnerLength = 255

// RequireOwner is middleware that requires the owner reference header set by
// the upstream gateway.
func RequireOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(constants.OwnerHeader))
			if owner == "" || len(owner) > maxOwnerLength {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error": "missing or invalid `+constants.OwnerHeader+` header"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetOwnerInContext(r.Context(), owner)))
		})
	}
}

// GetOwnerFromContext retrieves the owner reference from the request context
func GetOwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}

// SetOwnerInContext adds an owner reference to the context.
// This is primarily for testing - use RequireOwner middleware in production.
func SetOwnerInContext(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}
