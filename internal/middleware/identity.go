package middleware

import (
	"context"
	"net/http"

	pkghttp "github.com/averyhollis/bastion/pkg/http"
)

// AuthenticatedUserHeader is set by the fronting gateway after it has
// established the caller's session. Session issuance itself lives outside
// this service; requests reaching the protected surface directly, without
// the header, are rejected.
const AuthenticatedUserHeader = "X-Authenticated-User"

type contextKey string

const userIDContextKey contextKey = "user_id"

// RequireAuthenticatedUser gates the account-management surface on a
// gateway-asserted identity and stores the user ID in the request context.
func RequireAuthenticatedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(AuthenticatedUserHeader)
		if userID == "" {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user ID, or "" when the
// request did not pass through RequireAuthenticatedUser.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey).(string); ok {
		return id
	}
	return ""
}
