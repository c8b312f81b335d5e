package middleware

import (
	"log/slog"
	"net/http"

	"github.com/averyhollis/bastion/internal/auth"
	pkghttp "github.com/averyhollis/bastion/pkg/http"
)

// SessionCookieName identifies the browser session the CSRF token is bound to.
const SessionCookieName = "bastion_session"

// CSRFTokenHeader carries the client's token copy on state-changing requests.
const CSRFTokenHeader = "X-CSRF-Token"

// CSRFProtection validates the double-submit token on every state-changing
// request. The Origin header is checked first; then the header token must
// match the server-held copy for the caller's session. Safe methods pass
// through untouched.
func CSRFProtection(guard *auth.CSRFGuard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			if !auth.VerifyOrigin(r.Header.Get("Origin"), r.Host) {
				logger.Warn("cross-origin request rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", r.Header.Get("Origin")))
				pkghttp.WriteForbidden(w, "Cross-origin request rejected")
				return
			}

			sessionCookie, err := r.Cookie(SessionCookieName)
			if err != nil || sessionCookie.Value == "" {
				logger.Warn("CSRF check without session",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token invalid")
				return
			}

			token := r.Header.Get(CSRFTokenHeader)
			if !guard.VerifyToken(sessionCookie.Value, token) {
				logger.Warn("CSRF token validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "CSRF token invalid")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
