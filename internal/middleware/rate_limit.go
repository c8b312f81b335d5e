package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// IPRateLimitConfig holds the coarse per-IP limits applied in front of the
// identity-keyed sliding-window limits inside the services.
type IPRateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultIPRateLimit allows 30 requests per minute per IP across the auth
// surface. The per-account limits are far tighter; this tier exists to stop
// one host from spraying many accounts.
func DefaultIPRateLimit() IPRateLimitConfig {
	return IPRateLimitConfig{
		RequestsPerMinute: 30,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config IPRateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Too many requests. Please try again later."}`))
		}),
	)
}
