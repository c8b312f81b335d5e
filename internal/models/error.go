package models

import (
	"errors"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Security failures. These are surfaced to callers as generic rejections;
	// none reveals which factor failed or whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidCode        = errors.New("invalid code")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRequest     = errors.New("invalid request")

	// ErrRateLimited is the one security failure surfaced explicitly,
	// with a retry-after hint. It leaks no identity information.
	ErrRateLimited = errors.New("rate limit exceeded")

	// Two-factor state errors
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotPending     = errors.New("no two-factor setup pending")
)

// RateLimitedError carries the retry-after hint alongside ErrRateLimited.
// errors.Is(err, ErrRateLimited) matches it.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return ErrRateLimited.Error()
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (e *RateLimitedError) RetryAfter() int {
	seconds := int(time.Until(e.ResetAt).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
