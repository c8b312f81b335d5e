package models

import "time"

// TokenPurpose scopes a security token to exactly one redeemable action.
type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
)

// Valid reports whether the purpose is one of the known purpose tags.
func (p TokenPurpose) Valid() bool {
	switch p {
	case TokenPurposeEmailVerification, TokenPurposePasswordReset:
		return true
	}
	return false
}

// SecurityToken is a single-use, expiring, purpose-scoped token record.
// The token value itself is opaque random material; lookups are keyed by
// (token, purpose) and by (identifier, purpose).
type SecurityToken struct {
	ID         string       `db:"id"`
	Identifier string       `db:"identifier"` // usually an email address
	Token      string       `db:"token"`
	Purpose    TokenPurpose `db:"purpose"`
	ExpiresAt  time.Time    `db:"expires_at"`
	CreatedAt  time.Time    `db:"created_at"`
}

// IsExpired checks the token against the wall clock. Expiry is always checked
// at read time; background cleanup is only a storage hygiene measure.
func (t *SecurityToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
