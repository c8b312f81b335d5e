package models

import "time"

// TwoFactorState is the explicit enrollment state machine:
// disabled -> pending -> active, and active -> disabled on disable.
// State is never inferred from which nullable fields happen to be set,
// which removes the partial-disable bug class entirely.
type TwoFactorState string

const (
	TwoFactorDisabled TwoFactorState = "disabled"
	TwoFactorPending  TwoFactorState = "pending"
	TwoFactorActive   TwoFactorState = "active"
)

// TwoFactorRecord holds a user's TOTP enrollment: the base32 secret, the
// hashed backup codes, and the explicit state. The secret and the codes are
// created together and erased together.
type TwoFactorRecord struct {
	UserID           string         `db:"user_id"`
	State            TwoFactorState `db:"state"`
	Secret           string         `db:"secret"` // base32-encoded, >=160 bits
	BackupCodeHashes []string       `db:"backup_code_hashes"`
	EnrolledAt       *time.Time     `db:"enrolled_at"` // set on pending -> active
	CreatedAt        time.Time      `db:"created_at"`
}

// IsActive reports whether two-factor checks must run at login.
func (r *TwoFactorRecord) IsActive() bool {
	return r != nil && r.State == TwoFactorActive
}
