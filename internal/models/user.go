package models

import "time"

// User is the identity record owning every other entity in the security core.
// Only security-relevant fields live here; profile data is an external concern.
type User struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password_hash"`
	EmailVerified     bool       `db:"email_verified"`
	PasswordChangedAt *time.Time `db:"password_changed_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}
