package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ActivityAction enumerates the known event kinds. Metadata always rides
// alongside a known action; there is no untyped catch-all event.
type ActivityAction string

const (
	ActivityLogin             ActivityAction = "login"
	ActivityLogout            ActivityAction = "logout"
	ActivityRegister          ActivityAction = "register"
	ActivityPasswordChanged   ActivityAction = "password_changed"
	ActivityTwoFactorEnabled  ActivityAction = "2fa_enabled"
	ActivityTwoFactorDisabled ActivityAction = "2fa_disabled"
	ActivityEmailVerified     ActivityAction = "email_verified"
	ActivityProfileUpdated    ActivityAction = "profile_updated"
	ActivityAccountDeleted    ActivityAction = "account_deleted"
)

// ActivityRecord is an append-only audit entry owned by the user it describes.
// Records are immutable once written and only removed via full account erasure.
type ActivityRecord struct {
	ID          string           `db:"id"`
	UserID      string           `db:"user_id"`
	Action      ActivityAction   `db:"action"`
	Description string           `db:"description"`
	IPAddress   *string          `db:"ip_address"`
	UserAgent   *string          `db:"user_agent"`
	Metadata    ActivityMetadata `db:"metadata"`
	CreatedAt   time.Time        `db:"created_at"`
}

// ActivityMetadata holds per-event context, serialized opaquely as JSONB.
type ActivityMetadata map[string]any

// Scan implements sql.Scanner for JSONB
func (m *ActivityMetadata) Scan(value any) error {
	if value == nil {
		*m = make(ActivityMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var decoded map[string]any
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		return err
	}
	*m = ActivityMetadata(decoded)
	return nil
}

// Value implements driver.Valuer for JSONB
func (m ActivityMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
