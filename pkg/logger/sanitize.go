package logger

import "strings"

// SanitizedEmail masks the local part of an address so logs can correlate
// events for a user without storing the full address. "averyh@example.com"
// becomes "a*****@example.com".
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "[redacted]"
	}

	local, domain := email[:at], email[at:]
	if len(local) == 1 {
		return "*" + domain
	}

	return local[:1] + strings.Repeat("*", len(local)-1) + domain
}

// QueryHasSecrets reports whether a raw query string carries parameters
// that must never appear in logs.
func QueryHasSecrets(rawQuery string) bool {
	lower := strings.ToLower(rawQuery)
	for _, param := range []string{"token", "code", "password", "secret"} {
		if strings.Contains(lower, param+"=") {
			return true
		}
	}
	return false
}

// SanitizedToken keeps only a short prefix of a secret value, enough to
// match against a database row during an investigation.
func SanitizedToken(token string) string {
	if len(token) <= 8 {
		return "[redacted]"
	}
	return token[:8] + "..."
}
