package auth

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T, ttl time.Duration) *CSRFGuard {
	t.Helper()
	guard := NewCSRFGuard(ttl)
	t.Cleanup(guard.Stop)
	return guard
}

func TestCSRFGuard_IssueAndVerify(t *testing.T) {
	guard := newGuard(t, 24 * time.Hour)

	token, err := guard.IssueToken("session-1")
	require.NoError(t, err)
	assert.Len(t, token, 64) // 32 bytes hex-encoded

	assert.True(t, guard.VerifyToken("session-1", token))
}

func TestCSRFGuard_IssueToken_StableWithinTTL(t *testing.T) {
	guard := newGuard(t, 24 * time.Hour)

	first, err := guard.IssueToken("session-1")
	require.NoError(t, err)
	second, err := guard.IssueToken("session-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCSRFGuard_VerifyToken_FailsClosed(t *testing.T) {
	guard := newGuard(t, 24 * time.Hour)

	// No token issued for this session
	assert.False(t, guard.VerifyToken("session-1", "anything"))
	assert.False(t, guard.VerifyToken("session-1", ""))
}

func TestCSRFGuard_VerifyToken_TamperedToken(t *testing.T) {
	guard := newGuard(t, 24 * time.Hour)

	token, err := guard.IssueToken("session-1")
	require.NoError(t, err)

	// Same length, wrong bytes
	tampered := []byte(token)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	assert.False(t, guard.VerifyToken("session-1", string(tampered)))

	// Wrong session
	assert.False(t, guard.VerifyToken("session-2", token))
}

func TestCSRFGuard_VerifyToken_Expired(t *testing.T) {
	guard := newGuard(t, -time.Second)

	token, err := guard.IssueToken("session-1")
	require.NoError(t, err)

	assert.False(t, guard.VerifyToken("session-1", token))
}

func TestCSRFGuard_RevokeToken(t *testing.T) {
	guard := newGuard(t, 24 * time.Hour)

	token, err := guard.IssueToken("session-1")
	require.NoError(t, err)

	guard.RevokeToken("session-1")
	assert.False(t, guard.VerifyToken("session-1", token))
}

func TestCSRFGuard_StopEndsCleanupSweep(t *testing.T) {
	before := runtime.NumGoroutine()

	guard := NewCSRFGuard(24 * time.Hour)
	token, err := guard.IssueToken("session-1")
	require.NoError(t, err)

	guard.Stop()
	guard.Stop() // idempotent

	// The guard stays usable after Stop; only the sweep goroutine ends.
	assert.True(t, guard.VerifyToken("session-1", token))

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}

func TestVerifyOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin header passes", "", "example.com", true},
		{"matching host", "https://example.com", "example.com", true},
		{"matching host with port", "https://example.com:8443", "example.com:8443", true},
		{"different host", "https://evil.com", "example.com", false},
		{"subdomain mismatch", "https://sub.example.com", "example.com", false},
		{"port mismatch", "https://example.com:8080", "example.com", false},
		{"garbage origin", "://not-a-url", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyOrigin(tt.origin, tt.host))
		})
	}
}
