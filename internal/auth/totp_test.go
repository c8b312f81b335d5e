package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPEngine_GenerateSecret(t *testing.T) {
	engine := NewTOTPEngine("Bastion")

	key, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	// 20 random bytes base32-encode to 32 characters
	assert.Len(t, key.Secret, 32)
	assert.True(t, strings.HasPrefix(key.ProvisioningURI, "otpauth://totp/"))
	assert.Contains(t, key.ProvisioningURI, "issuer=Bastion")
	assert.Contains(t, key.ProvisioningURI, "user@example.com")
	assert.True(t, strings.HasPrefix(key.QRCodeDataURL, "data:image/png;base64,"))
}

func TestTOTPEngine_GenerateSecret_Unique(t *testing.T) {
	engine := NewTOTPEngine("Bastion")

	first, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)
	second, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.Secret, second.Secret)
}

func TestTOTPEngine_VerifyCode_CurrentStep(t *testing.T) {
	engine := NewTOTPEngine("Bastion")

	key, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	now := time.Now()
	code, err := totp.GenerateCode(key.Secret, now)
	require.NoError(t, err)

	assert.True(t, engine.VerifyCodeAt(key.Secret, code, now))
}

func TestTOTPEngine_VerifyCode_ClockSkewWindow(t *testing.T) {
	engine := NewTOTPEngine("Bastion")

	key, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	// Pin the reference time to the middle of a 30s step so the +-29s probes
	// stay within exactly one step of drift.
	ref := time.Unix((time.Now().Unix()/30)*30+15, 0)
	code, err := totp.GenerateCode(key.Secret, ref)
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"29s early", -29 * time.Second, true},
		{"29s late", 29 * time.Second, true},
		{"61s early", -61 * time.Second, false},
		{"61s late", 61 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.VerifyCodeAt(key.Secret, code, ref.Add(tt.offset)))
		})
	}
}

func TestTOTPEngine_VerifyCode_Invalid(t *testing.T) {
	engine := NewTOTPEngine("Bastion")

	key, err := engine.GenerateSecret("user@example.com")
	require.NoError(t, err)

	assert.False(t, engine.VerifyCode(key.Secret, "000000"))
	assert.False(t, engine.VerifyCode(key.Secret, ""))
	assert.False(t, engine.VerifyCode(key.Secret, "not-a-code"))
	assert.False(t, engine.VerifyCode("", "123456"))
}
