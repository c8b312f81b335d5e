package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	digest, err := hasher.Hash("CorrectHorse9")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2a$"))

	assert.True(t, hasher.Verify("CorrectHorse9", digest))
	assert.False(t, hasher.Verify("WrongHorse9", digest))
}

func TestPasswordHasher_Hash_EmptyPassword(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	_, err := hasher.Hash("")
	assert.Error(t, err)
}

func TestPasswordHasher_Hash_DistinctDigests(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	first, err := hasher.Hash("CorrectHorse9")
	require.NoError(t, err)
	second, err := hasher.Hash("CorrectHorse9")
	require.NoError(t, err)

	// bcrypt salts each digest independently
	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("CorrectHorse9", first))
	assert.True(t, hasher.Verify("CorrectHorse9", second))
}

func TestPasswordHasher_Verify_FailureOpaque(t *testing.T) {
	hasher := NewPasswordHasher(DefaultBcryptCost)

	// Malformed digests must behave like a wrong password, not panic or
	// return a distinguishable error.
	assert.False(t, hasher.Verify("anything", "not-a-bcrypt-digest"))
	assert.False(t, hasher.Verify("anything", ""))
}

func TestNewPasswordHasher_CostClamping(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{"below minimum", 2, DefaultBcryptCost},
		{"above maximum", 40, DefaultBcryptCost},
		{"valid cost", 12, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPasswordHasher(tt.cost)
			assert.Equal(t, tt.want, h.cost)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Sturdy1Password", false},
		{"too short", "Ab1", true},
		{"missing uppercase", "lowercase1only", true},
		{"missing lowercase", "UPPERCASE1ONLY", true},
		{"missing digit", "NoDigitsHere", true},
		{"common password", "password123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
