package services

import (
	"context"
	"testing"
	"time"

	"github.com/averyhollis/bastion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_Issue_Success(t *testing.T) {
	var created *models.SecurityToken
	var invalidated bool

	mockRepo := &MockTokenRepository{
		DeleteByIdentifierPurposeFunc: func(ctx context.Context, identifier string, purpose models.TokenPurpose) error {
			invalidated = true
			assert.Equal(t, "user@example.com", identifier)
			return nil
		},
		CreateFunc: func(ctx context.Context, token *models.SecurityToken) error {
			created = token
			return nil
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	token, err := svc.Issue(context.Background(), "user@example.com", models.TokenPurposeEmailVerification)

	require.NoError(t, err)
	assert.Len(t, token, 64, "token should be 32 bytes hex encoded")
	assert.True(t, invalidated, "previous tokens should be invalidated first")
	require.NotNil(t, created)
	assert.Equal(t, token, created.Token)
	assert.Equal(t, models.TokenPurposeEmailVerification, created.Purpose)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), created.ExpiresAt, time.Minute)
}

func TestTokenService_Issue_ResetUsesShorterTTL(t *testing.T) {
	var created *models.SecurityToken
	mockRepo := &MockTokenRepository{
		CreateFunc: func(ctx context.Context, token *models.SecurityToken) error {
			created = token
			return nil
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	_, err := svc.Issue(context.Background(), "user@example.com", models.TokenPurposePasswordReset)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.WithinDuration(t, time.Now().Add(time.Hour), created.ExpiresAt, time.Minute)
}

func TestTokenService_Issue_UniqueTokens(t *testing.T) {
	mockRepo := &MockTokenRepository{}
	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := svc.Issue(context.Background(), "user@example.com", models.TokenPurposePasswordReset)
		require.NoError(t, err)
		assert.False(t, seen[token], "tokens must not repeat")
		seen[token] = true
	}
}

func TestTokenService_Issue_InvalidPurpose(t *testing.T) {
	svc := NewTokenService(&MockTokenRepository{}, DefaultTokenConfig(), testLogger())

	_, err := svc.Issue(context.Background(), "user@example.com", models.TokenPurpose("session"))

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestTokenService_Redeem_Success(t *testing.T) {
	mockRepo := &MockTokenRepository{
		RedeemAndDeleteFunc: func(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error) {
			assert.Equal(t, models.TokenPurposePasswordReset, purpose)
			return &models.SecurityToken{
				Identifier: "user@example.com",
				Token:      token,
				Purpose:    purpose,
				ExpiresAt:  time.Now().Add(time.Hour),
			}, nil
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	identifier, err := svc.Redeem(context.Background(), "sometoken", models.TokenPurposePasswordReset)

	require.NoError(t, err)
	assert.Equal(t, "user@example.com", identifier)
}

func TestTokenService_Redeem_UnknownToken(t *testing.T) {
	mockRepo := &MockTokenRepository{
		RedeemAndDeleteFunc: func(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error) {
			return nil, models.ErrNotFound
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	_, err := svc.Redeem(context.Background(), "bogus", models.TokenPurposePasswordReset)

	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenService_Redeem_EmptyToken(t *testing.T) {
	called := false
	mockRepo := &MockTokenRepository{
		RedeemAndDeleteFunc: func(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error) {
			called = true
			return nil, models.ErrNotFound
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	_, err := svc.Redeem(context.Background(), "", models.TokenPurposeEmailVerification)

	assert.ErrorIs(t, err, models.ErrInvalidToken)
	assert.False(t, called, "empty token should be rejected before hitting storage")
}

func TestTokenService_Redeem_SingleUse(t *testing.T) {
	// Simulates the DELETE ... RETURNING semantics: the first redeem removes
	// the row, the second finds nothing.
	store := map[string]*models.SecurityToken{
		"tok": {Identifier: "user@example.com", Token: "tok", Purpose: models.TokenPurposePasswordReset, ExpiresAt: time.Now().Add(time.Hour)},
	}
	mockRepo := &MockTokenRepository{
		RedeemAndDeleteFunc: func(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error) {
			rec, ok := store[token]
			if !ok || rec.Purpose != purpose {
				return nil, models.ErrNotFound
			}
			delete(store, token)
			return rec, nil
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	_, err := svc.Redeem(context.Background(), "tok", models.TokenPurposePasswordReset)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "tok", models.TokenPurposePasswordReset)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestTokenService_CleanupExpired(t *testing.T) {
	mockRepo := &MockTokenRepository{
		DeleteExpiredFunc: func(ctx context.Context) (int64, error) {
			return 7, nil
		},
	}

	svc := NewTokenService(mockRepo, DefaultTokenConfig(), testLogger())

	removed, err := svc.CleanupExpired(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}
