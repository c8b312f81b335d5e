package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/averyhollis/bastion/internal/models"
)

const tokenBytes = 32 // 256 bits, hex-encoded

// TokenRepository defines the interface for security token storage
type TokenRepository interface {
	Create(ctx context.Context, token *models.SecurityToken) error
	RedeemAndDelete(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error)
	DeleteByIdentifierPurpose(ctx context.Context, identifier string, purpose models.TokenPurpose) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenConfig holds the per-purpose TTLs.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// DefaultTokenConfig mirrors the standard policy: verification tokens live
// 24 hours, reset tokens 1 hour.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}
}

// TokenService issues and redeems single-use, expiring, purpose-scoped
// tokens. It is identifier-agnostic: anti-enumeration behavior is the
// caller's responsibility.
type TokenService struct {
	repo   TokenRepository
	config TokenConfig
	logger *slog.Logger
}

// NewTokenService creates a new TokenService
func NewTokenService(repo TokenRepository, config TokenConfig, logger *slog.Logger) *TokenService {
	return &TokenService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Issue generates fresh random token material for the identifier+purpose
// pair and stores it with the purpose's TTL. Prior outstanding tokens of the
// same purpose are invalidated first so only one live token exists per pair.
func (s *TokenService) Issue(ctx context.Context, identifier string, purpose models.TokenPurpose) (string, error) {
	if identifier == "" || !purpose.Valid() {
		return "", models.ErrBadRequest
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		s.logger.Error("failed to generate token material", slog.Any("error", err))
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := s.repo.DeleteByIdentifierPurpose(ctx, identifier, purpose); err != nil {
		return "", fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	record := &models.SecurityToken{
		Identifier: identifier,
		Token:      token,
		Purpose:    purpose,
		ExpiresAt:  time.Now().Add(s.ttlFor(purpose)),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.Info("security token issued",
		slog.String("purpose", string(purpose)),
		slog.Time("expires_at", record.ExpiresAt))

	return token, nil
}

// Redeem looks the token up by value and purpose and deletes it in the same
// storage operation, so a token can authorize at most one effect. Absent,
// expired, and wrong-purpose tokens all fail with the same generic error.
func (s *TokenService) Redeem(ctx context.Context, token string, purpose models.TokenPurpose) (string, error) {
	if token == "" || !purpose.Valid() {
		return "", models.ErrInvalidToken
	}

	record, err := s.repo.RedeemAndDelete(ctx, token, purpose)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("token redemption rejected", slog.String("purpose", string(purpose)))
			return "", models.ErrInvalidToken
		}
		s.logger.Error("failed to redeem token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	return record.Identifier, nil
}

// CleanupExpired purges expired token rows; invoked by the background
// cleanup task.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to cleanup expired tokens", slog.Any("error", err))
		return 0, err
	}

	if count > 0 {
		s.logger.Info("expired tokens removed", slog.Int64("count", count))
	}

	return count, nil
}

func (s *TokenService) ttlFor(purpose models.TokenPurpose) time.Duration {
	if purpose == models.TokenPurposePasswordReset {
		return s.config.ResetTTL
	}
	return s.config.VerificationTTL
}
