package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/averyhollis/bastion/internal/models"
	pkgauth "github.com/averyhollis/bastion/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// Mock implementations used across the service tests. Each method delegates
// to an optional func field so individual tests stub only what they need.

type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	ReplacePasswordFunc   func(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerifiedFunc func(ctx context.Context, email string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return user, nil
}

func (m *MockUserRepository) ReplacePassword(ctx context.Context, userID, passwordHash string) error {
	if m.ReplacePasswordFunc != nil {
		return m.ReplacePasswordFunc(ctx, userID, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, email string) error {
	if m.MarkEmailVerifiedFunc != nil {
		return m.MarkEmailVerifiedFunc(ctx, email)
	}
	return nil
}

type MockTokenRepository struct {
	CreateFunc                    func(ctx context.Context, token *models.SecurityToken) error
	RedeemAndDeleteFunc           func(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error)
	DeleteByIdentifierPurposeFunc func(ctx context.Context, identifier string, purpose models.TokenPurpose) error
	DeleteExpiredFunc             func(ctx context.Context) (int64, error)
}

func (m *MockTokenRepository) Create(ctx context.Context, token *models.SecurityToken) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, token)
	}
	return nil
}

func (m *MockTokenRepository) RedeemAndDelete(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error) {
	if m.RedeemAndDeleteFunc != nil {
		return m.RedeemAndDeleteFunc(ctx, token, purpose)
	}
	return nil, models.ErrNotFound
}

func (m *MockTokenRepository) DeleteByIdentifierPurpose(ctx context.Context, identifier string, purpose models.TokenPurpose) error {
	if m.DeleteByIdentifierPurposeFunc != nil {
		return m.DeleteByIdentifierPurposeFunc(ctx, identifier, purpose)
	}
	return nil
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	return 0, nil
}

type MockTwoFactorRepository struct {
	GetByUserIDFunc       func(ctx context.Context, userID string) (*models.TwoFactorRecord, error)
	UpsertPendingFunc     func(ctx context.Context, record *models.TwoFactorRecord) error
	ActivateFunc          func(ctx context.Context, userID string, enrolledAt time.Time) error
	ConsumeBackupCodeFunc func(ctx context.Context, userID string, expectedCount int, remaining []string) error
	DeleteFunc            func(ctx context.Context, userID string) error
}

func (m *MockTwoFactorRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorRecord, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTwoFactorRepository) UpsertPending(ctx context.Context, record *models.TwoFactorRecord) error {
	if m.UpsertPendingFunc != nil {
		return m.UpsertPendingFunc(ctx, record)
	}
	return nil
}

func (m *MockTwoFactorRepository) Activate(ctx context.Context, userID string, enrolledAt time.Time) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, userID, enrolledAt)
	}
	return nil
}

func (m *MockTwoFactorRepository) ConsumeBackupCode(ctx context.Context, userID string, expectedCount int, remaining []string) error {
	if m.ConsumeBackupCodeFunc != nil {
		return m.ConsumeBackupCodeFunc(ctx, userID, expectedCount, remaining)
	}
	return nil
}

func (m *MockTwoFactorRepository) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

type MockActivityRepository struct {
	CreateFunc         func(ctx context.Context, record *models.ActivityRecord) error
	ListByUserIDFunc   func(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error)
	DeleteByUserIDFunc func(ctx context.Context, userID string) error
}

func (m *MockActivityRepository) Create(ctx context.Context, record *models.ActivityRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return nil
}

func (m *MockActivityRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}

func (m *MockActivityRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return nil
}

type MockEmailSender struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailSender) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockEmailSender) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pkgAuthHasher returns a hasher at bcrypt's minimum cost so tests stay fast.
func pkgAuthHasher() *pkgauth.PasswordHasher {
	return pkgauth.NewPasswordHasher(bcrypt.MinCost)
}
