package handlers

import (
	"context"

	"github.com/averyhollis/bastion/internal/models"
	"github.com/averyhollis/bastion/internal/services"
)

// Mock services for handler tests, func-field style.

type MockAccountService struct {
	RegisterFunc               func(ctx context.Context, email, password string, req *services.RequestInfo) (*models.User, error)
	LoginFunc                  func(ctx context.Context, email, password string, req *services.RequestInfo) (*services.LoginResult, error)
	CompleteTwoFactorLoginFunc func(ctx context.Context, challengeToken, code string, req *services.RequestInfo) (*models.User, error)
	VerifyEmailFunc            func(ctx context.Context, token string, req *services.RequestInfo) error
	ResendVerificationFunc     func(ctx context.Context, email string) error
	RequestPasswordResetFunc   func(ctx context.Context, email string, req *services.RequestInfo) error
	ResetPasswordFunc          func(ctx context.Context, token, newPassword string, req *services.RequestInfo) error
}

func (m *MockAccountService) Register(ctx context.Context, email, password string, req *services.RequestInfo) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password, req)
	}
	return &models.User{ID: "user_123", Email: email}, nil
}

func (m *MockAccountService) Login(ctx context.Context, email, password string, req *services.RequestInfo) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, req)
	}
	return &services.LoginResult{User: &models.User{ID: "user_123", Email: email}}, nil
}

func (m *MockAccountService) CompleteTwoFactorLogin(ctx context.Context, challengeToken, code string, req *services.RequestInfo) (*models.User, error) {
	if m.CompleteTwoFactorLoginFunc != nil {
		return m.CompleteTwoFactorLoginFunc(ctx, challengeToken, code, req)
	}
	return &models.User{ID: "user_123"}, nil
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, token string, req *services.RequestInfo) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token, req)
	}
	return nil
}

func (m *MockAccountService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockAccountService) RequestPasswordReset(ctx context.Context, email string, req *services.RequestInfo) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email, req)
	}
	return nil
}

func (m *MockAccountService) ResetPassword(ctx context.Context, token, newPassword string, req *services.RequestInfo) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword, req)
	}
	return nil
}

type MockTwoFactorService struct {
	BeginSetupFunc   func(ctx context.Context, userID string) (*services.SetupInfo, error)
	ConfirmSetupFunc func(ctx context.Context, userID, code string) error
	DisableFunc      func(ctx context.Context, userID, password, code string) error
	StatusFunc       func(ctx context.Context, userID string) (models.TwoFactorState, error)
}

func (m *MockTwoFactorService) BeginSetup(ctx context.Context, userID string) (*services.SetupInfo, error) {
	if m.BeginSetupFunc != nil {
		return m.BeginSetupFunc(ctx, userID)
	}
	return &services.SetupInfo{}, nil
}

func (m *MockTwoFactorService) ConfirmSetup(ctx context.Context, userID, code string) error {
	if m.ConfirmSetupFunc != nil {
		return m.ConfirmSetupFunc(ctx, userID, code)
	}
	return nil
}

func (m *MockTwoFactorService) Disable(ctx context.Context, userID, password, code string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, userID, password, code)
	}
	return nil
}

func (m *MockTwoFactorService) Status(ctx context.Context, userID string) (models.TwoFactorState, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return models.TwoFactorDisabled, nil
}

type MockActivityReader struct {
	TrailFunc func(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error)
}

func (m *MockActivityReader) Trail(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error) {
	if m.TrailFunc != nil {
		return m.TrailFunc(ctx, userID, limit, offset)
	}
	return nil, nil
}
