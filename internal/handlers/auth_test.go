package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/averyhollis/bastion/internal/auth"
	"github.com/averyhollis/bastion/internal/middleware"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/averyhollis/bastion/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandler(t *testing.T, svc AccountServiceInterface) *AuthHandler {
	t.Helper()
	guard := auth.NewCSRFGuard(time.Hour)
	t.Cleanup(guard.Stop)
	return NewAuthHandler(svc, guard, nil, false)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAuthHandler_Register_Success(t *testing.T) {
	var gotEmail string
	svc := &MockAccountService{
		RegisterFunc: func(ctx context.Context, email, password string, req *services.RequestInfo) (*models.User, error) {
			gotEmail = email
			return &models.User{ID: "user_123", Email: email}, nil
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.Register, RegisterRequest{Email: "  New@Example.COM ", Password: "Str0ngEnough"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "new@example.com", gotEmail, "email must be normalized before the service sees it")

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user_123", resp.ID)
}

func TestAuthHandler_Register_Conflict(t *testing.T) {
	svc := &MockAccountService{
		RegisterFunc: func(ctx context.Context, email, password string, req *services.RequestInfo) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.Register, RegisterRequest{Email: "taken@example.com", Password: "Str0ngEnough"})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Register_InvalidEmail(t *testing.T) {
	h := newAuthHandler(t, &MockAccountService{})

	rec := postJSON(t, h.Register, RegisterRequest{Email: "not-an-email", Password: "Str0ngEnough"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Login_Success(t *testing.T) {
	h := newAuthHandler(t, &MockAccountService{})

	rec := postJSON(t, h.Login, LoginRequest{Email: "user@example.com", Password: "Str0ngEnough"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.TwoFactorRequired)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user_123", resp.User.ID)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &MockAccountService{
		LoginFunc: func(ctx context.Context, email, password string, req *services.RequestInfo) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.Login, LoginRequest{Email: "user@example.com", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Login_RateLimitedSetsRetryAfter(t *testing.T) {
	svc := &MockAccountService{
		LoginFunc: func(ctx context.Context, email, password string, req *services.RequestInfo) (*services.LoginResult, error) {
			return nil, &models.RateLimitedError{ResetAt: time.Now().Add(8 * time.Second)}
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.Login, LoginRequest{Email: "user@example.com", Password: "guess"})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAuthHandler_Login_TwoFactorRequired(t *testing.T) {
	svc := &MockAccountService{
		LoginFunc: func(ctx context.Context, email, password string, req *services.RequestInfo) (*services.LoginResult, error) {
			return &services.LoginResult{TwoFactorRequired: true, ChallengeToken: "challenge"}, nil
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.Login, LoginRequest{Email: "user@example.com", Password: "Str0ngEnough"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.TwoFactorRequired)
	assert.Equal(t, "challenge", resp.ChallengeToken)
	assert.Nil(t, resp.User)
}

func TestAuthHandler_CompleteTwoFactor_WrongCode(t *testing.T) {
	svc := &MockAccountService{
		CompleteTwoFactorLoginFunc: func(ctx context.Context, challengeToken, code string, req *services.RequestInfo) (*models.User, error) {
			return nil, models.ErrInvalidCode
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.CompleteTwoFactor, CompleteTwoFactorRequest{ChallengeToken: "challenge", Code: "000000"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_VerifyEmail_InvalidToken(t *testing.T) {
	svc := &MockAccountService{
		VerifyEmailFunc: func(ctx context.Context, token string, req *services.RequestInfo) error {
			return models.ErrInvalidToken
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.VerifyEmail, VerifyEmailRequest{Token: strings.Repeat("a", 64)})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_VerifyEmail_RejectsMalformedToken(t *testing.T) {
	called := false
	svc := &MockAccountService{
		VerifyEmailFunc: func(ctx context.Context, token string, req *services.RequestInfo) error {
			called = true
			return nil
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.VerifyEmail, VerifyEmailRequest{Token: "short"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called, "malformed tokens should be rejected at validation")
}

func TestAuthHandler_RequestPasswordReset_AlwaysGenericResponse(t *testing.T) {
	svc := &MockAccountService{
		RequestPasswordResetFunc: func(ctx context.Context, email string, req *services.RequestInfo) error {
			return nil
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.RequestPasswordReset, RequestPasswordResetRequest{Email: "anyone@example.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "If an account exists")
}

func TestAuthHandler_ResetPassword_WeakPassword(t *testing.T) {
	svc := &MockAccountService{
		ResetPasswordFunc: func(ctx context.Context, token, newPassword string, req *services.RequestInfo) error {
			return models.ErrBadRequest
		},
	}

	h := newAuthHandler(t, svc)

	rec := postJSON(t, h.ResetPassword, ResetPasswordRequest{Token: strings.Repeat("a", 64), NewPassword: "weak"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_CSRFToken_EstablishesSession(t *testing.T) {
	h := newAuthHandler(t, &MockAccountService{})

	req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
	rec := httptest.NewRecorder()

	h.CSRFToken(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "a session cookie must be set")
	assert.True(t, sessionCookie.HttpOnly)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp["csrf_token"], 64)
}

func TestAuthHandler_CSRFToken_StableWithinSession(t *testing.T) {
	h := newAuthHandler(t, &MockAccountService{})

	fetch := func(sessionID string) string {
		req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
		if sessionID != "" {
			req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
		}
		rec := httptest.NewRecorder()
		h.CSRFToken(rec, req)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp["csrf_token"]
	}

	first := fetch("session_abc")
	second := fetch("session_abc")
	other := fetch("session_xyz")

	assert.Equal(t, first, second, "same session gets the same token until rotation")
	assert.NotEqual(t, first, other, "tokens are per session")
}
