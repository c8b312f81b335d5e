package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/averyhollis/bastion/internal/auth"
	"github.com/averyhollis/bastion/internal/middleware"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/averyhollis/bastion/internal/services"
	pkghttp "github.com/averyhollis/bastion/pkg/http"
	"github.com/google/uuid"
)

// AccountServiceInterface defines the credential flows the handler exposes
type AccountServiceInterface interface {
	Register(ctx context.Context, email, password string, req *services.RequestInfo) (*models.User, error)
	Login(ctx context.Context, email, password string, req *services.RequestInfo) (*services.LoginResult, error)
	CompleteTwoFactorLogin(ctx context.Context, challengeToken, code string, req *services.RequestInfo) (*models.User, error)
	VerifyEmail(ctx context.Context, token string, req *services.RequestInfo) error
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string, req *services.RequestInfo) error
	ResetPassword(ctx context.Context, token, newPassword string, req *services.RequestInfo) error
}

// AuthHandler handles the unauthenticated account surface
type AuthHandler struct {
	service   AccountServiceInterface
	csrfGuard *auth.CSRFGuard
	ipConfig  *pkghttp.IPConfig
	secure    bool
}

// NewAuthHandler creates a new AuthHandler. secure controls the cookie
// Secure flag and should be true outside development.
func NewAuthHandler(service AccountServiceInterface, csrfGuard *auth.CSRFGuard, ipConfig *pkghttp.IPConfig, secure bool) *AuthHandler {
	return &AuthHandler{
		service:   service,
		csrfGuard: csrfGuard,
		ipConfig:  ipConfig,
		secure:    secure,
	}
}

// Request DTOs

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CompleteTwoFactorRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,min=6,max=8"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,len=64"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type RequestPasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,len=64"`
	NewPassword string `json:"new_password" validate:"required"`
}

// Response DTOs

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type LoginResponse struct {
	TwoFactorRequired bool          `json:"two_factor_required"`
	ChallengeToken    string        `json:"challenge_token,omitempty"`
	User              *UserResponse `json:"user,omitempty"`
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = normalizeEmail(req.Email)

	user, err := h.service.Register(r.Context(), req.Email, req.Password, h.requestInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with this email already exists")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
		default:
			h.writeCommonError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles the password stage of authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = normalizeEmail(req.Email)

	result, err := h.service.Login(r.Context(), req.Email, req.Password, h.requestInfo(r))
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		h.writeCommonError(w, err)
		return
	}

	resp := LoginResponse{
		TwoFactorRequired: result.TwoFactorRequired,
		ChallengeToken:    result.ChallengeToken,
	}
	if result.User != nil {
		resp.User = toUserResponse(result.User)
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// CompleteTwoFactor handles the code stage of a two-factor login
func (h *AuthHandler) CompleteTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req CompleteTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.CompleteTwoFactorLogin(r.Context(), req.ChallengeToken, req.Code, h.requestInfo(r))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			h.writeCommonError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{User: toUserResponse(user)})
}

// VerifyEmail redeems an email verification token
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token, h.requestInfo(r)); err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			pkghttp.WriteBadRequest(w, "Invalid or expired verification link")
			return
		}
		h.writeCommonError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// ResendVerification issues a fresh verification email
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResendVerification(r.Context(), normalizeEmail(req.Email)); err != nil {
		h.writeCommonError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// RequestPasswordReset starts the reset flow. The response never reveals
// whether the address has an account.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), normalizeEmail(req.Email), h.requestInfo(r)); err != nil {
		h.writeCommonError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "If an account exists for this address, a reset email has been sent",
	})
}

// ResetPassword redeems a reset token and sets the new password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword, h.requestInfo(r)); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidToken):
			pkghttp.WriteBadRequest(w, "Invalid or expired reset link")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password does not meet requirements")
		default:
			h.writeCommonError(w, err)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

// CSRFToken establishes a session cookie when absent and returns the CSRF
// token bound to it. Clients echo the token in the X-CSRF-Token header on
// every state-changing request.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessionID = cookie.Value
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    sessionID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	token, err := h.csrfGuard.IssueToken(sessionID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *AuthHandler) requestInfo(r *http.Request) *services.RequestInfo {
	return &services.RequestInfo{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// writeCommonError maps the errors every endpoint can surface.
func (h *AuthHandler) writeCommonError(w http.ResponseWriter, err error) {
	var limited *models.RateLimitedError
	if errors.As(err, &limited) {
		pkghttp.WriteRateLimited(w, limited.RetryAfter())
		return
	}
	if errors.Is(err, models.ErrRateLimited) {
		pkghttp.WriteRateLimited(w, 0)
		return
	}
	pkghttp.WriteInternalError(w, "Internal server error")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
	}
}
