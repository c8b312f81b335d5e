package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/averyhollis/bastion/internal/middleware"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/averyhollis/bastion/internal/services"
	pkghttp "github.com/averyhollis/bastion/pkg/http"
)

// TwoFactorServiceInterface defines the enrollment operations
type TwoFactorServiceInterface interface {
	BeginSetup(ctx context.Context, userID string) (*services.SetupInfo, error)
	ConfirmSetup(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, password, code string) error
	Status(ctx context.Context, userID string) (models.TwoFactorState, error)
}

// ActivityServiceInterface defines the audit-trail read surface
type ActivityServiceInterface interface {
	Trail(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error)
}

// TwoFactorHandler handles the authenticated two-factor management surface
type TwoFactorHandler struct {
	service  TwoFactorServiceInterface
	activity ActivityServiceInterface
}

// NewTwoFactorHandler creates a new TwoFactorHandler
func NewTwoFactorHandler(service TwoFactorServiceInterface, activity ActivityServiceInterface) *TwoFactorHandler {
	return &TwoFactorHandler{
		service:  service,
		activity: activity,
	}
}

type ConfirmSetupRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type DisableRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required,min=6,max=8"`
}

type SetupResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCodeDataURL   string   `json:"qr_code"`
	BackupCodes     []string `json:"backup_codes"`
}

type StatusResponse struct {
	State string `json:"state"`
}

type ActivityEntryResponse struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	IPAddress   string         `json:"ip_address,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// BeginSetup starts enrollment and returns the secret, QR code, and backup
// codes. The backup codes appear here once and are never retrievable again.
func (h *TwoFactorHandler) BeginSetup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	info, err := h.service.BeginSetup(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTwoFactorAlreadyEnabled):
			pkghttp.WriteConflict(w, "Two-factor authentication is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SetupResponse{
		Secret:          info.Secret,
		ProvisioningURI: info.ProvisioningURI,
		QRCodeDataURL:   info.QRCodeDataURL,
		BackupCodes:     info.BackupCodes,
	})
}

// ConfirmSetup verifies the first code and activates the enrollment
func (h *TwoFactorHandler) ConfirmSetup(w http.ResponseWriter, r *http.Request) {
	var req ConfirmSetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	if err := h.service.ConfirmSetup(r.Context(), userID, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrTwoFactorNotPending):
			pkghttp.WriteConflict(w, "No two-factor setup in progress")
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteBadRequest(w, "Invalid verification code")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{State: string(models.TwoFactorActive)})
}

// Disable turns two-factor off after re-verifying the password and a code
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	var req DisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	if err := h.service.Disable(r.Context(), userID, req.Password, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteUnauthorized(w, "Verification failed")
		case errors.Is(err, models.ErrTwoFactorNotEnabled):
			pkghttp.WriteConflict(w, "Two-factor authentication is not enabled")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{State: string(models.TwoFactorDisabled)})
}

// Status reports the caller's enrollment state
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	state, err := h.service.Status(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{State: string(state)})
}

// ActivityTrail returns a page of the caller's account activity
func (h *TwoFactorHandler) ActivityTrail(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.activity.Trail(r.Context(), userID, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	entries := make([]ActivityEntryResponse, 0, len(records))
	for _, rec := range records {
		entry := ActivityEntryResponse{
			Action:      string(rec.Action),
			Description: rec.Description,
			Metadata:    rec.Metadata,
			CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
		}
		if rec.IPAddress != nil {
			entry.IPAddress = *rec.IPAddress
		}
		entries = append(entries, entry)
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
