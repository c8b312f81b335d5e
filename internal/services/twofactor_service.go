package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/averyhollis/bastion/internal/auth"
	"github.com/averyhollis/bastion/internal/models"
	pkgauth "github.com/averyhollis/bastion/pkg/auth"
)

// TwoFactorRepository defines the interface for enrollment storage
type TwoFactorRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.TwoFactorRecord, error)
	UpsertPending(ctx context.Context, record *models.TwoFactorRecord) error
	Activate(ctx context.Context, userID string, enrolledAt time.Time) error
	ConsumeBackupCode(ctx context.Context, userID string, expectedCount int, remaining []string) error
	Delete(ctx context.Context, userID string) error
}

// UserRepository defines the interface for credential storage
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	ReplacePassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, email string) error
}

// TwoFactorService drives the enrollment state machine
// (disabled -> pending -> active -> disabled) and verifies second factors at
// login time.
type TwoFactorService struct {
	repo            TwoFactorRepository
	userRepo        UserRepository
	engine          *auth.TOTPEngine
	hasher          *pkgauth.PasswordHasher
	activity        *ActivityService
	logger          *slog.Logger
	backupCodeCount int
}

// NewTwoFactorService creates a new TwoFactorService
func NewTwoFactorService(
	repo TwoFactorRepository,
	userRepo UserRepository,
	engine *auth.TOTPEngine,
	hasher *pkgauth.PasswordHasher,
	activity *ActivityService,
	logger *slog.Logger,
	backupCodeCount int,
) *TwoFactorService {
	if backupCodeCount <= 0 {
		backupCodeCount = auth.DefaultBackupCodeCount
	}
	return &TwoFactorService{
		repo:            repo,
		userRepo:        userRepo,
		engine:          engine,
		hasher:          hasher,
		activity:        activity,
		logger:          logger,
		backupCodeCount: backupCodeCount,
	}
}

// SetupInfo is returned once at setup time. The plaintext backup codes are
// never stored or logged; this is the only place the user ever sees them.
type SetupInfo struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
	BackupCodes     []string
}

// BeginSetup generates a fresh secret and backup codes and stores them as a
// pending enrollment. The enrollment activates only after the first code
// verifies; abandoning setup leaves two-factor off.
func (s *TwoFactorService) BeginSetup(ctx context.Context, userID string) (*SetupInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to load enrollment", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if existing.IsActive() {
		return nil, models.ErrTwoFactorAlreadyEnabled
	}

	key, err := s.engine.GenerateSecret(user.Email)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	codes, err := auth.GenerateBackupCodes(s.backupCodeCount)
	if err != nil {
		s.logger.Error("failed to generate backup codes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	record := &models.TwoFactorRecord{
		UserID:           userID,
		State:            models.TwoFactorPending,
		Secret:           key.Secret,
		BackupCodeHashes: codes.HashedCodes,
	}

	if err := s.repo.UpsertPending(ctx, record); err != nil {
		s.logger.Error("failed to store pending enrollment", slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("two-factor setup initiated", slog.String("user_id", userID))

	return &SetupInfo{
		Secret:          key.Secret,
		ProvisioningURI: key.ProvisioningURI,
		QRCodeDataURL:   key.QRCodeDataURL,
		BackupCodes:     codes.PlainCodes,
	}, nil
}

// ConfirmSetup verifies the first code against the pending secret and
// transitions the enrollment to active.
func (s *TwoFactorService) ConfirmSetup(ctx context.Context, userID, code string) error {
	record, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrTwoFactorNotPending
		}
		return models.ErrInternalServer
	}

	if record.State != models.TwoFactorPending {
		return models.ErrTwoFactorNotPending
	}

	if !s.engine.VerifyCode(record.Secret, code) {
		s.logger.Warn("invalid code during two-factor setup", slog.String("user_id", userID))
		return models.ErrInvalidCode
	}

	if err := s.repo.Activate(ctx, userID, time.Now()); err != nil {
		return err
	}

	s.activity.Record(ctx, userID, models.ActivityTwoFactorEnabled, "Two-factor authentication enabled", nil, nil)
	s.logger.Info("two-factor enabled", slog.String("user_id", userID))

	return nil
}

// VerifyLoginCode checks a second-factor code at login: the TOTP path first,
// then the backup-code path. A backup-code match is consumed exactly once;
// losing the update race on the same code means another request already
// consumed it, and the attempt is retried against fresh state before failing.
// Returns whether a backup code was used.
func (s *TwoFactorService) VerifyLoginCode(ctx context.Context, userID, code string) (bool, error) {
	const maxRaceRetries = 2

	for attempt := 0; attempt < maxRaceRetries; attempt++ {
		record, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return false, models.ErrTwoFactorNotEnabled
			}
			return false, models.ErrInternalServer
		}

		if !record.IsActive() {
			return false, models.ErrTwoFactorNotEnabled
		}

		if s.engine.VerifyCode(record.Secret, code) {
			return false, nil
		}

		valid, remaining := auth.ConsumeBackupCode(code, record.BackupCodeHashes)
		if !valid {
			return false, models.ErrInvalidCode
		}

		err = s.repo.ConsumeBackupCode(ctx, userID, len(record.BackupCodeHashes), remaining)
		if err == nil {
			s.logger.Info("backup code consumed",
				slog.String("user_id", userID),
				slog.Int("remaining", len(remaining)))
			return true, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return false, models.ErrInternalServer
		}
		// Concurrent consumption changed the set; re-read and retry once.
	}

	return false, models.ErrInvalidCode
}

// Disable re-verifies the password and a current code, then erases the
// secret and the backup codes together. Enabled and disabled are the only
// reachable end states; a partial disable cannot exist.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password, code string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.ErrInvalidCredentials
	}

	if _, err := s.VerifyLoginCode(ctx, userID, code); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to delete enrollment", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.activity.Record(ctx, userID, models.ActivityTwoFactorDisabled, "Two-factor authentication disabled", nil, nil)
	s.logger.Info("two-factor disabled", slog.String("user_id", userID))

	return nil
}

// Status reports the enrollment state for a user.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (models.TwoFactorState, error) {
	record, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.TwoFactorDisabled, nil
		}
		return models.TwoFactorDisabled, models.ErrInternalServer
	}

	return record.State, nil
}
