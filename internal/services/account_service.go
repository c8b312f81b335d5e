package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/averyhollis/bastion/internal/auth"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/averyhollis/bastion/internal/ratelimit"
	pkgauth "github.com/averyhollis/bastion/pkg/auth"
	"github.com/averyhollis/bastion/pkg/logger"
)

// AccountService orchestrates the credential flows: registration, login with
// an optional second factor, email verification, and password reset. All
// security decisions happen in the leaf components; this layer sequences
// them and keeps failure responses generic.
type AccountService struct {
	userRepo   UserRepository
	tokens     *TokenService
	twoFactor  *TwoFactorService
	hasher     *pkgauth.PasswordHasher
	limiter    *ratelimit.Limiter
	email      EmailSender
	challenges *auth.ChallengeIssuer
	timing     *auth.TimingDelay
	activity   *ActivityService
	logger     *slog.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(
	userRepo UserRepository,
	tokens *TokenService,
	twoFactor *TwoFactorService,
	hasher *pkgauth.PasswordHasher,
	limiter *ratelimit.Limiter,
	email EmailSender,
	challenges *auth.ChallengeIssuer,
	timing *auth.TimingDelay,
	activity *ActivityService,
	log *slog.Logger,
) *AccountService {
	return &AccountService{
		userRepo:   userRepo,
		tokens:     tokens,
		twoFactor:  twoFactor,
		hasher:     hasher,
		limiter:    limiter,
		email:      email,
		challenges: challenges,
		timing:     timing,
		activity:   activity,
		logger:     log,
	}
}

// LoginResult is returned from the password stage of a login. When the user
// has two-factor active, User is withheld and ChallengeToken carries the
// half-authenticated state to the code stage.
type LoginResult struct {
	User              *models.User
	TwoFactorRequired bool
	ChallengeToken    string
}

// Register creates an account and dispatches the verification email. The
// rate limit is keyed by email so one address cannot be hammered from many
// sources.
func (s *AccountService) Register(ctx context.Context, email, password string, req *RequestInfo) (*models.User, error) {
	if err := s.allow(ctx, "register:"+email); err != nil {
		return nil, err
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, models.ErrBadRequest
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.userRepo.Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.sendVerification(ctx, email); err != nil {
		// The account exists; verification can be re-requested later.
		s.logger.Error("failed to send verification email",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
	}

	s.activity.Record(ctx, user.ID, models.ActivityRegister, "Account created", req, nil)

	return user, nil
}

// Login verifies the password factor. Every attempt consumes rate-limit
// budget before any credential work, so failed probes are never free. All
// credential failures collapse into ErrInvalidCredentials, and the timing
// delay flattens the difference between unknown-email and wrong-password.
func (s *AccountService) Login(ctx context.Context, email, password string, req *RequestInfo) (*LoginResult, error) {
	if err := s.allow(ctx, "login:"+email); err != nil {
		return nil, err
	}

	start := time.Now()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.timing.WaitFrom(start, false)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to fetch user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.timing.WaitFrom(start, false)
		s.logger.Warn("failed login attempt",
			slog.String("email", logger.SanitizedEmail(email)))
		return nil, models.ErrInvalidCredentials
	}

	state, err := s.twoFactor.Status(ctx, user.ID)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	if state == models.TwoFactorActive {
		challenge, err := s.challenges.Issue(user.ID)
		if err != nil {
			s.logger.Error("failed to issue challenge token", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		return &LoginResult{TwoFactorRequired: true, ChallengeToken: challenge}, nil
	}

	s.activity.Record(ctx, user.ID, models.ActivityLogin, "Signed in", req, nil)

	return &LoginResult{User: user}, nil
}

// CompleteTwoFactorLogin finishes a login whose password stage demanded a
// second factor. Code attempts are rate limited per user.
func (s *AccountService) CompleteTwoFactorLogin(ctx context.Context, challengeToken, code string, req *RequestInfo) (*models.User, error) {
	userID, err := s.challenges.Redeem(challengeToken)
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}

	if err := s.allow(ctx, "2fa:"+userID); err != nil {
		return nil, err
	}

	usedBackup, err := s.twoFactor.VerifyLoginCode(ctx, userID, code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCode) || errors.Is(err, models.ErrTwoFactorNotEnabled) {
			return nil, models.ErrInvalidCode
		}
		return nil, models.ErrInternalServer
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	method := "totp"
	if usedBackup {
		method = "backup_code"
	}
	s.activity.Record(ctx, user.ID, models.ActivityLogin, "Signed in",
		req, models.ActivityMetadata{"second_factor": method})

	return user, nil
}

// VerifyEmail redeems a verification token and marks the address verified.
// The redeem deletes the token, so a replay finds nothing.
func (s *AccountService) VerifyEmail(ctx context.Context, token string, req *RequestInfo) error {
	identifier, err := s.tokens.Redeem(ctx, token, models.TokenPurposeEmailVerification)
	if err != nil {
		return err
	}

	if err := s.userRepo.MarkEmailVerified(ctx, identifier); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		s.logger.Error("failed to mark email verified", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user, err := s.userRepo.GetByEmail(ctx, identifier); err == nil {
		s.activity.Record(ctx, user.ID, models.ActivityEmailVerified, "Email address verified", req, nil)
	}

	return nil
}

// ResendVerification issues a fresh verification token. The response is
// identical whether or not the address has an account.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	if err := s.allow(ctx, "verify:"+email); err != nil {
		return err
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return models.ErrInternalServer
	}

	return s.sendVerification(ctx, email)
}

// RequestPasswordReset issues a reset token and dispatches the email. For an
// unknown address it does the same amount of visible work and returns the
// same result, so responses reveal nothing about account existence.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string, req *RequestInfo) error {
	if err := s.allow(ctx, "reset:"+email); err != nil {
		return err
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to fetch user", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := s.tokens.Issue(ctx, email, models.TokenPurposePasswordReset)
	if err != nil {
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.tokens.config.ResetTTL)
	if err := s.email.SendPasswordResetEmail(ctx, email, token, expiresAt); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	return nil
}

// ResetPassword redeems a reset token and replaces the credential wholesale.
// The token is deleted by the redeem itself, before the new hash lands, so
// it cannot authorize a second reset.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string, req *RequestInfo) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.ErrBadRequest
	}

	identifier, err := s.tokens.Redeem(ctx, token, models.TokenPurposePasswordReset)
	if err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidToken
		}
		return models.ErrInternalServer
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.userRepo.ReplacePassword(ctx, user.ID, hash); err != nil {
		s.logger.Error("failed to replace password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.activity.Record(ctx, user.ID, models.ActivityPasswordChanged, "Password reset", req, nil)

	return nil
}

func (s *AccountService) allow(ctx context.Context, key string) error {
	res, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.logger.Error("rate limit check failed", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !res.Allowed {
		return &models.RateLimitedError{ResetAt: res.ResetAt}
	}
	return nil
}

func (s *AccountService) sendVerification(ctx context.Context, email string) error {
	token, err := s.tokens.Issue(ctx, email, models.TokenPurposeEmailVerification)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.tokens.config.VerificationTTL)
	return s.email.SendVerificationEmail(ctx, email, token, expiresAt)
}
