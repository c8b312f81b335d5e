package auth

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20 // 160 bits, base32-encoded
	totpSkew       = 1  // accept the previous and next 30s step
)

// TOTPEngine generates enrollment secrets and verifies time-based codes.
// It holds no per-user state; secrets live with the caller's storage layer.
type TOTPEngine struct {
	issuer string
}

// NewTOTPEngine creates a TOTP engine with the given issuer label for
// provisioning URIs.
func NewTOTPEngine(issuer string) *TOTPEngine {
	return &TOTPEngine{issuer: issuer}
}

// EnrollmentKey is the output of a fresh secret generation. Nothing here is
// persisted by the engine; the caller stores the secret only after the first
// code verifies.
type EnrollmentKey struct {
	Secret          string // base32-encoded secret
	ProvisioningURI string // otpauth:// URI for authenticator apps
	QRCodeDataURL   string // PNG data URL rendering of the URI
}

// GenerateSecret produces a fresh random secret bound to the account label,
// along with the standard otpauth provisioning URI (SHA1, 6 digits, 30s
// period) and a QR code rendering for setup pages.
func (e *TOTPEngine) GenerateSecret(accountLabel string) (*EnrollmentKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountLabel,
		SecretSize:  totpSecretSize,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	qrImage, err := qr.PNG(200)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &EnrollmentKey{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCodeDataURL:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrImage),
	}, nil
}

// VerifyCode checks a user-supplied code against the secret at the current
// time step, tolerating one step of clock drift on either side. Malformed
// codes simply fail verification.
func (e *TOTPEngine) VerifyCode(secret, code string) bool {
	return e.VerifyCodeAt(secret, code, time.Now())
}

// VerifyCodeAt is VerifyCode with an explicit reference time.
func (e *TOTPEngine) VerifyCodeAt(secret, code string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}
