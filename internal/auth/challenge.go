package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultChallengeTTL bounds the gap between the password stage of a login
// and the second-factor stage.
const DefaultChallengeTTL = 5 * time.Minute

// ChallengeIssuer mints short-lived tokens that carry a half-authenticated
// login across the gap between password verification and the second factor.
// A challenge token grants nothing except the right to present a code.
type ChallengeIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewChallengeIssuer creates an issuer signing with the given HMAC secret.
func NewChallengeIssuer(secret string, ttl time.Duration) *ChallengeIssuer {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeIssuer{secret: []byte(secret), ttl: ttl}
}

type challengeClaims struct {
	jwt.RegisteredClaims
	Stage string `json:"stage"`
}

// Issue returns a signed challenge token for the user.
func (c *ChallengeIssuer) Issue(userID string) (string, error) {
	now := time.Now()
	claims := challengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Stage: "two_factor",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}

	return signed, nil
}

// Redeem validates a challenge token and returns the user ID it covers.
func (c *ChallengeIssuer) Redeem(tokenString string) (string, error) {
	var claims challengeClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid challenge token")
	}

	if claims.Stage != "two_factor" || claims.Subject == "" {
		return "", fmt.Errorf("invalid challenge token")
	}

	return claims.Subject, nil
}
