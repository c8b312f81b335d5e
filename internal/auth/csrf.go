package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sync"
	"time"
)

const csrfTokenBytes = 32 // 256 bits

// csrfEntry stores a server-held token copy and its rotation deadline.
type csrfEntry struct {
	token  string
	expiry time.Time
}

// CSRFGuard implements the double-submit-cookie pattern: one token copy is
// held server-side per session, the same value is exposed to the client, and
// the two are compared in constant time at verification.
type CSRFGuard struct {
	tokens   map[string]*csrfEntry // session ID -> entry
	mu       sync.RWMutex
	tokenTTL time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCSRFGuard creates a guard whose tokens rotate on the given TTL.
// Call Stop when the guard is no longer needed to end its cleanup sweep.
func NewCSRFGuard(tokenTTL time.Duration) *CSRFGuard {
	guard := &CSRFGuard{
		tokens:   make(map[string]*csrfEntry),
		tokenTTL: tokenTTL,
		stopCh:   make(chan struct{}),
	}

	go guard.cleanupExpired()

	return guard
}

// Stop ends the background cleanup sweep. The guard itself stays usable;
// expiry is always enforced at verification time. Safe to call more than once.
func (g *CSRFGuard) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCh)
	})
}

// IssueToken returns the current token for the session, generating a fresh
// one lazily on first need or after the rotation TTL has elapsed.
func (g *CSRFGuard) IssueToken(sessionID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, ok := g.tokens[sessionID]; ok && time.Now().Before(entry.expiry) {
		return entry.token, nil
	}

	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	token := hex.EncodeToString(raw)
	g.tokens[sessionID] = &csrfEntry{
		token:  token,
		expiry: time.Now().Add(g.tokenTTL),
	}

	return token, nil
}

// VerifyToken compares the supplied token against the server-held copy for
// the session. It fails closed when no token is held or the held token has
// expired. The comparison is constant time over the full token length so
// timing cannot leak the position of the first mismatched byte.
func (g *CSRFGuard) VerifyToken(sessionID, supplied string) bool {
	if supplied == "" {
		return false
	}

	g.mu.RLock()
	entry, ok := g.tokens[sessionID]
	g.mu.RUnlock()

	if !ok || time.Now().After(entry.expiry) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(entry.token), []byte(supplied)) == 1
}

// RevokeToken drops the server-held token for a session.
func (g *CSRFGuard) RevokeToken(sessionID string) {
	g.mu.Lock()
	delete(g.tokens, sessionID)
	g.mu.Unlock()
}

// VerifyOrigin checks the Origin header against the Host header. Same-origin
// requests carry no Origin header and pass; any present Origin must have a
// host component exactly equal to the Host header.
func VerifyOrigin(originHeader, hostHeader string) bool {
	if originHeader == "" {
		return true
	}

	parsed, err := url.Parse(originHeader)
	if err != nil {
		return false
	}

	return parsed.Host == hostHeader
}

// cleanupExpired periodically removes expired entries.
func (g *CSRFGuard) cleanupExpired() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.mu.Lock()
			now := time.Now()
			for sessionID, entry := range g.tokens {
				if now.After(entry.expiry) {
					delete(g.tokens, sessionID)
				}
			}
			g.mu.Unlock()
		case <-g.stopCh:
			return
		}
	}
}
