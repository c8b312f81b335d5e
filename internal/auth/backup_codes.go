package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBackupCodeCount = 10
	backupCodeBytes        = 4 // 8 uppercase hex characters
	backupCodeHashCost     = 10
)

// BackupCodeSet is the output of a generation run. The plaintext codes are
// shown to the user exactly once and never stored or logged; only the hashes
// are persisted.
type BackupCodeSet struct {
	PlainCodes  []string
	HashedCodes []string
}

// GenerateBackupCodes produces count one-time recovery codes, each an
// 8-character uppercase hex string, with an individual bcrypt hash for
// storage.
func GenerateBackupCodes(count int) (*BackupCodeSet, error) {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}

	set := &BackupCodeSet{
		PlainCodes:  make([]string, 0, count),
		HashedCodes: make([]string, 0, count),
	}

	for i := 0; i < count; i++ {
		raw := make([]byte, backupCodeBytes)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(raw))

		hash, err := bcrypt.GenerateFromPassword([]byte(code), backupCodeHashCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash backup code: %w", err)
		}

		set.PlainCodes = append(set.PlainCodes, code)
		set.HashedCodes = append(set.HashedCodes, string(hash))
	}

	return set, nil
}

// ConsumeBackupCode checks the supplied code against each stored hash. On the
// first match it returns valid=true and the set with that hash removed; the
// caller persists the reduced set. No match leaves the set unchanged.
//
// The scan is linear over the hashes since no plaintext index exists. That is
// O(n) bcrypt comparisons, acceptable while sets stay at ten codes.
func ConsumeBackupCode(code string, hashedCodes []string) (bool, []string) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	for i, hash := range hashedCodes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalized)) == nil {
			remaining := make([]string, 0, len(hashedCodes)-1)
			remaining = append(remaining, hashedCodes[:i]...)
			remaining = append(remaining, hashedCodes[i+1:]...)
			return true, remaining
		}
	}

	return false, hashedCodes
}
