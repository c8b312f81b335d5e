package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay equalizes the observable duration of authentication failures so
// "unknown email" and "wrong password" take similar time.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
}

// NewTimingDelay creates a delay with a fixed base and a random jitter range.
func NewTimingDelay(base, jitter time.Duration) *TimingDelay {
	return &TimingDelay{base: base, jitter: jitter}
}

// WaitFrom sleeps until at least base+jitter has elapsed since start. Calls on
// the success path return immediately.
func (d *TimingDelay) WaitFrom(start time.Time, success bool) {
	if success {
		return
	}

	target := d.base
	if d.jitter > 0 {
		target += cryptoRandDuration(d.jitter)
	}

	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// cryptoRandDuration returns a secure random duration in [0, max).
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return 0
	}

	return time.Duration(binary.BigEndian.Uint64(raw) % uint64(max))
}
