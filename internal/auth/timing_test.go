package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_FailureMeetsFloor(t *testing.T) {
	delay := NewTimingDelay(50*time.Millisecond, 0)

	start := time.Now()
	delay.WaitFrom(start, false)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestTimingDelay_SuccessReturnsImmediately(t *testing.T) {
	delay := NewTimingDelay(200*time.Millisecond, 0)

	start := time.Now()
	delay.WaitFrom(start, true)

	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestTimingDelay_ElapsedTimeCounts(t *testing.T) {
	delay := NewTimingDelay(30*time.Millisecond, 0)

	// Work that already took longer than the floor should not sleep again.
	start := time.Now().Add(-100 * time.Millisecond)
	before := time.Now()
	delay.WaitFrom(start, false)

	assert.Less(t, time.Since(before), 20*time.Millisecond)
}

func TestCryptoRandDuration_Bounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := cryptoRandDuration(10 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 10*time.Millisecond)
	}

	assert.Equal(t, time.Duration(0), cryptoRandDuration(0))
}
