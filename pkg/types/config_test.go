package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTestConfig_Timing(t *testing.T) {
	cfg := TestConfig{NumUsers: 10, RampUpSeconds: 5, DurationSeconds: 30}

	assert.Equal(t, 5*time.Second, cfg.RampUpWindow(time.Second))
	assert.Equal(t, 35*time.Second, cfg.Deadline(time.Second))
	assert.Equal(t, 50*time.Millisecond, cfg.RampUpWindow(10*time.Millisecond))
	assert.Equal(t, 350*time.Millisecond, cfg.Deadline(10*time.Millisecond))
}

func TestTestConfig_TimingIsClamped(t *testing.T) {
	cfg := TestConfig{RampUpSeconds: 0, DurationSeconds: -3}

	assert.Equal(t, time.Second, cfg.RampUpWindow(time.Second))
	assert.Equal(t, time.Second, cfg.Deadline(time.Second))
	assert.Equal(t, 2, cfg.PoolSize())
	assert.Equal(t, 1, cfg.RampRate())
}
