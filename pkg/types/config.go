package types

import "time"

// TestConfig describes one load-testing job. It is supplied fresh with every
// start command and never modified once the job is running.
type TestConfig struct {
	TargetURL       string `json:"targetUrl" yaml:"target_url"`
	DurationSeconds int    `json:"durationSeconds" yaml:"duration_seconds"`
	NumUsers        int    `json:"numUsers" yaml:"num_users"` // per worker
	RampUpSeconds   int    `json:"rampUpSeconds" yaml:"ramp_up_seconds"`
}

// Normalize returns a copy with the numeric fields clamped into a usable range:
// at least one user, a ramp-up window of at least one second and a
// non-negative duration.
func (c TestConfig) Normalize() TestConfig {
	if c.NumUsers < 1 {
		c.NumUsers = 1
	}
	if c.RampUpSeconds < 1 {
		c.RampUpSeconds = 1
	}
	if c.DurationSeconds < 0 {
		c.DurationSeconds = 0
	}
	return c
}

// RampRate is the number of virtual users spawned per ramp tick.
// It is never below one, even when NumUsers < RampUpSeconds.
func (c TestConfig) RampRate() int {
	n := c.Normalize()
	rate := n.NumUsers / n.RampUpSeconds
	if rate < 1 {
		return 1
	}
	return rate
}

// RampUpWindow returns the ramp-up window, counting one unit per configured
// second (time.Second in production).
func (c TestConfig) RampUpWindow(unit time.Duration) time.Duration {
	return time.Duration(c.Normalize().RampUpSeconds) * unit
}

// Deadline returns the offset from job start at which the job completes,
// counting one unit per configured second.
func (c TestConfig) Deadline(unit time.Duration) time.Duration {
	n := c.Normalize()
	return time.Duration(n.RampUpSeconds+n.DurationSeconds) * unit
}

// PoolSize is the number of execution slots a worker allocates for the job.
func (c TestConfig) PoolSize() int {
	return c.Normalize().NumUsers + 1
}
