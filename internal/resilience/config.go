package resilience

import (
	"time"
)

// Config tunes the breaker and the Retry-After gate.
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens. Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of successes in half-open state before
	// the breaker closes. Default: 1
	SuccessThreshold int

	// OpenTimeout is how long the breaker stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// DefaultRetryAfter applies to a 429 without a usable Retry-After.
	// Default: 10 seconds
	DefaultRetryAfter time.Duration

	// MaxRetryAfter caps the window a server can impose. Default: 5 minutes
	MaxRetryAfter time.Duration
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		SuccessThreshold:  1,
		OpenTimeout:       30 * time.Second,
		DefaultRetryAfter: 10 * time.Second,
		MaxRetryAfter:     5 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = d.OpenTimeout
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = d.DefaultRetryAfter
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = d.MaxRetryAfter
	}
	return c
}
