package circuitbreaker

import (
	"fmt"
	"time"
)

// Config holds circuit breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// opens a closed breaker.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes that
	// closes a half-open breaker.
	SuccessThreshold int

	// OpenTimeout is how long an open breaker rejects before
	// admitting a trial request.
	OpenTimeout time.Duration
}

// DefaultConfig returns a Config with default thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("open timeout must be positive, got %v", c.OpenTimeout)
	}
	return nil
}
