// Package jwt validates JSON Web Tokens against a JWKS endpoint or a
// shared secret.
package jwt

import (
	"fmt"
	"time"
)

// Config holds JWT validation settings.
type Config struct {
	// JWKSURL fetches verification keys from a JWKS endpoint.
	JWKSURL string

	// Secret with Algorithm verifies tokens with a shared key when no
	// JWKS endpoint is configured.
	Secret    string
	Algorithm string

	// Issuer and Audience are enforced when non-empty.
	Issuer   string
	Audience string

	// ClockSkew is the tolerated clock difference for time claims.
	ClockSkew time.Duration

	// JWKSRefreshInterval bounds how often the JWKS is re-fetched.
	JWKSRefreshInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ClockSkew:           30 * time.Second,
		JWKSRefreshInterval: 15 * time.Minute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.JWKSURL == "" && c.Secret == "" {
		return fmt.Errorf("jwksUrl or secret is required")
	}
	if c.JWKSURL == "" && c.Algorithm == "" {
		return fmt.Errorf("algorithm is required when using a shared secret")
	}
	return nil
}
