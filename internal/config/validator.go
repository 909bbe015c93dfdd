package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for structural errors. It returns
// the first error found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listenAddr is required")
	}

	if cfg.Backend.TargetURL == "" {
		return fmt.Errorf("backend.targetUrl is required")
	}

	if err := validateRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := validateValidation(&cfg.Validation); err != nil {
		return err
	}
	if err := validateIPRestriction(&cfg.IPRestriction); err != nil {
		return err
	}
	if err := validateAPIKey(&cfg.APIKey); err != nil {
		return err
	}
	if err := validateOAuth(&cfg.OAuth); err != nil {
		return err
	}
	if err := validateJWT(&cfg.JWT); err != nil {
		return err
	}
	if err := validateCircuitBreaker(&cfg.CircuitBreaker); err != nil {
		return err
	}
	if err := validateCache(&cfg.Cache); err != nil {
		return err
	}

	return nil
}

func validateRateLimit(cfg *RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Store != "memory" && cfg.Store != "redis" {
		return fmt.Errorf("rateLimit.store must be memory or redis, got %q", cfg.Store)
	}
	if cfg.Store == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("rateLimit.redis.addr is required for the redis store")
	}

	seen := make(map[string]bool)
	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rateLimit.rules[%d]: id is required", i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("rateLimit.rules[%d]: duplicate id %q", i, rule.ID)
		}
		seen[rule.ID] = true
		if rule.PathPattern == "" {
			return fmt.Errorf("rateLimit rule %s: pathPattern is required", rule.ID)
		}
		if rule.WindowSeconds <= 0 {
			return fmt.Errorf("rateLimit rule %s: windowSeconds must be positive", rule.ID)
		}
		if rule.MaxRequests <= 0 {
			return fmt.Errorf("rateLimit rule %s: maxRequests must be positive", rule.ID)
		}
		switch rule.IdentifierType {
		case "ip", "apiKey", "user":
		default:
			return fmt.Errorf("rateLimit rule %s: identifierType must be ip, apiKey, or user, got %q",
				rule.ID, rule.IdentifierType)
		}
	}

	return nil
}

func validateValidation(cfg *ValidationConfig) error {
	if !cfg.Enabled {
		return nil
	}

	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return fmt.Errorf("validation.rules[%d]: id is required", i)
		}
		if rule.PathPattern == "" {
			return fmt.Errorf("validation rule %s: pathPattern is required", rule.ID)
		}
		if rule.Expression == "" {
			return fmt.Errorf("validation rule %s: expression is required", rule.ID)
		}
	}

	return nil
}

func validateIPRestriction(cfg *IPRestrictionConfig) error {
	if !cfg.Enabled {
		return nil
	}

	for _, entry := range append(append([]IPEntryConfig{}, cfg.Whitelist...), cfg.Blacklist...) {
		if err := validateIPEntry(entry.CIDR); err != nil {
			return fmt.Errorf("ipRestriction: %w", err)
		}
	}

	return nil
}

func validateIPEntry(value string) error {
	if value == "" {
		return fmt.Errorf("empty IP entry")
	}
	if strings.Contains(value, "/") {
		if _, _, err := net.ParseCIDR(value); err != nil {
			return fmt.Errorf("invalid CIDR %q", value)
		}
		return nil
	}
	if net.ParseIP(value) == nil {
		return fmt.Errorf("invalid IP %q", value)
	}
	return nil
}

func validateAPIKey(cfg *APIKeyConfig) error {
	if !cfg.Enabled {
		return nil
	}

	seen := make(map[string]bool)
	for i, key := range cfg.Keys {
		if key.ID == "" {
			return fmt.Errorf("apiKey.keys[%d]: id is required", i)
		}
		if seen[key.ID] {
			return fmt.Errorf("apiKey.keys[%d]: duplicate id %q", i, key.ID)
		}
		seen[key.ID] = true
		if key.Key == "" && key.Hash == "" {
			return fmt.Errorf("apiKey key %s: key or hash is required", key.ID)
		}
		for _, ip := range key.AllowedIPs {
			if err := validateIPEntry(ip); err != nil {
				return fmt.Errorf("apiKey key %s: %w", key.ID, err)
			}
		}
	}

	return nil
}

func validateOAuth(cfg *OAuthConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.IntrospectionURL == "" {
		return fmt.Errorf("oauth.introspectionUrl is required")
	}

	return nil
}

func validateJWT(cfg *JWTConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.JWKSURL == "" && cfg.Secret == "" {
		return fmt.Errorf("jwt: jwksUrl or secret is required")
	}
	if cfg.Secret != "" && cfg.Algorithm == "" {
		return fmt.Errorf("jwt.algorithm is required when using a shared secret")
	}

	return nil
}

func validateCircuitBreaker(cfg *CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureThreshold <= 0 {
		return fmt.Errorf("circuitBreaker.failureThreshold must be positive")
	}
	if cfg.SuccessThreshold <= 0 {
		return fmt.Errorf("circuitBreaker.successThreshold must be positive")
	}
	if cfg.OpenTimeout.Duration() <= 0 {
		return fmt.Errorf("circuitBreaker.openTimeout must be positive")
	}

	return nil
}

func validateCache(cfg *CacheConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Store != "memory" && cfg.Store != "redis" {
		return fmt.Errorf("cache.store must be memory or redis, got %q", cfg.Store)
	}
	if cfg.Store == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis store")
	}

	seen := make(map[string]bool)
	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return fmt.Errorf("cache.rules[%d]: id is required", i)
		}
		if seen[rule.ID] {
			return fmt.Errorf("cache.rules[%d]: duplicate id %q", i, rule.ID)
		}
		seen[rule.ID] = true
		if rule.PathPattern == "" {
			return fmt.Errorf("cache rule %s: pathPattern is required", rule.ID)
		}
		if rule.TTLSeconds <= 0 {
			return fmt.Errorf("cache rule %s: ttlSeconds must be positive", rule.ID)
		}
		if rule.VaryByHeaders && len(rule.VaryHeaders) == 0 {
			return fmt.Errorf("cache rule %s: varyHeaders is required when varyByHeaders is set", rule.ID)
		}
	}

	return nil
}
