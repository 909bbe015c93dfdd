// Package config defines the gateway configuration surface: the policy
// pipeline feature blocks, their rules, and the server/observability
// settings, bound from YAML at startup and on hot reload.
package config

import "time"

// Config is the root gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Backend        BackendConfig        `yaml:"backend"`
	BotDetection   BotDetectionConfig   `yaml:"botDetection"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit"`
	Validation     ValidationConfig     `yaml:"validation"`
	IPRestriction  IPRestrictionConfig  `yaml:"ipRestriction"`
	APIKey         APIKeyConfig         `yaml:"apiKey"`
	OAuth          OAuthConfig          `yaml:"oauth"`
	JWT            JWTConfig            `yaml:"jwt"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
	Cache          CacheConfig          `yaml:"cache"`
	Transform      TransformConfig      `yaml:"transform"`
	Analytics      AnalyticsConfig      `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the address the gateway listens on.
	ListenAddr string `yaml:"listenAddr"`

	// OpsAddr is the address of the operations endpoint (health,
	// metrics, read-only state). Empty disables the ops server.
	OpsAddr string `yaml:"opsAddr"`

	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`

	// MaxBodyBytes caps the buffered request body size.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig holds trace export settings.
type TracingConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ServiceName  string   `yaml:"serviceName"`
	Endpoint     string   `yaml:"endpoint"`
	Insecure     bool     `yaml:"insecure"`
	SampleRate   float64  `yaml:"sampleRate"`
	BatchTimeout Duration `yaml:"batchTimeout"`
}

// BackendConfig holds the upstream target settings.
type BackendConfig struct {
	// TargetURL is the base URL requests are forwarded to.
	TargetURL string `yaml:"targetUrl"`

	Timeout         Duration `yaml:"timeout"`
	MaxIdleConns    int      `yaml:"maxIdleConns"`
	IdleConnTimeout Duration `yaml:"idleConnTimeout"`
}

// RedisConfig holds connection settings for Redis-backed stores.
type RedisConfig struct {
	Addr        string   `yaml:"addr"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	DialTimeout Duration `yaml:"dialTimeout"`
	PoolSize    int      `yaml:"poolSize"`
}

// BotDetectionConfig configures the bot detection stage.
type BotDetectionConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// BlockBots denies detected bots that are not on the allow list.
	BlockBots bool `yaml:"blockBots"`

	// AllowedBots are bot names admitted even when BlockBots is set.
	AllowedBots []string `yaml:"allowedBots"`

	// CustomSignatures extend the built-in User-Agent signature set.
	CustomSignatures []BotSignatureConfig `yaml:"customSignatures"`

	// RatePattern enables the request-rate heuristic per client IP.
	RatePattern RatePatternConfig `yaml:"ratePattern"`
}

// BotSignatureConfig is one User-Agent substring signature.
type BotSignatureConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
}

// RatePatternConfig configures the rate heuristic of the bot detector.
type RatePatternConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// RateLimitConfig configures the rate limiting stage.
type RateLimitConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// Store selects the counter backend: "memory" or "redis".
	Store string `yaml:"store"`

	Redis RedisConfig `yaml:"redis"`

	Rules []RateLimitRuleConfig `yaml:"rules"`
}

// RateLimitRuleConfig is one fixed-window rate limit rule.
type RateLimitRuleConfig struct {
	ID          string   `yaml:"id"`
	PathPattern string   `yaml:"pathPattern"`
	Methods     []string `yaml:"methods"`
	Enabled     bool     `yaml:"enabled"`
	Priority    int      `yaml:"priority"`

	// IdentifierType selects the counted identity: "ip", "apiKey", or "user".
	IdentifierType string `yaml:"identifierType"`

	WindowSeconds int `yaml:"windowSeconds"`
	MaxRequests   int `yaml:"maxRequests"`
}

// ValidationConfig configures the request validation stage.
type ValidationConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// MaxBodyBytes rejects requests with larger bodies. Zero disables
	// the check.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`

	// RequiredHeaders must be present on every matching request.
	RequiredHeaders []string `yaml:"requiredHeaders"`

	// AllowedContentTypes restricts the Content-Type of requests
	// carrying a body. Empty allows any.
	AllowedContentTypes []string `yaml:"allowedContentTypes"`

	Rules []ValidationRuleConfig `yaml:"rules"`
}

// ValidationRuleConfig is one CEL expression evaluated against matching
// requests. The expression must evaluate to true for the request to pass.
type ValidationRuleConfig struct {
	ID          string   `yaml:"id"`
	PathPattern string   `yaml:"pathPattern"`
	Methods     []string `yaml:"methods"`
	Enabled     bool     `yaml:"enabled"`
	Priority    int      `yaml:"priority"`
	Expression  string   `yaml:"expression"`
	Message     string   `yaml:"message"`
}

// IPRestrictionConfig configures the IP restriction stage.
type IPRestrictionConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	Whitelist []IPEntryConfig `yaml:"whitelist"`
	Blacklist []IPEntryConfig `yaml:"blacklist"`

	// CleanupInterval controls pruning of expired entries.
	CleanupInterval Duration `yaml:"cleanupInterval"`
}

// IPEntryConfig is one IP or CIDR entry with an optional expiry.
type IPEntryConfig struct {
	// CIDR is an address ("10.0.0.1") or block ("10.0.0.0/8").
	CIDR string `yaml:"cidr"`

	// ExpiresAt excludes the entry from evaluation after this time.
	// Zero means the entry never expires.
	ExpiresAt time.Time `yaml:"expiresAt"`
}

// APIKeyConfig configures the API key authentication stage.
type APIKeyConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// Header is the dedicated key header. Defaults to X-API-Key.
	Header string `yaml:"header"`

	// AllowQueryParam permits key extraction from a query parameter.
	// Off by default; keys in URLs leak into logs.
	AllowQueryParam bool   `yaml:"allowQueryParam"`
	QueryParam      string `yaml:"queryParam"`

	Keys []APIKeyEntryConfig `yaml:"keys"`
}

// APIKeyEntryConfig is one provisioned API key.
type APIKeyEntryConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Key is the plaintext key value. Prefer Hash in production.
	Key string `yaml:"key"`

	// Hash is a bcrypt hash of the key value.
	Hash string `yaml:"hash"`

	AllowedPaths []string `yaml:"allowedPaths"`
	AllowedIPs   []string `yaml:"allowedIps"`

	RateLimitPerSecond int `yaml:"rateLimitPerSecond"`

	Enabled   bool      `yaml:"enabled"`
	ExpiresAt time.Time `yaml:"expiresAt"`
}

// OAuthConfig configures the OAuth2 token introspection stage.
type OAuthConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// IntrospectionURL is the RFC 7662 introspection endpoint.
	IntrospectionURL string `yaml:"introspectionUrl"`

	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`

	// CacheTTL bounds how long an introspection result is reused.
	CacheTTL Duration `yaml:"cacheTtl"`
	Timeout  Duration `yaml:"timeout"`
}

// JWTConfig configures the JWT validation stage.
type JWTConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// JWKSURL fetches verification keys from a JWKS endpoint. When
	// empty, Secret with Algorithm is used instead.
	JWKSURL   string `yaml:"jwksUrl"`
	Secret    string `yaml:"secret"`
	Algorithm string `yaml:"algorithm"`

	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`

	ClockSkew Duration `yaml:"clockSkew"`

	// Header and Scheme control token extraction. Defaults are
	// Authorization and Bearer.
	Header string `yaml:"header"`
	Scheme string `yaml:"scheme"`
}

// CircuitBreakerConfig configures the circuit breaker stage.
type CircuitBreakerConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	FailureThreshold int      `yaml:"failureThreshold"`
	SuccessThreshold int      `yaml:"successThreshold"`
	OpenTimeout      Duration `yaml:"openTimeout"`
}

// CacheConfig configures the response cache stages.
type CacheConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ExcludePaths []string `yaml:"excludePaths"`

	// Store selects the cache backend: "memory" or "redis".
	Store string `yaml:"store"`

	Redis RedisConfig `yaml:"redis"`

	// Methods eligible for caching. Defaults to GET.
	Methods []string `yaml:"methods"`

	// MaxEntries bounds the in-memory cache size; exceeding it evicts
	// the least recently used entry.
	MaxEntries int `yaml:"maxEntries"`

	SweepInterval Duration `yaml:"sweepInterval"`

	Rules []CacheRuleConfig `yaml:"rules"`
}

// CacheRuleConfig is one response cache rule.
type CacheRuleConfig struct {
	ID          string   `yaml:"id"`
	PathPattern string   `yaml:"pathPattern"`
	Methods     []string `yaml:"methods"`
	Enabled     bool     `yaml:"enabled"`
	Priority    int      `yaml:"priority"`

	TTLSeconds int `yaml:"ttlSeconds"`

	VaryByQueryParams bool     `yaml:"varyByQueryParams"`
	VaryByHeaders     bool     `yaml:"varyByHeaders"`
	VaryHeaders       []string `yaml:"varyHeaders"`
}

// TransformConfig configures the response transform post-stage.
type TransformConfig struct {
	// SetHeaders are added to every response, replacing existing values.
	SetHeaders map[string]string `yaml:"setHeaders"`

	// RemoveHeaders are stripped from every response.
	RemoveHeaders []string `yaml:"removeHeaders"`

	// ScrubServerHeader removes the upstream Server header.
	ScrubServerHeader bool `yaml:"scrubServerHeader"`
}

// AnalyticsConfig configures the analytics recorder.
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Retention drops records older than this on each cleanup pass.
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanupInterval"`

	// MaxRecords bounds the in-memory record store.
	MaxRecords int `yaml:"maxRecords"`

	// TopN limits the per-path entries in dashboard summaries.
	TopN int `yaml:"topN"`
}

// DefaultConfig returns a configuration with sensible defaults. Policy
// stages default to disabled so a minimal config only enables what it
// configures.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			OpsAddr:         ":9090",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			MaxBodyBytes:    10 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "policygw",
			Endpoint:     "localhost:4317",
			Insecure:     true,
			SampleRate:   1.0,
			BatchTimeout: Duration(5 * time.Second),
		},
		Backend: BackendConfig{
			Timeout:         Duration(30 * time.Second),
			MaxIdleConns:    100,
			IdleConnTimeout: Duration(90 * time.Second),
		},
		BotDetection: BotDetectionConfig{
			RatePattern: RatePatternConfig{
				RequestsPerSecond: 50,
				Burst:             100,
			},
		},
		RateLimit: RateLimitConfig{
			Store: "memory",
		},
		APIKey: APIKeyConfig{
			Header:     "X-API-Key",
			QueryParam: "api_key",
		},
		OAuth: OAuthConfig{
			CacheTTL: Duration(60 * time.Second),
			Timeout:  Duration(5 * time.Second),
		},
		JWT: JWTConfig{
			Header: "Authorization",
			Scheme: "Bearer",
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			OpenTimeout:      Duration(60 * time.Second),
		},
		Cache: CacheConfig{
			Store:         "memory",
			Methods:       []string{"GET"},
			MaxEntries:    10000,
			SweepInterval: Duration(60 * time.Second),
		},
		Analytics: AnalyticsConfig{
			Enabled:         true,
			Retention:       Duration(24 * time.Hour),
			CleanupInterval: Duration(10 * time.Minute),
			MaxRecords:      100000,
			TopN:            10,
		},
	}
}
