package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  listenAddr: ":8081"
backend:
  targetUrl: "http://localhost:9000"
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.ListenAddr)
	assert.Equal(t, "http://localhost:9000", cfg.Backend.TargetURL)

	// Unset fields keep defaults.
	assert.Equal(t, ":9090", cfg.Server.OpsAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
	assert.Equal(t, []string{"GET"}, cfg.Cache.Methods)
}

func TestLoadFromReaderDurations(t *testing.T) {
	yaml := minimalYAML + `
circuitBreaker:
  enabled: true
  failureThreshold: 3
  successThreshold: 1
  openTimeout: "90s"
cache:
  sweepInterval: "2m"
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.CircuitBreaker.OpenTimeout.Duration())
	assert.Equal(t, 2*time.Minute, cfg.Cache.SweepInterval.Duration())
}

func TestLoadFromReaderInvalidYAML(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server: [not a map"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Server.ListenAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gateway.yaml")
	assert.Error(t, err)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("PGW_TEST_ADDR", ":7070")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "set variable",
			input: "listenAddr: ${PGW_TEST_ADDR}",
			want:  "listenAddr: :7070",
		},
		{
			name:  "unset variable with default",
			input: "addr: ${PGW_TEST_UNSET:-localhost:6379}",
			want:  "addr: localhost:6379",
		},
		{
			name:  "unset variable without default",
			input: "secret: ${PGW_TEST_UNSET}",
			want:  "secret: ",
		},
		{
			name:  "escaped dollar",
			input: "value: $${NOT_A_VAR}",
			want:  "value: ${NOT_A_VAR}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.input))
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	var parsed Duration
	require.NoError(t, parsed.UnmarshalJSON(out))
	assert.Equal(t, d, parsed)
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Backend.TargetURL = "http://localhost:9000"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing listen addr",
			mutate:  func(c *Config) { c.Server.ListenAddr = "" },
			wantErr: "listenAddr",
		},
		{
			name:    "missing backend target",
			mutate:  func(c *Config) { c.Backend.TargetURL = "" },
			wantErr: "targetUrl",
		},
		{
			name: "rate limit bad store",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Store = "cassandra"
			},
			wantErr: "rateLimit.store",
		},
		{
			name: "rate limit redis without addr",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Store = "redis"
			},
			wantErr: "redis.addr",
		},
		{
			name: "rate limit rule zero window",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Rules = []RateLimitRuleConfig{{
					ID: "r1", PathPattern: "/api/**", IdentifierType: "ip",
					WindowSeconds: 0, MaxRequests: 10,
				}}
			},
			wantErr: "windowSeconds",
		},
		{
			name: "rate limit duplicate rule id",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				rule := RateLimitRuleConfig{
					ID: "r1", PathPattern: "/api/**", IdentifierType: "ip",
					WindowSeconds: 60, MaxRequests: 10,
				}
				c.RateLimit.Rules = []RateLimitRuleConfig{rule, rule}
			},
			wantErr: "duplicate",
		},
		{
			name: "rate limit bad identifier type",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.Rules = []RateLimitRuleConfig{{
					ID: "r1", PathPattern: "/api/**", IdentifierType: "session",
					WindowSeconds: 60, MaxRequests: 10,
				}}
			},
			wantErr: "identifierType",
		},
		{
			name: "ip restriction invalid cidr",
			mutate: func(c *Config) {
				c.IPRestriction.Enabled = true
				c.IPRestriction.Blacklist = []IPEntryConfig{{CIDR: "10.0.0.0/99"}}
			},
			wantErr: "invalid CIDR",
		},
		{
			name: "api key without key or hash",
			mutate: func(c *Config) {
				c.APIKey.Enabled = true
				c.APIKey.Keys = []APIKeyEntryConfig{{ID: "k1", Enabled: true}}
			},
			wantErr: "key or hash",
		},
		{
			name: "oauth without introspection url",
			mutate: func(c *Config) {
				c.OAuth.Enabled = true
			},
			wantErr: "introspectionUrl",
		},
		{
			name: "jwt secret without algorithm",
			mutate: func(c *Config) {
				c.JWT.Enabled = true
				c.JWT.Secret = "shhh"
			},
			wantErr: "algorithm",
		},
		{
			name: "cache rule vary headers missing",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Rules = []CacheRuleConfig{{
					ID: "c1", PathPattern: "/api/**", TTLSeconds: 30,
					VaryByHeaders: true,
				}}
			},
			wantErr: "varyHeaders",
		},
		{
			name: "validation rule without expression",
			mutate: func(c *Config) {
				c.Validation.Enabled = true
				c.Validation.Rules = []ValidationRuleConfig{{
					ID: "v1", PathPattern: "/api/**",
				}}
			},
			wantErr: "expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
