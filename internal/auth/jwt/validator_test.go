package jwt

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/policygw/internal/apierror"
)

const testSecret = "test-secret-0123456789"

func signToken(t *testing.T, mutate func(b *jwxjwt.Builder)) string {
	t.Helper()

	b := jwxjwt.NewBuilder().
		Subject("user-1").
		Issuer("https://issuer.example").
		Audience([]string{"gateway"}).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}

	tok, err := b.Build()
	require.NoError(t, err)

	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)

	return string(signed)
}

func newTestValidator(t *testing.T, mutate func(*Config)) *Validator {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.Algorithm = "HS256"
	if mutate != nil {
		mutate(&cfg)
	}

	v, err := NewValidator(context.Background(), cfg)
	require.NoError(t, err)
	return v
}

func TestValidateSuccess(t *testing.T) {
	v := newTestValidator(t, nil)

	claims, aerr := v.Validate(context.Background(), signToken(t, nil))
	require.Nil(t, aerr)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "https://issuer.example", claims.Issuer)
	assert.Equal(t, []string{"gateway"}, claims.Audience)
}

func TestValidateMissingToken(t *testing.T) {
	v := newTestValidator(t, nil)

	_, aerr := v.Validate(context.Background(), "")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeJWTMissing, aerr.Code)
}

func TestValidateExpiredToken(t *testing.T) {
	v := newTestValidator(t, nil)

	token := signToken(t, func(b *jwxjwt.Builder) {
		b.Expiration(time.Now().Add(-time.Hour))
	})

	_, aerr := v.Validate(context.Background(), token)
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeJWTExpired, aerr.Code)
}

func TestValidateClockSkewTolerance(t *testing.T) {
	v := newTestValidator(t, func(c *Config) {
		c.ClockSkew = 2 * time.Minute
	})

	token := signToken(t, func(b *jwxjwt.Builder) {
		b.Expiration(time.Now().Add(-time.Minute))
	})

	_, aerr := v.Validate(context.Background(), token)
	assert.Nil(t, aerr)
}

func TestValidateWrongSignature(t *testing.T) {
	v := newTestValidator(t, func(c *Config) {
		c.Secret = "a-different-secret-value"
	})

	_, aerr := v.Validate(context.Background(), signToken(t, nil))
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeJWTInvalid, aerr.Code)
}

func TestValidateIssuerEnforced(t *testing.T) {
	v := newTestValidator(t, func(c *Config) {
		c.Issuer = "https://other.example"
	})

	_, aerr := v.Validate(context.Background(), signToken(t, nil))
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeJWTInvalid, aerr.Code)
}

func TestValidateAudienceEnforced(t *testing.T) {
	v := newTestValidator(t, func(c *Config) {
		c.Audience = "other-service"
	})

	_, aerr := v.Validate(context.Background(), signToken(t, nil))
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeJWTInvalid, aerr.Code)
}

func TestValidateMalformedToken(t *testing.T) {
	v := newTestValidator(t, nil)

	_, aerr := v.Validate(context.Background(), "not-a-jwt")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeJWTInvalid, aerr.Code)
}

func TestValidatePrivateClaims(t *testing.T) {
	v := newTestValidator(t, nil)

	token := signToken(t, func(b *jwxjwt.Builder) {
		b.Claim("role", "admin")
	})

	claims, aerr := v.Validate(context.Background(), token)
	require.Nil(t, aerr)
	assert.Equal(t, "admin", claims.Private["role"])
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.Secret = "s"
	assert.Error(t, cfg.Validate())

	cfg.Algorithm = "HS256"
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.JWKSURL = "https://issuer.example/jwks.json"
	assert.NoError(t, cfg.Validate())
}

func TestExtract(t *testing.T) {
	cfg := ExtractorConfig{}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", Extract(cfg, headers))

	headers.Set("Authorization", "bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", Extract(cfg, headers))

	headers.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, Extract(cfg, headers))

	assert.Empty(t, Extract(cfg, http.Header{}))
}

func TestExtractCustomHeader(t *testing.T) {
	cfg := ExtractorConfig{Header: "X-Access-Token", Scheme: "Token"}

	headers := http.Header{}
	headers.Set("X-Access-Token", "Token xyz")
	assert.Equal(t, "xyz", Extract(cfg, headers))
}
