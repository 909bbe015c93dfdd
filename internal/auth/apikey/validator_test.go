package apikey

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vyrodovalexey/policygw/internal/apierror"
)

func newTestValidator(keys []*Key, now time.Time) *Validator {
	return NewValidator(NewMemoryStore(keys), WithValidatorClock(func() time.Time { return now }))
}

func TestValidateSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestValidator([]*Key{NewKey("k1", "orders service", "secret-1")}, now)

	key, aerr := v.Validate("secret-1", "/v1/orders/5", "10.0.0.1")
	require.Nil(t, aerr)
	assert.Equal(t, "k1", key.ID)
}

func TestValidateMissing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestValidator(nil, now)

	_, aerr := v.Validate("", "/v1/orders", "10.0.0.1")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeAPIKeyMissing, aerr.Code)
	assert.Equal(t, apierror.KindUnauthorized, aerr.Kind)
}

func TestValidateUnknownKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestValidator([]*Key{NewKey("k1", "svc", "secret-1")}, now)

	_, aerr := v.Validate("wrong", "/v1/orders", "10.0.0.1")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeAPIKeyInvalid, aerr.Code)
}

func TestValidateDisabledKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := NewKey("k1", "svc", "secret-1")
	key.Enabled = false
	v := newTestValidator([]*Key{key}, now)

	_, aerr := v.Validate("secret-1", "/v1/orders", "10.0.0.1")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeAPIKeyDisabled, aerr.Code)
}

func TestValidateExpiredKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := NewKey("k1", "svc", "secret-1")
	key.ExpiresAt = now.Add(-time.Hour)
	v := newTestValidator([]*Key{key}, now)

	_, aerr := v.Validate("secret-1", "/v1/orders", "10.0.0.1")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeAPIKeyExpired, aerr.Code)
}

func TestValidatePathAllowList(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := NewKey("k1", "orders only", "secret-1")
	key.AllowedPaths = []string{"/v1/orders/**"}
	v := newTestValidator([]*Key{key}, now)

	_, aerr := v.Validate("secret-1", "/v1/orders/5", "10.0.0.1")
	assert.Nil(t, aerr)

	_, aerr = v.Validate("secret-1", "/v1/users/5", "10.0.0.1")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeAPIKeyPathDenied, aerr.Code)
	assert.Equal(t, apierror.KindForbidden, aerr.Kind)
	assert.Equal(t, http.StatusForbidden, aerr.Kind.HTTPStatus())
}

func TestValidateIPAllowList(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	key := NewKey("k1", "internal", "secret-1")
	key.AllowedIPs = []string{"10.0.0.0/8", "192.168.1.5"}
	v := newTestValidator([]*Key{key}, now)

	_, aerr := v.Validate("secret-1", "/v1/orders", "10.1.2.3")
	assert.Nil(t, aerr)

	_, aerr = v.Validate("secret-1", "/v1/orders", "192.168.1.5")
	assert.Nil(t, aerr)

	_, aerr = v.Validate("secret-1", "/v1/orders", "8.8.8.8")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeAPIKeyIPDenied, aerr.Code)
}

func TestValidateBcryptKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-2"), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestValidator([]*Key{NewHashedKey("k2", "hashed", string(hash))}, now)

	key, aerr := v.Validate("secret-2", "/v1/orders", "10.0.0.1")
	require.Nil(t, aerr)
	assert.Equal(t, "k2", key.ID)

	_, aerr = v.Validate("wrong", "/v1/orders", "10.0.0.1")
	assert.NotNil(t, aerr)
}

func TestExtractOrder(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.AllowQueryParam = true

	headers := http.Header{}
	headers.Set("X-API-Key", "from-header")
	headers.Set("Authorization", "ApiKey from-auth")
	query := url.Values{"api_key": {"from-query"}}

	// Dedicated header wins.
	assert.Equal(t, "from-header", Extract(cfg, headers, query))

	// Then the Authorization scheme.
	headers.Del("X-API-Key")
	assert.Equal(t, "from-auth", Extract(cfg, headers, query))

	// Then the query parameter.
	headers.Del("Authorization")
	assert.Equal(t, "from-query", Extract(cfg, headers, query))
}

func TestExtractQueryParamOptIn(t *testing.T) {
	cfg := DefaultExtractorConfig()

	query := url.Values{"api_key": {"from-query"}}
	assert.Empty(t, Extract(cfg, http.Header{}, query))
}

func TestExtractIgnoresBearerScheme(t *testing.T) {
	cfg := DefaultExtractorConfig()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer some-jwt")
	assert.Empty(t, Extract(cfg, headers, nil))
}

func TestMemoryStoreReplace(t *testing.T) {
	s := NewMemoryStore([]*Key{NewKey("k1", "a", "v1")})

	require.NotNil(t, s.Lookup("v1"))

	s.Replace([]*Key{NewKey("k2", "b", "v2")})

	assert.Nil(t, s.Lookup("v1"))
	assert.NotNil(t, s.Lookup("v2"))
}
