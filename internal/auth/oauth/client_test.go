package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/policygw/internal/apierror"
)

func newIntrospectionServer(t *testing.T, calls *atomic.Int64, respond func(token string) Introspection) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		require.NoError(t, r.ParseForm())
		token := r.PostFormValue("token")

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(respond(token)))
	}))
}

func TestValidateActiveToken(t *testing.T) {
	var calls atomic.Int64
	srv := newIntrospectionServer(t, &calls, func(token string) Introspection {
		return Introspection{Active: true, Subject: "user-1", Scope: "read write", Username: "alice"}
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.IntrospectionURL = srv.URL

	c, err := NewClient(cfg)
	require.NoError(t, err)

	result, aerr := c.Validate(context.Background(), "tok-1")
	require.Nil(t, aerr)
	assert.Equal(t, "user-1", result.Subject)
	assert.Equal(t, []string{"read", "write"}, result.Scopes())
}

func TestValidateInactiveToken(t *testing.T) {
	var calls atomic.Int64
	srv := newIntrospectionServer(t, &calls, func(string) Introspection {
		return Introspection{Active: false}
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.IntrospectionURL = srv.URL

	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, aerr := c.Validate(context.Background(), "revoked")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeOAuthTokenInactive, aerr.Code)
}

func TestValidateMissingToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IntrospectionURL = "http://localhost:0"

	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, aerr := c.Validate(context.Background(), "")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeOAuthTokenInvalid, aerr.Code)
}

func TestValidateEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.IntrospectionURL = srv.URL

	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, aerr := c.Validate(context.Background(), "tok")
	require.NotNil(t, aerr)
	assert.Equal(t, apierror.CodeOAuthTokenInvalid, aerr.Code)
}

func TestValidateCachesResults(t *testing.T) {
	var calls atomic.Int64
	srv := newIntrospectionServer(t, &calls, func(string) Introspection {
		return Introspection{Active: true, Subject: "user-1"}
	})
	defer srv.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cfg := DefaultConfig()
	cfg.IntrospectionURL = srv.URL
	cfg.CacheTTL = time.Minute

	c, err := NewClient(cfg, WithClientClock(func() time.Time { return now }))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, aerr := c.Validate(context.Background(), "tok-1")
		require.Nil(t, aerr)
	}
	assert.Equal(t, int64(1), calls.Load())

	// A different token is not served from cache.
	_, aerr := c.Validate(context.Background(), "tok-2")
	require.Nil(t, aerr)
	assert.Equal(t, int64(2), calls.Load())

	// Past the TTL the endpoint is consulted again.
	now = now.Add(2 * time.Minute)
	_, aerr = c.Validate(context.Background(), "tok-1")
	require.Nil(t, aerr)
	assert.Equal(t, int64(3), calls.Load())
}

func TestValidateCacheBoundedByTokenExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var calls atomic.Int64
	srv := newIntrospectionServer(t, &calls, func(string) Introspection {
		return Introspection{Active: true, ExpiresAt: now.Add(10 * time.Second).Unix()}
	})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.IntrospectionURL = srv.URL
	cfg.CacheTTL = time.Hour

	c, err := NewClient(cfg, WithClientClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, aerr := c.Validate(context.Background(), "tok")
	require.Nil(t, aerr)

	// The token expired before the cache TTL; re-introspect.
	now = now.Add(30 * time.Second)
	_, aerr = c.Validate(context.Background(), "tok")
	require.Nil(t, aerr)
	assert.Equal(t, int64(2), calls.Load())
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
