// Package oauth validates opaque OAuth2 access tokens via RFC 7662
// token introspection, with a short TTL result cache.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/observability"
)

// Introspection is the subset of the RFC 7662 response the gateway uses.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

// Scopes returns the granted scopes as a slice.
func (i *Introspection) Scopes() []string {
	if i.Scope == "" {
		return nil
	}
	return strings.Fields(i.Scope)
}

// Config holds introspection client settings.
type Config struct {
	// IntrospectionURL is the RFC 7662 endpoint.
	IntrospectionURL string

	// ClientID and ClientSecret authenticate the gateway to the
	// endpoint via basic auth.
	ClientID     string
	ClientSecret string

	// CacheTTL bounds how long a result is reused. Cached entries
	// never outlive the token's own expiry.
	CacheTTL time.Duration

	// Timeout bounds a single introspection call.
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		CacheTTL: 60 * time.Second,
		Timeout:  5 * time.Second,
	}
}

// Client calls the introspection endpoint and caches results.
type Client struct {
	config Config
	http   *http.Client
	logger observability.Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedResult
}

type cachedResult struct {
	result    *Introspection
	expiresAt time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(logger observability.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithClientClock sets the time source.
func WithClientClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates an introspection client.
func NewClient(config Config, opts ...ClientOption) (*Client, error) {
	if config.IntrospectionURL == "" {
		return nil, fmt.Errorf("introspection URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	c := &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: observability.NopLogger(),
		now:    time.Now,
		cache:  make(map[string]cachedResult),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Validate introspects a token and rejects inactive ones. Each failure
// maps to a distinct stable error code.
func (c *Client) Validate(ctx context.Context, token string) (*Introspection, *apierror.Error) {
	if token == "" {
		recordIntrospection("missing")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeOAuthTokenInvalid, "access token is required")
	}

	result, err := c.introspect(ctx, token)
	if err != nil {
		c.logger.Error("token introspection failed", observability.Error(err))
		recordIntrospection("error")
		return nil, apierror.Wrap(apierror.KindUnauthorized, apierror.CodeOAuthTokenInvalid, "token introspection failed", err)
	}

	if !result.Active {
		recordIntrospection("inactive")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeOAuthTokenInactive, "token is not active")
	}

	recordIntrospection("ok")
	return result, nil
}

// introspect returns a cached result or calls the endpoint.
func (c *Client) introspect(ctx context.Context, token string) (*Introspection, error) {
	now := c.now()

	c.mu.Lock()
	if cached, ok := c.cache[token]; ok && now.Before(cached.expiresAt) {
		c.mu.Unlock()
		recordIntrospection("cache_hit")
		return cached.result, nil
	}
	c.mu.Unlock()

	result, err := c.call(ctx, token)
	if err != nil {
		return nil, err
	}

	ttl := c.config.CacheTTL
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		if result.ExpiresAt > 0 {
			tokenExpiry := time.Unix(result.ExpiresAt, 0)
			if tokenExpiry.Before(expiresAt) {
				expiresAt = tokenExpiry
			}
		}

		c.mu.Lock()
		c.cache[token] = cachedResult{result: result, expiresAt: expiresAt}
		c.mu.Unlock()
	}

	return result, nil
}

func (c *Client) call(ctx context.Context, token string) (*Introspection, error) {
	form := url.Values{"token": {token}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.IntrospectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build introspection request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.config.ClientID != "" {
		req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode)
	}

	var result Introspection
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}

	return &result, nil
}
