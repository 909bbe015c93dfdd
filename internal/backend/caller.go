// Package backend forwards requests to the upstream service.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vyrodovalexey/policygw/internal/observability"
)

// Response is a fully buffered upstream response. Buffering lets the
// cache write stage store the body after it has been sent.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Caller forwards a request to the upstream and returns its response.
type Caller interface {
	Call(ctx context.Context, method, path string, query url.Values, headers http.Header, body []byte) (*Response, error)
}

// Config holds the upstream connection settings.
type Config struct {
	TargetURL       string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// HTTPCaller is the http.Client-based Caller.
type HTTPCaller struct {
	baseURL *url.URL
	client  *http.Client
	logger  observability.Logger
}

// CallerOption configures an HTTPCaller.
type CallerOption func(*HTTPCaller)

// WithCallerLogger sets the logger.
func WithCallerLogger(logger observability.Logger) CallerOption {
	return func(c *HTTPCaller) {
		c.logger = logger
	}
}

// WithCallerClient replaces the HTTP client. Used in tests.
func WithCallerClient(client *http.Client) CallerOption {
	return func(c *HTTPCaller) {
		c.client = client
	}
}

// NewHTTPCaller creates a caller for the configured upstream.
func NewHTTPCaller(config Config, opts ...CallerOption) (*HTTPCaller, error) {
	base, err := url.Parse(config.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL %q: %w", config.TargetURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("target URL %q must be absolute", config.TargetURL)
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConns,
		IdleConnTimeout:     config.IdleConnTimeout,
	}

	c := &HTTPCaller{
		baseURL: base,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Call forwards the request and buffers the response.
func (c *HTTPCaller) Call(
	ctx context.Context,
	method, path string,
	query url.Values,
	headers http.Header,
	body []byte,
) (*Response, error) {
	target := *c.baseURL
	target.Path = joinPath(c.baseURL.Path, path)
	target.RawQuery = query.Encode()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	for name, values := range headers {
		if isHopByHop(name) {
			continue
		}
		req.Header[name] = values
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		recordCall(method, "error", time.Since(start))
		return nil, fmt.Errorf("upstream call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		recordCall(method, "error", time.Since(start))
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	recordCall(method, statusClass(resp.StatusCode), time.Since(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       respBody,
	}, nil
}

func joinPath(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// Connection-scoped headers must not be forwarded.
func isHopByHop(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
		"Te", "Trailer", "Transfer-Encoding", "Upgrade":
		return true
	}
	return false
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
