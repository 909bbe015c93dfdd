// Package pipeline runs requests through the ordered policy stages,
// calls the backend, and executes the guaranteed post-stages.
package pipeline

import (
	"net/http"
	"net/url"
)

// Request is the captured inbound request. Immutable once built; the
// body is fully buffered so stages and the backend call can all read it.
type Request struct {
	Method   string
	Path     string
	ClientIP string
	Headers  http.Header
	Query    url.Values
	Body     []byte
}

// UserAgent returns the User-Agent header.
func (r *Request) UserAgent() string {
	return r.Headers.Get("User-Agent")
}

// Response is the outcome written back to the client.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}
