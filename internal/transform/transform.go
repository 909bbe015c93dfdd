// Package transform applies static header rewrites to every outgoing
// response after the pipeline has produced it.
package transform

import "net/http"

// Config controls the response header rewrites.
type Config struct {
	// SetHeaders are applied to every response, replacing existing values.
	SetHeaders map[string]string

	// RemoveHeaders are stripped from every response.
	RemoveHeaders []string

	// ScrubServerHeader removes the upstream Server header.
	ScrubServerHeader bool
}

// Transformer rewrites response headers.
type Transformer struct {
	config Config
}

// NewTransformer creates a transformer for the given config.
func NewTransformer(config Config) *Transformer {
	return &Transformer{config: config}
}

// Apply mutates the given response headers in place.
func (t *Transformer) Apply(headers http.Header) {
	if t.config.ScrubServerHeader {
		headers.Del("Server")
	}

	for _, name := range t.config.RemoveHeaders {
		headers.Del(name)
	}

	for name, value := range t.config.SetHeaders {
		headers.Set(name, value)
	}
}
