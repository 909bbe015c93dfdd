package jwt

import (
	"net/http"
	"strings"
)

// ExtractorConfig controls where tokens are read from.
type ExtractorConfig struct {
	// Header is the token header. Defaults to Authorization.
	Header string

	// Scheme is the expected scheme prefix. Defaults to Bearer.
	Scheme string
}

// Extract returns the presented token, stripped of its scheme prefix.
// A header carrying a different scheme yields an empty token.
func Extract(cfg ExtractorConfig, headers http.Header) string {
	header := cfg.Header
	if header == "" {
		header = "Authorization"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}

	value := headers.Get(header)
	if value == "" {
		return ""
	}

	prefix := scheme + " "
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}

	return ""
}
