package apikey

import (
	"net/http"
	"net/url"
	"strings"
)

// ExtractorConfig controls where key values are read from.
type ExtractorConfig struct {
	// Header is the dedicated key header, checked first.
	Header string

	// AllowQueryParam permits extraction from QueryParam as a last
	// resort. Off by default since keys in URLs leak into access logs.
	AllowQueryParam bool
	QueryParam      string
}

// DefaultExtractorConfig returns the default extraction settings.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Header:     "X-API-Key",
		QueryParam: "api_key",
	}
}

// Extract returns the presented key value, trying the dedicated
// header, then an "ApiKey" scheme in Authorization, then the query
// parameter when enabled. The first non-empty source wins.
func Extract(cfg ExtractorConfig, headers http.Header, query url.Values) string {
	header := cfg.Header
	if header == "" {
		header = "X-API-Key"
	}
	if v := headers.Get(header); v != "" {
		return v
	}

	if auth := headers.Get("Authorization"); auth != "" {
		const scheme = "apikey "
		if len(auth) > len(scheme) && strings.EqualFold(auth[:len(scheme)], scheme) {
			return strings.TrimSpace(auth[len(scheme):])
		}
	}

	if cfg.AllowQueryParam {
		param := cfg.QueryParam
		if param == "" {
			param = "api_key"
		}
		if v := query.Get(param); v != "" {
			return v
		}
	}

	return ""
}
