// Package analytics records per-request outcomes and aggregates them
// into metrics and dashboard summaries. Recording is best-effort: a
// failure here never fails the request being recorded.
package analytics

import "time"

// CallRecord is one completed request. Append-only; records are never
// updated after being written.
type CallRecord struct {
	ID         string        `json:"id"`
	TraceID    string        `json:"traceId"`
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	ClientIP   string        `json:"clientIp"`
	StatusCode int           `json:"statusCode"`
	Latency    time.Duration `json:"latencyMs"`

	// Principal is the authenticated identity, if any.
	Principal string `json:"principal,omitempty"`

	// ErrorCode is the taxonomy code on denial or failure.
	ErrorCode string `json:"errorCode,omitempty"`

	// CacheHit reports whether the response was served from cache.
	CacheHit bool `json:"cacheHit"`

	// BotDetected reports whether the client was classified as a bot.
	BotDetected bool `json:"botDetected"`
}

// IsError reports whether the record represents a failed request.
func (r *CallRecord) IsError() bool {
	return r.StatusCode >= 400
}
