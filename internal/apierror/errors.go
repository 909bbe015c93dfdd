// Package apierror defines the error taxonomy shared by all gateway
// policy stages. Every stage converts its internal failure into exactly
// one Error; the pipeline orchestrator formats it into a response and
// never reinterprets the kind or code.
package apierror

import (
	"fmt"
	"net/http"
)

// Kind classifies an error into the gateway taxonomy.
type Kind int

const (
	// KindBadRequest indicates a malformed or rejected request.
	KindBadRequest Kind = iota

	// KindUnauthorized indicates a missing, invalid, or expired credential.
	KindUnauthorized

	// KindForbidden indicates a path, IP, or bot policy denial.
	KindForbidden

	// KindRateLimited indicates a rate limit was exceeded.
	KindRateLimited

	// KindCircuitOpen indicates the circuit breaker rejected the request.
	KindCircuitOpen

	// KindUnavailable indicates a backend failure.
	KindUnavailable

	// KindInternal indicates an unexpected gateway fault.
	KindInternal
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindCircuitOpen:
		return "circuit_open"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to an HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindCircuitOpen, KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Stable error codes surfaced to clients.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeAPIKeyMissing       = "API_KEY_MISSING"
	CodeAPIKeyInvalid       = "API_KEY_INVALID"
	CodeAPIKeyExpired       = "API_KEY_EXPIRED"
	CodeAPIKeyDisabled      = "API_KEY_DISABLED"
	CodeAPIKeyPathDenied    = "API_KEY_PATH_NOT_ALLOWED"
	CodeAPIKeyIPDenied      = "API_KEY_IP_NOT_ALLOWED"
	CodeJWTMissing          = "JWT_MISSING"
	CodeJWTInvalid          = "JWT_INVALID"
	CodeJWTExpired          = "JWT_EXPIRED"
	CodeOAuthTokenInvalid   = "OAUTH_TOKEN_INVALID"
	CodeOAuthTokenInactive  = "OAUTH_TOKEN_INACTIVE"
	CodeIPBlocked           = "IP_BLOCKED"
	CodeBotBlocked          = "BOT_BLOCKED"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeCircuitBreakerOpen  = "CIRCUIT_BREAKER_OPEN"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeGatewayError        = "GATEWAY_ERROR"
)

// Error is the tagged error type carried through the pipeline. It
// replaces a per-feature exception hierarchy with a single kind enum
// plus structured detail fields.
type Error struct {
	// Kind is the taxonomy classification.
	Kind Kind

	// Code is the stable machine-readable code.
	Code string

	// Message is the human-readable message.
	Message string

	// Cause is the underlying error, if any. Never surfaced to clients.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a new Error wrapping a cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Body is the JSON error body returned to clients.
type Body struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ResponseBody builds the client-facing body for the error.
func (e *Error) ResponseBody() Body {
	return Body{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Kind.HTTPStatus(),
	}
}
