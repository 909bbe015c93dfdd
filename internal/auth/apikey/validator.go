package apikey

import (
	"net"
	"strings"
	"time"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/pathmatch"
)

// Validator validates presented API keys against the store and the
// per-key path and IP allow-lists.
type Validator struct {
	store  Store
	logger observability.Logger
	now    func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithValidatorClock sets the time source.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a validator over the given store.
func NewValidator(store Store, opts ...ValidatorOption) *Validator {
	v := &Validator{
		store:  store,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate checks a presented key value for the given request path and
// client IP. Each failure maps to a distinct stable error code.
func (v *Validator) Validate(value, path, clientIP string) (*Key, *apierror.Error) {
	if value == "" {
		recordValidation("missing")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeAPIKeyMissing, "API key is required")
	}

	key := v.store.Lookup(value)
	if key == nil {
		recordValidation("invalid")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeAPIKeyInvalid, "API key is not recognized")
	}

	if !key.Enabled {
		recordValidation("disabled")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeAPIKeyDisabled, "API key is disabled")
	}

	if key.IsExpired(v.now()) {
		recordValidation("expired")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeAPIKeyExpired, "API key has expired")
	}

	if len(key.AllowedPaths) > 0 && !pathmatch.MatchAny(path, key.AllowedPaths) {
		recordValidation("path_denied")
		return nil, apierror.New(apierror.KindForbidden, apierror.CodeAPIKeyPathDenied, "API key is not allowed for this path")
	}

	if len(key.AllowedIPs) > 0 && !ipAllowed(key.AllowedIPs, clientIP) {
		recordValidation("ip_denied")
		return nil, apierror.New(apierror.KindForbidden, apierror.CodeAPIKeyIPDenied, "API key is not allowed from this IP")
	}

	recordValidation("ok")
	return key, nil
}

// ipAllowed reports whether ip matches any entry. Entries are exact
// IPs or CIDR blocks.
func ipAllowed(entries []string, ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if _, block, err := net.ParseCIDR(entry); err == nil && block.Contains(parsed) {
				return true
			}
			continue
		}
		if candidate := net.ParseIP(entry); candidate != nil && candidate.Equal(parsed) {
			return true
		}
	}

	return false
}
