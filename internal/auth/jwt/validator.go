package jwt

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/observability"
)

// Validator validates JWT tokens and returns their claims.
type Validator struct {
	config Config
	logger observability.Logger

	jwksCache *jwk.Cache
	secretKey []byte
	algorithm jwa.SignatureAlgorithm
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a validator. When a JWKS URL is configured, the
// key set is fetched through a refreshing cache bound to ctx.
func NewValidator(ctx context.Context, config Config, opts ...ValidatorOption) (*Validator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	v := &Validator{
		config: config,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if config.JWKSURL != "" {
		cache := jwk.NewCache(ctx)
		if err := cache.Register(config.JWKSURL, jwk.WithMinRefreshInterval(config.JWKSRefreshInterval)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
		}
		v.jwksCache = cache
	} else {
		v.secretKey = []byte(config.Secret)
		v.algorithm = jwa.SignatureAlgorithm(config.Algorithm)
	}

	return v, nil
}

// Validate verifies a token's signature and time claims and returns
// its claims. Each failure maps to a distinct stable error code.
func (v *Validator) Validate(ctx context.Context, token string) (*Claims, *apierror.Error) {
	if token == "" {
		recordValidation("missing")
		return nil, apierror.New(apierror.KindUnauthorized, apierror.CodeJWTMissing, "bearer token is required")
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.config.ClockSkew),
	}

	if v.jwksCache != nil {
		set, err := v.jwksCache.Get(ctx, v.config.JWKSURL)
		if err != nil {
			v.logger.Error("failed to fetch JWKS", observability.Error(err))
			recordValidation("jwks_error")
			return nil, apierror.Wrap(apierror.KindUnauthorized, apierror.CodeJWTInvalid, "token verification unavailable", err)
		}
		parseOpts = append(parseOpts, jwt.WithKeySet(set))
	} else {
		parseOpts = append(parseOpts, jwt.WithKey(v.algorithm, v.secretKey))
	}

	if v.config.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.config.Audience))
	}

	tok, err := jwt.Parse([]byte(token), parseOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			recordValidation("expired")
			return nil, apierror.Wrap(apierror.KindUnauthorized, apierror.CodeJWTExpired, "token has expired", err)
		}
		recordValidation("invalid")
		return nil, apierror.Wrap(apierror.KindUnauthorized, apierror.CodeJWTInvalid, "token is invalid", err)
	}

	recordValidation("ok")
	return claimsFromToken(tok), nil
}
