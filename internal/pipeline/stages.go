package pipeline

import (
	"context"
	"strings"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/auth/apikey"
	"github.com/vyrodovalexey/policygw/internal/auth/jwt"
	"github.com/vyrodovalexey/policygw/internal/auth/oauth"
	"github.com/vyrodovalexey/policygw/internal/botdetect"
	"github.com/vyrodovalexey/policygw/internal/cache"
	"github.com/vyrodovalexey/policygw/internal/circuitbreaker"
	"github.com/vyrodovalexey/policygw/internal/iprestrict"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/ratelimit"
	"github.com/vyrodovalexey/policygw/internal/validation"
)

// BotDetectStage classifies the client and denies blocked bots.
type BotDetectStage struct {
	policy   StagePolicy
	detector *botdetect.Detector
}

// NewBotDetectStage creates the bot detection stage.
func NewBotDetectStage(policy StagePolicy, detector *botdetect.Detector) *BotDetectStage {
	return &BotDetectStage{policy: policy, detector: detector}
}

func (s *BotDetectStage) Name() string  { return "bot-detection" }
func (s *BotDetectStage) Priority() int { return PriorityBotDetection }

func (s *BotDetectStage) Execute(_ context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}

	result := s.detector.Detect(req.UserAgent(), req.ClientIP)
	if result.IsBot {
		rc.Bot = &result
	}

	if s.detector.ShouldBlock(result) {
		return apierror.New(apierror.KindForbidden, apierror.CodeBotBlocked, "automated clients are not allowed")
	}
	return nil
}

// RateLimitStage consumes from every matching rate limit counter.
type RateLimitStage struct {
	policy    StagePolicy
	limiter   *ratelimit.Limiter
	keyCfg    apikey.ExtractorConfig
	bearerCfg jwt.ExtractorConfig
}

// NewRateLimitStage creates the rate limiting stage. The extractor
// configs derive the apiKey and user identifiers from credentials the
// client presented, before the auth stages have validated them.
func NewRateLimitStage(
	policy StagePolicy,
	limiter *ratelimit.Limiter,
	keyCfg apikey.ExtractorConfig,
	bearerCfg jwt.ExtractorConfig,
) *RateLimitStage {
	return &RateLimitStage{policy: policy, limiter: limiter, keyCfg: keyCfg, bearerCfg: bearerCfg}
}

func (s *RateLimitStage) Name() string  { return "rate-limit" }
func (s *RateLimitStage) Priority() int { return PriorityRateLimit }

func (s *RateLimitStage) Execute(ctx context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}

	identifiers := map[ratelimit.IdentifierType]string{
		ratelimit.IdentifierIP:     req.ClientIP,
		ratelimit.IdentifierAPIKey: apikey.Extract(s.keyCfg, req.Headers, req.Query),
		ratelimit.IdentifierUser:   jwt.Extract(s.bearerCfg, req.Headers),
	}

	decision := s.limiter.CheckAndConsume(ctx, req.Method, req.Path, identifiers)
	rc.RateLimit = &decision

	if !decision.Allowed {
		return apierror.New(apierror.KindRateLimited, apierror.CodeRateLimitExceeded, "rate limit exceeded")
	}
	return nil
}

// ValidationStage evaluates CEL rules against the request.
type ValidationStage struct {
	policy    StagePolicy
	validator *validation.Validator
}

// NewValidationStage creates the request validation stage.
func NewValidationStage(policy StagePolicy, validator *validation.Validator) *ValidationStage {
	return &ValidationStage{policy: policy, validator: validator}
}

func (s *ValidationStage) Name() string  { return "validation" }
func (s *ValidationStage) Priority() int { return PriorityValidation }

func (s *ValidationStage) Execute(_ context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}
	return s.validator.Validate(req.Method, req.Path, req.ClientIP, req.Headers, req.Query, int64(len(req.Body)))
}

// IPRestrictStage enforces the IP blacklist and whitelist.
type IPRestrictStage struct {
	policy     StagePolicy
	restrictor *iprestrict.Restrictor
}

// NewIPRestrictStage creates the IP restriction stage.
func NewIPRestrictStage(policy StagePolicy, restrictor *iprestrict.Restrictor) *IPRestrictStage {
	return &IPRestrictStage{policy: policy, restrictor: restrictor}
}

func (s *IPRestrictStage) Name() string  { return "ip-restriction" }
func (s *IPRestrictStage) Priority() int { return PriorityIPRestriction }

func (s *IPRestrictStage) Execute(_ context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}
	return s.restrictor.CheckAccess(req.ClientIP)
}

// APIKeyStage authenticates API keys, enforces each key's optional
// per-second limit, and records the principal.
type APIKeyStage struct {
	policy    StagePolicy
	extractor apikey.ExtractorConfig
	validator *apikey.Validator
	gate      *apikey.RateGate
}

// NewAPIKeyStage creates the API key authentication stage.
func NewAPIKeyStage(policy StagePolicy, extractor apikey.ExtractorConfig, validator *apikey.Validator) *APIKeyStage {
	return &APIKeyStage{
		policy:    policy,
		extractor: extractor,
		validator: validator,
		gate:      apikey.NewRateGate(),
	}
}

func (s *APIKeyStage) Name() string  { return "api-key" }
func (s *APIKeyStage) Priority() int { return PriorityAPIKey }

func (s *APIKeyStage) Execute(_ context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}

	value := apikey.Extract(s.extractor, req.Headers, req.Query)
	key, aerr := s.validator.Validate(value, req.Path, req.ClientIP)
	if aerr != nil {
		return aerr
	}

	if !s.gate.Allow(key.ID, key.RateLimitPerSecond) {
		return apierror.New(apierror.KindRateLimited, apierror.CodeRateLimitExceeded,
			"API key rate limit exceeded")
	}

	rc.Principal = &Principal{Type: "apiKey", ID: key.ID, Name: key.Name}
	return nil
}

// OAuthStage validates opaque tokens via introspection.
type OAuthStage struct {
	policy    StagePolicy
	extractor jwt.ExtractorConfig
	client    *oauth.Client
}

// NewOAuthStage creates the OAuth2 introspection stage.
func NewOAuthStage(policy StagePolicy, extractor jwt.ExtractorConfig, client *oauth.Client) *OAuthStage {
	return &OAuthStage{policy: policy, extractor: extractor, client: client}
}

func (s *OAuthStage) Name() string  { return "oauth" }
func (s *OAuthStage) Priority() int { return PriorityOAuth }

func (s *OAuthStage) Execute(ctx context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}

	token := jwt.Extract(s.extractor, req.Headers)
	result, aerr := s.client.Validate(ctx, token)
	if aerr != nil {
		return aerr
	}

	rc.Principal = &Principal{Type: "oauth", ID: result.Subject, Name: result.Username}
	return nil
}

// JWTStage validates bearer tokens and records the claims subject.
type JWTStage struct {
	policy    StagePolicy
	extractor jwt.ExtractorConfig
	validator *jwt.Validator
}

// NewJWTStage creates the JWT validation stage.
func NewJWTStage(policy StagePolicy, extractor jwt.ExtractorConfig, validator *jwt.Validator) *JWTStage {
	return &JWTStage{policy: policy, extractor: extractor, validator: validator}
}

func (s *JWTStage) Name() string  { return "jwt" }
func (s *JWTStage) Priority() int { return PriorityJWT }

func (s *JWTStage) Execute(ctx context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}

	token := jwt.Extract(s.extractor, req.Headers)
	claims, aerr := s.validator.Validate(ctx, token)
	if aerr != nil {
		return aerr
	}

	rc.Principal = &Principal{Type: "jwt", ID: claims.Subject}
	return nil
}

// CircuitBreakerStage admits or rejects per the route's breaker. The
// orchestrator records the backend outcome on rc.Breaker afterwards.
type CircuitBreakerStage struct {
	policy   StagePolicy
	registry *circuitbreaker.Registry
}

// NewCircuitBreakerStage creates the circuit breaker admission stage.
func NewCircuitBreakerStage(policy StagePolicy, registry *circuitbreaker.Registry) *CircuitBreakerStage {
	return &CircuitBreakerStage{policy: policy, registry: registry}
}

func (s *CircuitBreakerStage) Name() string  { return "circuit-breaker" }
func (s *CircuitBreakerStage) Priority() int { return PriorityCircuitBreaker }

func (s *CircuitBreakerStage) Execute(_ context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) {
		return nil
	}

	breaker := s.registry.ForPath(req.Path)
	rc.Breaker = breaker

	if !breaker.Allow() {
		return apierror.New(apierror.KindCircuitOpen, apierror.CodeCircuitBreakerOpen, "upstream is temporarily unavailable")
	}
	return nil
}

// CacheLookupStage serves eligible requests from the response cache.
type CacheLookupStage struct {
	policy  StagePolicy
	store   cache.Store
	rules   *cache.RuleSet
	methods []string
	logger  observability.Logger
}

// NewCacheLookupStage creates the cache lookup stage. Only the listed
// methods are eligible; empty defaults to GET.
func NewCacheLookupStage(
	policy StagePolicy,
	store cache.Store,
	rules *cache.RuleSet,
	methods []string,
	logger observability.Logger,
) *CacheLookupStage {
	if len(methods) == 0 {
		methods = []string{"GET"}
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &CacheLookupStage{policy: policy, store: store, rules: rules, methods: methods, logger: logger}
}

func (s *CacheLookupStage) Name() string  { return "cache-lookup" }
func (s *CacheLookupStage) Priority() int { return PriorityCacheLookup }

func (s *CacheLookupStage) Execute(ctx context.Context, req *Request, rc *Context) *apierror.Error {
	if s.policy.Skip(req.Path) || !s.methodEligible(req.Method) {
		return nil
	}

	rule := s.rules.Match(req.Method, req.Path)
	if rule == nil {
		return nil
	}

	rc.CacheRule = rule
	rc.CacheKey = cache.Key(rule, req.Path, req.Query, req.Headers)

	cached, ok, err := s.store.Get(ctx, rc.CacheKey)
	if err != nil {
		// A failing store is a miss, not a request failure.
		s.logger.Warn("cache lookup failed", observability.Error(err))
		return nil
	}
	if ok {
		rc.CacheHit = true
		rc.Cached = cached
	}
	return nil
}

func (s *CacheLookupStage) methodEligible(method string) bool {
	for _, m := range s.methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
