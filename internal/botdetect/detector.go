// Package botdetect classifies requests as bot or human traffic from
// User-Agent signatures and a per-client request-rate heuristic.
package botdetect

import (
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/policygw/internal/observability"
)

// Detection methods reported in results.
const (
	MethodUserAgentSignature = "user-agent-signature"
	MethodMissingUserAgent   = "missing-user-agent"
	MethodRatePattern        = "rate-pattern"
)

// Result is the outcome of a bot classification.
type Result struct {
	IsBot           bool
	BotType         string
	BotName         string
	Confidence      float64
	DetectionMethod string

	// Allowed reports whether the bot may proceed even when blocking
	// is on.
	Allowed bool
}

// Config holds bot detector settings.
type Config struct {
	// BlockBots denies detected bots that are not allowed.
	BlockBots bool

	// AllowedBots admit the named bots regardless of BlockBots.
	AllowedBots []string

	// CustomSignatures are checked before the built-in set.
	CustomSignatures []Signature

	// RatePattern enables the per-client request-rate heuristic.
	RatePattern RatePatternConfig
}

// RatePatternConfig bounds the sustained request rate per client IP
// before the client is classified as a bot.
type RatePatternConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// maxTrackedClients bounds the rate limiter map. When exceeded the map
// is dropped and rebuilt, trading brief amnesia for bounded memory.
const maxTrackedClients = 100000

// Detector classifies requests. Safe for concurrent use.
type Detector struct {
	config     Config
	signatures []Signature
	allowed    map[string]bool
	logger     observability.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorLogger sets the logger.
func WithDetectorLogger(logger observability.Logger) DetectorOption {
	return func(d *Detector) {
		d.logger = logger
	}
}

// NewDetector creates a detector with custom signatures ahead of the
// built-in set.
func NewDetector(config Config, opts ...DetectorOption) *Detector {
	signatures := make([]Signature, 0, len(config.CustomSignatures)+len(builtinSignatures))
	signatures = append(signatures, config.CustomSignatures...)
	signatures = append(signatures, builtinSignatures...)

	allowed := make(map[string]bool, len(config.AllowedBots))
	for _, name := range config.AllowedBots {
		allowed[strings.ToLower(name)] = true
	}

	d := &Detector{
		config:     config,
		signatures: signatures,
		allowed:    allowed,
		logger:     observability.NopLogger(),
		limiters:   make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect classifies a request from its User-Agent and client IP.
func (d *Detector) Detect(userAgent, clientIP string) Result {
	if userAgent == "" {
		result := Result{
			IsBot:           true,
			BotType:         "generic",
			BotName:         "unknown",
			Confidence:      0.6,
			DetectionMethod: MethodMissingUserAgent,
		}
		result.Allowed = d.isAllowed(result.BotName)
		recordDetection(result.BotType, result.DetectionMethod)
		return result
	}

	lowered := strings.ToLower(userAgent)
	for _, sig := range d.signatures {
		if strings.Contains(lowered, sig.Pattern) {
			result := Result{
				IsBot:           true,
				BotType:         sig.Type,
				BotName:         sig.Name,
				Confidence:      sig.Confidence,
				DetectionMethod: MethodUserAgentSignature,
				Allowed:         sig.AllowedByDefault || d.isAllowed(sig.Name),
			}
			recordDetection(result.BotType, result.DetectionMethod)
			return result
		}
	}

	if d.config.RatePattern.Enabled && clientIP != "" && !d.allowRate(clientIP) {
		result := Result{
			IsBot:           true,
			BotType:         "rate-abuser",
			BotName:         "rate-pattern",
			Confidence:      0.8,
			DetectionMethod: MethodRatePattern,
			Allowed:         d.isAllowed("rate-pattern"),
		}
		recordDetection(result.BotType, result.DetectionMethod)
		return result
	}

	return Result{}
}

// ShouldBlock applies the blocking policy to a result.
func (d *Detector) ShouldBlock(result Result) bool {
	return d.config.BlockBots && result.IsBot && !result.Allowed
}

func (d *Detector) isAllowed(name string) bool {
	return d.allowed[strings.ToLower(name)]
}

// allowRate consumes one token from the client's limiter, creating it
// on first sight.
func (d *Detector) allowRate(clientIP string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.limiters) > maxTrackedClients {
		d.logger.Warn("bot detector client map reset",
			observability.Int("tracked", len(d.limiters)),
		)
		d.limiters = make(map[string]*rate.Limiter)
	}

	limiter, ok := d.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.config.RatePattern.RequestsPerSecond), d.config.RatePattern.Burst)
		d.limiters[clientIP] = limiter
	}

	return limiter.Allow()
}
