package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/policygw/internal/analytics"
	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/backend"
	"github.com/vyrodovalexey/policygw/internal/cache"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/transform"
)

// Orchestrator runs the ordered admission stages, calls the backend,
// and executes the guaranteed post-stages (cache write, response
// transform, analytics). A stage denial short-circuits everything
// after it except the post-stages; analytics records exactly once per
// request regardless of outcome.
type Orchestrator struct {
	stages      []Stage
	caller      backend.Caller
	cacheStore  cache.Store
	transformer *transform.Transformer
	recorder    *analytics.Recorder
	logger      observability.Logger
	now         func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger observability.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithOrchestratorClock sets the time source.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithCacheStore enables the cache write post-stage.
func WithCacheStore(store cache.Store) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cacheStore = store
	}
}

// WithTransformer enables the response transform post-stage.
func WithTransformer(t *transform.Transformer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// WithRecorder enables analytics recording.
func WithRecorder(r *analytics.Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// NewOrchestrator creates an orchestrator running the given stages in
// priority order against the given backend.
func NewOrchestrator(stages []Stage, caller backend.Caller, opts ...OrchestratorOption) *Orchestrator {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	o := &Orchestrator{
		stages: sorted,
		caller: caller,
		logger: observability.NopLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Handle runs one request through the full pipeline and returns the
// response to write. Never panics; a panicking stage yields a
// GATEWAY_ERROR response.
func (o *Orchestrator) Handle(ctx context.Context, req *Request) *Response {
	rc := NewContext(o.now())

	ctx, span := tracer().Start(ctx, "pipeline.handle", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
		attribute.String("gateway.trace_id", rc.TraceID),
	))
	defer span.End()

	o.runStages(ctx, req, rc)

	var resp *Response
	switch {
	case rc.Denial != nil:
		resp = o.errorResponse(rc.Denial)
	case rc.CacheHit:
		resp = &Response{
			StatusCode: rc.Cached.StatusCode,
			Headers:    rc.Cached.Headers.Clone(),
			Body:       rc.Cached.Body,
		}
	default:
		resp = o.callBackend(ctx, req, rc)
	}

	o.writeCache(ctx, req, rc, resp)
	o.setPipelineHeaders(rc, resp)
	if o.transformer != nil {
		o.transformer.Apply(resp.Headers)
	}
	o.recordAnalytics(req, rc, resp)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if rc.Denial != nil {
		span.SetStatus(codes.Error, rc.Denial.Code)
		span.SetAttributes(attribute.String("gateway.denial_stage", rc.DenialStage))
	}

	return resp
}

func tracer() trace.Tracer {
	return otel.Tracer("policygw/pipeline")
}

// runStages executes admission stages in order until one denies.
func (o *Orchestrator) runStages(ctx context.Context, req *Request, rc *Context) {
	for _, stage := range o.stages {
		aerr := o.executeStage(ctx, stage, req, rc)
		if aerr != nil {
			rc.Denial = aerr
			rc.DenialStage = stage.Name()
			recordStage(stage.Name(), "denied")
			return
		}
		recordStage(stage.Name(), "continued")
	}
}

// executeStage runs one stage with panic containment.
func (o *Orchestrator) executeStage(ctx context.Context, stage Stage, req *Request, rc *Context) (aerr *apierror.Error) {
	ctx, span := tracer().Start(ctx, "stage."+stage.Name())
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("stage panicked",
				observability.String("stage", stage.Name()),
				observability.String("trace_id", rc.TraceID),
				observability.Any("panic", r),
			)
			aerr = apierror.Wrap(apierror.KindInternal, apierror.CodeGatewayError,
				"internal gateway error", fmt.Errorf("stage %s panicked: %v", stage.Name(), r))
		}
	}()

	return stage.Execute(ctx, req, rc)
}

// callBackend forwards the request and feeds the outcome to the
// route's breaker when one admitted this request.
func (o *Orchestrator) callBackend(ctx context.Context, req *Request, rc *Context) *Response {
	resp, err := o.caller.Call(ctx, req.Method, req.Path, req.Query, req.Headers, req.Body)
	if err != nil {
		if rc.Breaker != nil {
			rc.Breaker.RecordFailure()
		}
		o.logger.Error("backend call failed",
			observability.String("trace_id", rc.TraceID),
			observability.String("path", req.Path),
			observability.Error(err),
		)
		rc.Denial = apierror.Wrap(apierror.KindUnavailable, apierror.CodeServiceUnavailable,
			"upstream service is unavailable", err)
		rc.DenialStage = "backend"
		return o.errorResponse(rc.Denial)
	}

	if rc.Breaker != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			rc.Breaker.RecordFailure()
		} else {
			rc.Breaker.RecordSuccess()
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// writeCache stores a fresh successful backend response under the
// matched rule's key.
func (o *Orchestrator) writeCache(ctx context.Context, req *Request, rc *Context, resp *Response) {
	if o.cacheStore == nil || rc.CacheRule == nil || rc.CacheHit || rc.Denial != nil {
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return
	}

	now := o.now()
	entry := &cache.CachedResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers.Clone(),
		Body:       resp.Body,
		CachedAt:   now,
		ExpiresAt:  now.Add(rc.CacheRule.TTL),
	}

	if err := o.cacheStore.Put(ctx, rc.CacheKey, entry); err != nil {
		o.logger.Warn("cache write failed",
			observability.String("trace_id", rc.TraceID),
			observability.Error(err),
		)
	}
}

// setPipelineHeaders applies the response header contract: rate limit
// state, bot metadata, cache status, breaker name on rejection, and an
// auth challenge on 401.
func (o *Orchestrator) setPipelineHeaders(rc *Context, resp *Response) {
	if resp.Headers == nil {
		resp.Headers = http.Header{}
	}

	if d := rc.RateLimit; d != nil && d.Rule != nil {
		resp.Headers.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		resp.Headers.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		resp.Headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
		if !d.Allowed {
			retryAfter := int64(d.RetryAfter.Seconds() + 0.999)
			resp.Headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}

	if rc.Bot != nil {
		resp.Headers.Set("X-Bot-Detected", "true")
		resp.Headers.Set("X-Bot-Type", rc.Bot.BotType)
		resp.Headers.Set("X-Bot-Name", rc.Bot.BotName)
	}

	if rc.CacheRule != nil {
		if rc.CacheHit {
			resp.Headers.Set("X-Cache", "HIT")
		} else {
			resp.Headers.Set("X-Cache", "MISS")
		}
	}

	if rc.Denial != nil {
		if rc.Denial.Code == apierror.CodeCircuitBreakerOpen && rc.Breaker != nil {
			resp.Headers.Set("X-Circuit-Breaker", rc.Breaker.Name())
		}
		if rc.Denial.Kind == apierror.KindUnauthorized {
			resp.Headers.Set("WWW-Authenticate", challengeFor(rc.Denial.Code))
		}
	}

	resp.Headers.Set("X-Trace-Id", rc.TraceID)
}

func challengeFor(code string) string {
	switch code {
	case apierror.CodeAPIKeyMissing, apierror.CodeAPIKeyInvalid,
		apierror.CodeAPIKeyExpired, apierror.CodeAPIKeyDisabled:
		return "ApiKey"
	default:
		return "Bearer"
	}
}

// recordAnalytics records the request outcome. Best effort, never
// fails the request.
func (o *Orchestrator) recordAnalytics(req *Request, rc *Context, resp *Response) {
	if o.recorder == nil {
		return
	}

	record := analytics.CallRecord{
		TraceID:    rc.TraceID,
		Timestamp:  rc.StartedAt,
		Method:     req.Method,
		Path:       req.Path,
		ClientIP:   req.ClientIP,
		StatusCode: resp.StatusCode,
		Latency:    o.now().Sub(rc.StartedAt),
		CacheHit:   rc.CacheHit,
	}
	if rc.Principal != nil {
		record.Principal = rc.Principal.ID
	}
	if rc.Denial != nil {
		record.ErrorCode = rc.Denial.Code
	}
	if rc.Bot != nil {
		record.BotDetected = true
	}

	o.recorder.Record(record)
}

func (o *Orchestrator) errorResponse(aerr *apierror.Error) *Response {
	body, err := json.Marshal(aerr.ResponseBody())
	if err != nil {
		body = []byte(`{"code":"GATEWAY_ERROR","message":"internal gateway error","status":500}`)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	return &Response{
		StatusCode: aerr.Kind.HTTPStatus(),
		Headers:    headers,
		Body:       body,
	}
}
