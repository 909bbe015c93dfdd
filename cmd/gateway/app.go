package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/policygw/internal/analytics"
	"github.com/vyrodovalexey/policygw/internal/auth/apikey"
	authjwt "github.com/vyrodovalexey/policygw/internal/auth/jwt"
	"github.com/vyrodovalexey/policygw/internal/auth/oauth"
	"github.com/vyrodovalexey/policygw/internal/backend"
	"github.com/vyrodovalexey/policygw/internal/botdetect"
	"github.com/vyrodovalexey/policygw/internal/cache"
	"github.com/vyrodovalexey/policygw/internal/circuitbreaker"
	"github.com/vyrodovalexey/policygw/internal/config"
	"github.com/vyrodovalexey/policygw/internal/gateway"
	"github.com/vyrodovalexey/policygw/internal/iprestrict"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/pipeline"
	"github.com/vyrodovalexey/policygw/internal/ratelimit"
	ratelimitstore "github.com/vyrodovalexey/policygw/internal/ratelimit/store"
	"github.com/vyrodovalexey/policygw/internal/transform"
	"github.com/vyrodovalexey/policygw/internal/validation"
)

// app holds the wired gateway components. The mutable rule holders
// (limiter, validator, key store, restrictor) are kept so the config
// watcher can swap their contents on reload.
type app struct {
	cfg    *config.Config
	logger observability.Logger

	limiter    *ratelimit.Limiter
	validator  *validation.Validator
	keyStore   *apikey.MemoryStore
	restrictor *iprestrict.Restrictor
	breakers   *circuitbreaker.Registry
	recorder   *analytics.Recorder
	aggregator *analytics.Aggregator

	ratelimitStore ratelimitstore.Store
	cacheStore     cache.Store

	orchestrator *pipeline.Orchestrator
}

func run(cfg *config.Config, configPath string, logger observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.StartTracing(ctx, observability.TracingConfig{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Endpoint:     cfg.Tracing.Endpoint,
		Insecure:     cfg.Tracing.Insecure,
		SampleRate:   cfg.Tracing.SampleRate,
		BatchTimeout: cfg.Tracing.BatchTimeout.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	watcher, err := config.NewWatcher(configPath, a.applyDynamicConfig,
		config.WithWatcherLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	handler := gateway.NewHandler(a.orchestrator,
		gateway.WithHandlerLogger(logger),
		gateway.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)

	dataServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("gateway listening", observability.String("addr", cfg.Server.ListenAddr))
		if err := dataServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("data server failed: %w", err)
		}
	}()

	var opsServer *http.Server
	if cfg.Server.OpsAddr != "" {
		opsServer = &http.Server{
			Addr:    cfg.Server.OpsAddr,
			Handler: a.opsRouter(),
		}
		go func() {
			logger.Info("ops listening", observability.String("addr", cfg.Server.OpsAddr))
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("ops server failed: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := dataServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("data server shutdown failed", observability.Error(err))
	}
	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown failed", observability.Error(err))
		}
	}

	return nil
}

// newApp wires every component from the configuration.
func newApp(ctx context.Context, cfg *config.Config, logger observability.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var err error
	if a.ratelimitStore, err = newRatelimitStore(cfg.RateLimit); err != nil {
		return nil, err
	}
	if a.cacheStore, err = newCacheStore(cfg.Cache); err != nil {
		return nil, err
	}

	a.limiter = ratelimit.NewLimiter(a.ratelimitStore, buildRateLimitRules(cfg.RateLimit.Rules),
		ratelimit.WithLogger(logger),
	)

	a.validator, err = validation.NewValidator(buildValidationSpecs(cfg.Validation.Rules),
		validation.WithValidatorLogger(logger),
		validation.WithMaxBodyBytes(cfg.Validation.MaxBodyBytes),
		validation.WithRequiredHeaders(cfg.Validation.RequiredHeaders),
		validation.WithAllowedContentTypes(cfg.Validation.AllowedContentTypes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build validation rules: %w", err)
	}

	a.keyStore = apikey.NewMemoryStore(buildAPIKeys(cfg.APIKey.Keys))

	a.restrictor = iprestrict.NewRestrictor(
		buildIPEntries(cfg.IPRestriction.Whitelist, logger),
		buildIPEntries(cfg.IPRestriction.Blacklist, logger),
		iprestrict.WithRestrictorLogger(logger),
	)
	if cfg.IPRestriction.Enabled {
		a.restrictor.StartPruning(ctx, cfg.IPRestriction.CleanupInterval.Duration())
	}

	a.breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		OpenTimeout:      cfg.CircuitBreaker.OpenTimeout.Duration(),
	}, logger)

	repo := analytics.NewMemoryRepository(cfg.Analytics.MaxRecords)
	a.aggregator = analytics.NewAggregator(repo, cfg.Analytics.TopN)
	if cfg.Analytics.Enabled {
		a.recorder = analytics.NewRecorder(repo, analytics.WithRecorderLogger(logger))
		a.recorder.StartCleanup(ctx, cfg.Analytics.CleanupInterval.Duration(), cfg.Analytics.Retention.Duration())
	}

	stages, err := a.buildStages(ctx)
	if err != nil {
		return nil, err
	}

	caller, err := backend.NewHTTPCaller(backend.Config{
		TargetURL:       cfg.Backend.TargetURL,
		Timeout:         cfg.Backend.Timeout.Duration(),
		MaxIdleConns:    cfg.Backend.MaxIdleConns,
		IdleConnTimeout: cfg.Backend.IdleConnTimeout.Duration(),
	}, backend.WithCallerLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create backend caller: %w", err)
	}

	opts := []pipeline.OrchestratorOption{
		pipeline.WithOrchestratorLogger(logger),
		pipeline.WithTransformer(transform.NewTransformer(transform.Config{
			SetHeaders:        cfg.Transform.SetHeaders,
			RemoveHeaders:     cfg.Transform.RemoveHeaders,
			ScrubServerHeader: cfg.Transform.ScrubServerHeader,
		})),
	}
	if cfg.Cache.Enabled {
		opts = append(opts, pipeline.WithCacheStore(a.cacheStore))
	}
	if a.recorder != nil {
		opts = append(opts, pipeline.WithRecorder(a.recorder))
	}

	a.orchestrator = pipeline.NewOrchestrator(stages, caller, opts...)

	return a, nil
}

// buildStages assembles every configured admission stage.
func (a *app) buildStages(ctx context.Context) ([]pipeline.Stage, error) {
	cfg := a.cfg

	keyExtractor := apikey.ExtractorConfig{
		Header:          cfg.APIKey.Header,
		AllowQueryParam: cfg.APIKey.AllowQueryParam,
		QueryParam:      cfg.APIKey.QueryParam,
	}
	bearerExtractor := authjwt.ExtractorConfig{
		Header: cfg.JWT.Header,
		Scheme: cfg.JWT.Scheme,
	}

	stages := []pipeline.Stage{
		pipeline.NewBotDetectStage(
			policy(cfg.BotDetection.Enabled, cfg.BotDetection.ExcludePaths),
			botdetect.NewDetector(buildBotConfig(cfg.BotDetection), botdetect.WithDetectorLogger(a.logger)),
		),
		pipeline.NewRateLimitStage(
			policy(cfg.RateLimit.Enabled, cfg.RateLimit.ExcludePaths),
			a.limiter,
			keyExtractor,
			bearerExtractor,
		),
		pipeline.NewValidationStage(
			policy(cfg.Validation.Enabled, cfg.Validation.ExcludePaths),
			a.validator,
		),
		pipeline.NewIPRestrictStage(
			policy(cfg.IPRestriction.Enabled, cfg.IPRestriction.ExcludePaths),
			a.restrictor,
		),
		pipeline.NewAPIKeyStage(
			policy(cfg.APIKey.Enabled, cfg.APIKey.ExcludePaths),
			keyExtractor,
			apikey.NewValidator(a.keyStore, apikey.WithValidatorLogger(a.logger)),
		),
		pipeline.NewCircuitBreakerStage(
			policy(cfg.CircuitBreaker.Enabled, cfg.CircuitBreaker.ExcludePaths),
			a.breakers,
		),
		pipeline.NewCacheLookupStage(
			policy(cfg.Cache.Enabled, cfg.Cache.ExcludePaths),
			a.cacheStore,
			buildCacheRules(cfg.Cache.Rules),
			cfg.Cache.Methods,
			a.logger,
		),
	}

	if cfg.OAuth.Enabled {
		client, err := oauth.NewClient(oauth.Config{
			IntrospectionURL: cfg.OAuth.IntrospectionURL,
			ClientID:         cfg.OAuth.ClientID,
			ClientSecret:     cfg.OAuth.ClientSecret,
			CacheTTL:         cfg.OAuth.CacheTTL.Duration(),
			Timeout:          cfg.OAuth.Timeout.Duration(),
		}, oauth.WithClientLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create OAuth client: %w", err)
		}
		stages = append(stages, pipeline.NewOAuthStage(
			policy(true, cfg.OAuth.ExcludePaths),
			bearerExtractor,
			client,
		))
	}

	if cfg.JWT.Enabled {
		jwtConfig := authjwt.DefaultConfig()
		jwtConfig.JWKSURL = cfg.JWT.JWKSURL
		jwtConfig.Secret = cfg.JWT.Secret
		jwtConfig.Algorithm = cfg.JWT.Algorithm
		jwtConfig.Issuer = cfg.JWT.Issuer
		jwtConfig.Audience = cfg.JWT.Audience
		if skew := cfg.JWT.ClockSkew.Duration(); skew > 0 {
			jwtConfig.ClockSkew = skew
		}

		validator, err := authjwt.NewValidator(ctx, jwtConfig, authjwt.WithValidatorLogger(a.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT validator: %w", err)
		}
		stages = append(stages, pipeline.NewJWTStage(
			policy(true, cfg.JWT.ExcludePaths),
			bearerExtractor,
			validator,
		))
	}

	return stages, nil
}

func policy(enabled bool, excludePaths []string) pipeline.StagePolicy {
	return pipeline.StagePolicy{Enabled: enabled, ExcludePaths: excludePaths}
}

func newRatelimitStore(cfg config.RateLimitConfig) (ratelimitstore.Store, error) {
	if cfg.Store == "redis" {
		return ratelimitstore.NewRedisStore(ratelimitstore.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout.Duration(),
			PoolSize:    cfg.Redis.PoolSize,
		})
	}
	return ratelimitstore.NewMemoryStore(), nil
}

func newCacheStore(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Store == "redis" {
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout.Duration(),
			PoolSize:    cfg.Redis.PoolSize,
		})
	}
	return cache.NewMemoryStore(
		cache.WithMaxEntries(cfg.MaxEntries),
		cache.WithSweepInterval(cfg.SweepInterval.Duration()),
	), nil
}

// applyDynamicConfig swaps the hot-reloadable rule sets. Static wiring
// (listeners, stores, stage composition) requires a restart.
func (a *app) applyDynamicConfig(cfg *config.Config) {
	a.limiter.UpdateRules(buildRateLimitRules(cfg.RateLimit.Rules))

	if err := a.validator.UpdateRules(buildValidationSpecs(cfg.Validation.Rules)); err != nil {
		a.logger.Error("keeping previous validation rules", observability.Error(err))
	}

	a.keyStore.Replace(buildAPIKeys(cfg.APIKey.Keys))

	a.restrictor.Replace(
		buildIPEntries(cfg.IPRestriction.Whitelist, a.logger),
		buildIPEntries(cfg.IPRestriction.Blacklist, a.logger),
	)

	a.logger.Info("dynamic configuration applied",
		observability.Int("rate_limit_rules", len(cfg.RateLimit.Rules)),
		observability.Int("validation_rules", len(cfg.Validation.Rules)),
		observability.Int("api_keys", len(cfg.APIKey.Keys)),
	)
}

func (a *app) close() {
	if a.recorder != nil {
		_ = a.recorder.Close()
	}
	if a.ratelimitStore != nil {
		_ = a.ratelimitStore.Close()
	}
	if a.cacheStore != nil {
		_ = a.cacheStore.Close()
	}
}
