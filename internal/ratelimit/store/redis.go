package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	redisStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_redis_operations_total",
			Help: "Total number of rate limit Redis operations",
		},
		[]string{"operation", "status"},
	)

	redisStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratelimit_redis_operation_duration_seconds",
			Help:    "Duration of rate limit Redis operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// incrementScript atomically increments the counter of the aligned
// window containing now, setting the expiry when the window is created.
// KEYS[1] = base key
// ARGV[1] = window length in ms
// ARGV[2] = now in ms
// Returns {count, window start in ms}.
var incrementScript = redis.NewScript(`
	local window_ms = tonumber(ARGV[1])
	local now_ms = tonumber(ARGV[2])
	local window_start = math.floor(now_ms / window_ms) * window_ms
	local window_key = KEYS[1] .. ':' .. window_start

	local count = redis.call('INCRBY', window_key, 1)
	if count == 1 then
		redis.call('PEXPIRE', window_key, window_ms * 2)
	end

	return {count, window_start}
`)

// RedisStore implements Store using Redis. Counters live under
// per-window keys derived from the aligned window start, so multiple
// gateway instances sharing the Redis agree on counts.
type RedisStore struct {
	client *redis.Client
	prefix string
	closed bool
	mu     sync.Mutex

	now func() time.Time
}

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
	PoolSize    int
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		Prefix:      "ratelimit:",
		DialTimeout: 5 * time.Second,
		PoolSize:    10,
	}
}

// NewRedisStore creates a Redis-backed counter store and verifies the
// connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit:"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, windowLen time.Duration) (int64, time.Time, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	nowMs := s.now().UnixMilli()
	windowMs := windowLen.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	result, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, windowMs, nowMs).Result()

	redisStoreOperationDuration.WithLabelValues("increment").Observe(time.Since(start).Seconds())

	if err != nil {
		redisStoreOperationsTotal.WithLabelValues("increment", "error").Inc()
		return 0, time.Time{}, fmt.Errorf("redis script error: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		redisStoreOperationsTotal.WithLabelValues("increment", "error").Inc()
		return 0, time.Time{}, fmt.Errorf("redis script returned unexpected result: %v", result)
	}

	count, ok1 := values[0].(int64)
	startMs, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		redisStoreOperationsTotal.WithLabelValues("increment", "error").Inc()
		return 0, time.Time{}, fmt.Errorf("redis script returned unexpected types: %v", result)
	}

	redisStoreOperationsTotal.WithLabelValues("increment", "success").Inc()
	return count, time.UnixMilli(startMs), nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, key string, windowLen time.Duration) (int64, time.Time, error) {
	opStart := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	start := windowStart(s.now(), windowLen)
	windowKey := fmt.Sprintf("%s%s:%d", s.prefix, key, start.UnixMilli())

	val, err := s.client.Get(ctx, windowKey).Result()

	redisStoreOperationDuration.WithLabelValues("count").Observe(time.Since(opStart).Seconds())

	if err == redis.Nil {
		redisStoreOperationsTotal.WithLabelValues("count", "not_found").Inc()
		return 0, start, nil
	}
	if err != nil {
		redisStoreOperationsTotal.WithLabelValues("count", "error").Inc()
		return 0, time.Time{}, fmt.Errorf("redis get error: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		redisStoreOperationsTotal.WithLabelValues("count", "error").Inc()
		return 0, time.Time{}, fmt.Errorf("failed to parse counter: %w", err)
	}

	redisStoreOperationsTotal.WithLabelValues("count", "success").Inc()
	return count, start, nil
}

// Reset implements Store. It removes all window keys for the base key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pattern := s.prefix + key + ":*"

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			redisStoreOperationsTotal.WithLabelValues("reset", "error").Inc()
			return fmt.Errorf("redis del error: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		redisStoreOperationsTotal.WithLabelValues("reset", "error").Inc()
		return fmt.Errorf("redis scan error: %w", err)
	}

	redisStoreOperationsTotal.WithLabelValues("reset", "success").Inc()
	return nil
}

// Close implements Store. Close is idempotent.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
