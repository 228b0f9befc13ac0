package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/resilience"
)

const (
	defaultKeyPrefix = "jack:telemetry:"
	defaultTTL       = 1 * time.Hour
)

// RedisExecutionStoreOption configures a RedisExecutionStore.
type RedisExecutionStoreOption func(*redisExecutionStoreConfig)

type redisExecutionStoreConfig struct {
	redisURL       string
	redisDB        int
	logger         core.Logger
	circuitBreaker *resilience.CircuitBreaker
	keyPrefix      string
	ttl            time.Duration
	retry          *resilience.RetryConfig
}

// WithRedisURL overrides the connection URL (default: env JACK_REDIS_URL
// or REDIS_URL, falling back to localhost:6379).
func WithRedisURL(url string) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.redisURL = url }
}

// WithRedisDB selects the logical Redis database (default 9, distinct
// from the teacher pack's debug-store DBs so the two can share a
// server).
func WithRedisDB(db int) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.redisDB = db }
}

// WithLogger sets the logger used for best-effort failures (index
// writes, stale-entry cleanup).
func WithLogger(logger core.Logger) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.logger = logger }
}

// WithCircuitBreaker injects a Layer-2 circuit breaker around Redis
// calls. Store, Get and ListRecent run under the built-in Layer-1 retry
// with or without one.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.circuitBreaker = cb }
}

// WithKeyPrefix overrides the Redis key prefix (default "jack:telemetry:").
func WithKeyPrefix(prefix string) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.keyPrefix = prefix }
}

// WithTTL overrides how long a snapshot survives in Redis before expiry
// (default 1h — telemetry, not an audit log).
func WithTTL(ttl time.Duration) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.ttl = ttl }
}

// WithRetryConfig overrides the Layer-1 built-in retry policy.
func WithRetryConfig(cfg *resilience.RetryConfig) RedisExecutionStoreOption {
	return func(c *redisExecutionStoreConfig) { c.retry = cfg }
}

// RedisExecutionStore is the durable telemetry mirror described by
// ExecutionStore, backed by Redis. Resilience follows the same
// three-layer shape used across this module's transport code: Layer 1
// (built-in retry) is always active, Layer 2 (circuit breaker) is
// optional and application-injected, and callers that want a Layer 3
// no-op fallback should hold a NoOpStore behind their own selection
// logic rather than this type attempting to degrade itself.
type RedisExecutionStore struct {
	client    *redis.Client
	logger    core.Logger
	cb        *resilience.CircuitBreaker
	keyPrefix string
	ttl       time.Duration
	retry     *resilience.RetryConfig
}

// NewRedisExecutionStore dials Redis and returns a ready store.
func NewRedisExecutionStore(opts ...RedisExecutionStoreOption) (*RedisExecutionStore, error) {
	cfg := &redisExecutionStoreConfig{
		redisURL:  redisURLFromEnv(),
		redisDB:   envInt("JACK_TELEMETRY_REDIS_DB", 9),
		logger:    &core.NoOpLogger{},
		keyPrefix: defaultKeyPrefix,
		ttl:       defaultTTL,
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	redisOpt, err := redis.ParseURL(cfg.redisURL)
	if err != nil {
		redisOpt = &redis.Options{Addr: cfg.redisURL}
	}
	redisOpt.DB = cfg.redisDB
	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis connect %s (db %d): %w", cfg.redisURL, cfg.redisDB, err)
	}

	return &RedisExecutionStore{
		client:    client,
		logger:    cfg.logger,
		cb:        cfg.circuitBreaker,
		keyPrefix: cfg.keyPrefix,
		ttl:       cfg.ttl,
		retry:     cfg.retry,
	}, nil
}

func (s *RedisExecutionStore) run(ctx context.Context, op func() error) error {
	if s.cb != nil {
		return resilience.Retry(ctx, s.retry, func() error { return s.cb.Execute(ctx, op) })
	}
	return resilience.Retry(ctx, s.retry, op)
}

// Store writes snap, replacing any prior snapshot for the same agent,
// and best-effort indexes it in a capture-time-ordered sorted set for
// ListRecent.
func (s *RedisExecutionStore) Store(ctx context.Context, snap AgentSnapshot) error {
	if snap.AgentName == "" {
		return fmt.Errorf("store: agent_name is required")
	}
	return s.run(ctx, func() error {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("store: marshal: %w", err)
		}
		if err := s.client.Set(ctx, s.recordKey(snap.AgentName), data, s.ttl).Err(); err != nil {
			return fmt.Errorf("store: set: %w", err)
		}
		if err := s.client.ZAdd(ctx, s.indexKey(), &redis.Z{
			Score:  float64(snap.CapturedAtUs),
			Member: snap.AgentName,
		}).Err(); err != nil {
			s.logger.Warn("store: failed to update telemetry index", map[string]interface{}{
				"agent": snap.AgentName, "error": err.Error(),
			})
		}
		return nil
	})
}

// Get returns the most recently stored snapshot for agentName.
func (s *RedisExecutionStore) Get(ctx context.Context, agentName string) (*AgentSnapshot, error) {
	if agentName == "" {
		return nil, fmt.Errorf("store: agent_name is required")
	}
	var snap AgentSnapshot
	err := s.run(ctx, func() error {
		data, err := s.client.Get(ctx, s.recordKey(agentName)).Bytes()
		if err == redis.Nil {
			return fmt.Errorf("store: no snapshot for %s", agentName)
		}
		if err != nil {
			return fmt.Errorf("store: get: %w", err)
		}
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("store: unmarshal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListRecent returns up to limit agents' summaries, most recently
// captured first.
func (s *RedisExecutionStore) ListRecent(ctx context.Context, limit int) ([]SnapshotSummary, error) {
	const maxLimit = 1000
	if limit <= 0 {
		limit = 50
	} else if limit > maxLimit {
		limit = maxLimit
	}

	var names []string
	err := s.run(ctx, func() error {
		var err error
		names, err = s.client.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
		if err != nil {
			return fmt.Errorf("store: list recent: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]SnapshotSummary, 0, len(names))
	for _, name := range names {
		snap, err := s.Get(ctx, name)
		if err != nil {
			_ = s.client.ZRem(ctx, s.indexKey(), name).Err()
			continue
		}
		out = append(out, SnapshotSummary{
			AgentName:      snap.AgentName,
			CapturedAtUs:   snap.CapturedAtUs,
			IntentionCount: len(snap.Intentions),
			AuctionCount:   len(snap.Auctions),
		})
	}
	return out, nil
}

// Close closes the underlying Redis client.
func (s *RedisExecutionStore) Close() error { return s.client.Close() }

func (s *RedisExecutionStore) recordKey(agentName string) string { return s.keyPrefix + agentName }
func (s *RedisExecutionStore) indexKey() string                  { return s.keyPrefix + "index" }

var _ ExecutionStore = (*RedisExecutionStore)(nil)

func redisURLFromEnv() string {
	if v := os.Getenv("JACK_REDIS_URL"); v != "" {
		return v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	return "localhost:6379"
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return defaultVal
	}
	return n
}
