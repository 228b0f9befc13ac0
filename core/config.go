package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the settings that shape §4.6-§4.10 engine behavior.
// Three-layer priority, grounded on the teacher's Config: defaults (lowest)
// → environment variables (medium) → functional options (highest).
type EngineConfig struct {
	// Name identifies this engine instance in logs and on the bus.
	Name      string `json:"name" yaml:"name" env:"JACK_ENGINE_NAME"`
	Namespace string `json:"namespace" yaml:"namespace" env:"JACK_NAMESPACE" default:"default"`

	// TickPeriod is the target wall-clock interval between engine polls
	// when running under Execute()/Start() (§4.10).
	TickPeriod time.Duration `json:"tick_period" yaml:"tick_period" env:"JACK_TICK_PERIOD" default:"50ms"`

	// MaxSearchDepth is validated and loaded with the rest of the config,
	// but no component reads it: agents build every schedule search with
	// agent.DefaultMaxDepth, and the one-ply search consults no depth bound.
	MaxSearchDepth int `json:"max_search_depth" yaml:"max_search_depth" env:"JACK_MAX_SEARCH_DEPTH" default:"64"`

	// AuctionExpiry is the default CurrentAuction.expiryTimePoint horizon
	// (§4.6 Auction: "now + 2s").
	AuctionExpiry time.Duration `json:"auction_expiry" yaml:"auction_expiry" env:"JACK_AUCTION_EXPIRY" default:"2s"`

	// EventFairnessBound caps how many queued events a single tick drains
	// per entity (§4.5 step 1: "up to a fair bound").
	EventFairnessBound int `json:"event_fairness_bound" yaml:"event_fairness_bound" env:"JACK_EVENT_FAIRNESS_BOUND" default:"64"`

	// UnhandledActionsForwardedToFirstApplicableService controls the
	// §4.7 ACTION routing fallback when an agent has no local handler.
	UnhandledActionsForwardedToFirstApplicableService bool `json:"unhandled_actions_forwarded_to_first_applicable_service" yaml:"unhandled_actions_forwarded_to_first_applicable_service" env:"JACK_FORWARD_UNHANDLED_ACTIONS" default:"true"`

	// ShareBeliefsetCadence is how often an agent publishes dirty shared
	// beliefs to its teams (§4.8 Shared-beliefsets).
	ShareBeliefsetCadence time.Duration `json:"share_beliefset_cadence" yaml:"share_beliefset_cadence" env:"JACK_SHARE_BELIEFSET_CADENCE" default:"200ms"`

	// BusURL is the websocket endpoint of the node this engine forwards
	// unhandled events to (§6.1); empty means run without a bus.
	BusURL string `json:"bus_url" yaml:"bus_url" env:"JACK_BUS_URL"`

	// TelemetryRedisURL, set, enables store.RedisExecutionStore as the
	// engine's schedule/auction telemetry mirror (§11); empty means no
	// persistence (NoOpStore).
	TelemetryRedisURL string `json:"telemetry_redis_url" yaml:"telemetry_redis_url" env:"JACK_TELEMETRY_REDIS_URL"`

	// DebugHTTPAddr, set, makes jackd listen on this address with the
	// enginehttp read-only introspection server (§11); empty disables it.
	DebugHTTPAddr string `json:"debug_http_addr" yaml:"debug_http_addr" env:"JACK_DEBUG_HTTP_ADDR"`

	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`

	logger Logger `json:"-" yaml:"-"`
}

// LoggingConfig controls ProductionLogger's output shape.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"JACK_LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"JACK_LOG_FORMAT" default:"text"`
	Output string `json:"output" yaml:"output" env:"JACK_LOG_OUTPUT" default:"stdout"`
}

// DevelopmentConfig toggles verbose/debug-only behavior.
type DevelopmentConfig struct {
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging" env:"JACK_DEBUG" default:"false"`
}

// Option mutates an EngineConfig during NewEngineConfig; returns an error
// so options can validate their own input.
type Option func(*EngineConfig) error

func WithName(name string) Option {
	return func(c *EngineConfig) error {
		if name == "" {
			return fmt.Errorf("%w: engine name must not be empty", ErrMissingConfiguration)
		}
		c.Name = name
		return nil
	}
}

func WithTickPeriod(d time.Duration) Option {
	return func(c *EngineConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: tick period must be positive", ErrInvalidConfiguration)
		}
		c.TickPeriod = d
		return nil
	}
}

func WithMaxSearchDepth(depth int) Option {
	return func(c *EngineConfig) error {
		if depth <= 0 {
			return fmt.Errorf("%w: max search depth must be positive", ErrInvalidConfiguration)
		}
		c.MaxSearchDepth = depth
		return nil
	}
}

func WithAuctionExpiry(d time.Duration) Option {
	return func(c *EngineConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: auction expiry must be positive", ErrInvalidConfiguration)
		}
		c.AuctionExpiry = d
		return nil
	}
}

func WithForwardUnhandledActions(forward bool) Option {
	return func(c *EngineConfig) error {
		c.UnhandledActionsForwardedToFirstApplicableService = forward
		return nil
	}
}

func WithLogger(l Logger) Option {
	return func(c *EngineConfig) error {
		c.logger = l
		return nil
	}
}

// ErrInvalidConfiguration / ErrMissingConfiguration are declared here (not
// errors.go) since they are config-package-local sentinels referenced only
// by the Option validators and Validate.
var (
	ErrInvalidConfiguration = fmt.Errorf("invalid configuration")
	ErrMissingConfiguration = fmt.Errorf("missing required configuration")
)

// DefaultConfig returns an EngineConfig populated with the `default:`
// struct-tag values above.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Namespace:             "default",
		TickPeriod:            50 * time.Millisecond,
		MaxSearchDepth:        64,
		AuctionExpiry:         2 * time.Second,
		EventFairnessBound:    64,
		UnhandledActionsForwardedToFirstApplicableService: true,
		ShareBeliefsetCadence: 200 * time.Millisecond,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// LoadFromEnv overlays JACK_* environment variables onto the receiver.
func (c *EngineConfig) LoadFromEnv() error {
	if v := os.Getenv("JACK_ENGINE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("JACK_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("JACK_TICK_PERIOD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JACK_TICK_PERIOD: %w", err)
		}
		c.TickPeriod = d
	}
	if v := os.Getenv("JACK_MAX_SEARCH_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JACK_MAX_SEARCH_DEPTH: %w", err)
		}
		c.MaxSearchDepth = n
	}
	if v := os.Getenv("JACK_AUCTION_EXPIRY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JACK_AUCTION_EXPIRY: %w", err)
		}
		c.AuctionExpiry = d
	}
	if v := os.Getenv("JACK_FORWARD_UNHANDLED_ACTIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("JACK_FORWARD_UNHANDLED_ACTIONS: %w", err)
		}
		c.UnhandledActionsForwardedToFirstApplicableService = b
	}
	if v := os.Getenv("JACK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("JACK_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := strings.ToLower(os.Getenv("JACK_DEBUG")); v == "true" || v == "1" {
		c.Development.DebugLogging = true
	}
	if v := os.Getenv("JACK_BUS_URL"); v != "" {
		c.BusURL = v
	}
	if v := os.Getenv("JACK_TELEMETRY_REDIS_URL"); v != "" {
		c.TelemetryRedisURL = v
	}
	if v := os.Getenv("JACK_DEBUG_HTTP_ADDR"); v != "" {
		c.DebugHTTPAddr = v
	}
	return nil
}

// LoadFromYAMLFile overlays a declarative config file onto the receiver,
// for jackd's --config flag. Call before LoadFromEnv/options so env vars
// and explicit options still take precedence (§ ambient stack's
// defaults-then-env-then-options priority, extended one layer lower).
func (c *EngineConfig) LoadFromYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate rejects an EngineConfig that cannot safely drive an engine tick
// loop (§4.10).
func (c *EngineConfig) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: tick_period must be positive", ErrInvalidConfiguration)
	}
	if c.MaxSearchDepth <= 0 {
		return fmt.Errorf("%w: max_search_depth must be positive", ErrInvalidConfiguration)
	}
	if c.AuctionExpiry <= 0 {
		return fmt.Errorf("%w: auction_expiry must be positive", ErrInvalidConfiguration)
	}
	if c.EventFairnessBound <= 0 {
		return fmt.Errorf("%w: event_fairness_bound must be positive", ErrInvalidConfiguration)
	}
	return nil
}

// NewEngineConfig builds a validated EngineConfig: defaults, then env,
// then functional options, then a final Validate() pass.
func NewEngineConfig(opts ...Option) (*EngineConfig, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		cfg.logger = NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Logger returns the configured logger, building a default one if needed.
func (c *EngineConfig) Logger() Logger {
	if c.logger == nil {
		c.logger = NewProductionLogger(c.Logging, c.Development, c.Name)
	}
	return c.logger
}

// ============================================================================
// ProductionLogger - layered observability, ported from the teacher's
// core.ProductionLogger (JSON under Kubernetes-style deployments, text for
// local dev, component-tagged for per-subsystem filtering).
// ============================================================================

type ProductionLogger struct {
	mu          sync.RWMutex
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      *os.File
}

// NewProductionLogger creates a logger from LoggingConfig. Format auto-flips
// to JSON when KUBERNETES_SERVICE_HOST is present, unless overridden.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	format := logging.Format
	if format == "" {
		format = "text"
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		}
	}

	output := os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		debug:       dev.DebugLogging || strings.ToLower(logging.Level) == "debug",
		serviceName: serviceName,
		format:      format,
		output:      output,
	}
}

func (p *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:       p.level,
		debug:       p.debug,
		serviceName: p.serviceName,
		component:   component,
		format:      p.format,
		output:      p.output,
	}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields)
}
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields)
}
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields)
}
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields)
	}
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEventCtx(ctx, "INFO", msg, fields)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEventCtx(ctx, "ERROR", msg, fields)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEventCtx(ctx, "WARN", msg, fields)
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEventCtx(ctx, "DEBUG", msg, fields)
	}
}

func (p *ProductionLogger) logEventCtx(ctx context.Context, level, msg string, fields map[string]interface{}) {
	if dl, ok := ctx.Value(traceIDKey{}).(string); ok && dl != "" {
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["trace_id"] = dl
	}
	p.logEvent(level, msg, fields)
}

// traceIDKey is the context key used to correlate log lines to a request
// or tick, mirroring the teacher's baggage-propagation pattern without
// pulling in a tracing SDK dependency at the core package level.
type traceIDKey struct{}

// WithTraceID attaches a trace/correlation id to ctx for log correlation.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}) {
	p.mu.RLock()
	format, serviceName, component, output := p.format, p.serviceName, p.component, p.output
	p.mu.RUnlock()

	timestamp := time.Now().Format(time.RFC3339)

	if format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   serviceName,
			"component": component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(output, string(data))
		}
		return
	}

	var fieldStr strings.Builder
	if len(fields) > 0 {
		fieldStr.WriteString(" ")
		for k, v := range fields {
			fmt.Fprintf(&fieldStr, "%s=%v ", k, v)
		}
	}
	fmt.Fprintf(output, "%s [%s] [%s/%s] %s%s\n", timestamp, level, serviceName, component, msg, fieldStr.String())
}
