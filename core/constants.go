package core

import "time"

// Environment variable names recognized by EngineConfig.LoadFromEnv.
const (
	EnvEngineName  = "JACK_ENGINE_NAME"
	EnvNamespace   = "JACK_NAMESPACE"
	EnvTickPeriod  = "JACK_TICK_PERIOD"
	EnvLogLevel    = "JACK_LOG_LEVEL"
	EnvLogFormat   = "JACK_LOG_FORMAT"
	EnvDebug       = "JACK_DEBUG"
)

// Engine-wide defaults referenced outside of EngineConfig (e.g. by tests
// constructing templates without a full config).
const (
	// DefaultAuctionExpiry mirrors §4.6: "expiryTimePoint = now + 2s".
	DefaultAuctionExpiry = 2 * time.Second

	// DefaultTickPeriod is the engine's target poll interval.
	DefaultTickPeriod = 50 * time.Millisecond
)
