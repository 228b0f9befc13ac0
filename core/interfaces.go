// Package core holds the ambient concerns shared by every JACK package:
// structured logging, sentinel/wrapped errors, and engine configuration.
// Domain types (identity, fields, messages, beliefs, goals, plans, the
// scheduler, the dispatcher, agents/teams/services, the engine) live in
// their own packages and depend on core, never the other way round.
package core

import (
	"context"
)

// Logger is the minimal logging surface every JACK subsystem depends on.
// ProductionLogger is the default implementation; tests may substitute
// NoOpLogger or a recording fake.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with a per-subsystem component tag.
// BDI log lines (§6.1 BDI_LOG: goal/subgoal/intention/action/sleep start
// and finish, condition) are emitted through a component-tagged logger so
// operators can filter by subsystem:
//
//	jackd logs | jq 'select(.component == "jack/scheduler")'
//
// Component naming convention:
//   - "jack/dispatch"  - event queue + routing
//   - "jack/executor"  - intention + agent executor
//   - "jack/scheduler" - forward planner
//   - "jack/team"      - delegation auctions
//   - "jack/engine"    - tick loop + template registry
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// NoOpLogger discards everything. Useful in unit tests that don't assert
// on log output.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}

func (NoOpLogger) InfoWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) ErrorWithContext(context.Context, string, map[string]interface{}) {}
func (NoOpLogger) WarnWithContext(context.Context, string, map[string]interface{})  {}
func (NoOpLogger) DebugWithContext(context.Context, string, map[string]interface{}) {}
