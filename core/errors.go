package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison via errors.Is(). Per §7, no JACK error
// kind unwinds across the engine boundary: every public entry point
// returns a result or a handle, never a panic.
var (
	// Template/commit-time invariant violations (§7 "invariant violation")
	ErrMissingBody        = errors.New("plan body coroutine must not be nil")
	ErrUnknownResource     = errors.New("resource lock refers to an undeclared resource")
	ErrSchemaNotCommitted = errors.New("message schema not committed")
	ErrGoalNotCommitted   = errors.New("goal not committed")
	ErrPlanNotCommitted   = errors.New("plan not committed")
	ErrDuplicateSchema    = errors.New("schema field set does not match committed schema")

	// Runtime degraded paths (§7 "runtime degraded path")
	ErrFieldNotFound  = errors.New("field not found")
	ErrFieldTypeMismatch = errors.New("field type mismatch")
	ErrNoHandler      = errors.New("no action handler registered")
	ErrNoService      = errors.New("no service available for action")

	// Entity lookup errors
	ErrAgentNotFound  = errors.New("agent not found")
	ErrDesireNotFound = errors.New("desire not found")
	ErrServiceNotFound = errors.New("service not found")
	ErrMemberNotFound = errors.New("team member not found")

	// Plan infeasibility (§7 "plan infeasibility" -- never thrown, but
	// exposed for search-node failure classification and tests)
	ErrPreconditionFailed  = errors.New("plan precondition failed")
	ErrResourceViolation   = errors.New("resource violation")
	ErrServiceUnavailable  = errors.New("required service unavailable")
	ErrAuctionBidTimeout   = errors.New("auction bid timeout")
	ErrDelegateAllocated   = errors.New("delegate already allocated this tick")

	// State errors
	ErrAlreadyConcluded = errors.New("intention executor already concluded")
	ErrEngineStopped    = errors.New("engine is stopped")
)

// EngineError carries structured context around a wrapped error, grounded
// on the teacher's FrameworkError: an Op/Kind/ID envelope rather than a
// bespoke struct per subsystem.
type EngineError struct {
	Op      string // e.g. "scheduler.expand", "executor.tick"
	Kind    string // e.g. "goal", "plan", "resource", "event"
	ID      string // handle/id of the entity involved, if any
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewEngineError builds an EngineError wrapping err for operation op.
func NewEngineError(op, kind string, err error) *EngineError {
	return &EngineError{Op: op, Kind: kind, Err: err}
}

// WithID attaches an entity id to an EngineError and returns it for chaining.
func (e *EngineError) WithID(id string) *EngineError {
	e.ID = id
	return e
}

// IsRetryable reports whether err represents a transient condition worth
// retrying (auction timeout, service unavailability).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAuctionBidTimeout) || errors.Is(err, ErrServiceUnavailable)
}

// IsNotFound reports whether err represents a missing-entity lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrDesireNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrFieldNotFound)
}

// IsPlanInfeasible reports whether err is one of the §4.6 candidate
// rejection reasons (precondition/resource/service/auction/deconflict).
func IsPlanInfeasible(err error) bool {
	return errors.Is(err, ErrPreconditionFailed) ||
		errors.Is(err, ErrResourceViolation) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrAuctionBidTimeout) ||
		errors.Is(err, ErrDelegateAllocated)
}
