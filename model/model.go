// Package model implements §3 Goal, Tactic, PlanSelection and Plan: the
// template/instance pairs the scheduler expands and the executor runs.
package model

import (
	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/task"
)

// FinishState is a goal instance's terminal classification (§3 Goal).
type FinishState int

const (
	NotYet FinishState = iota
	GoalFailed
	GoalDropped
	GoalSucceeded
)

func (f FinishState) String() string {
	switch f {
	case NotYet:
		return "NOT_YET"
	case GoalFailed:
		return "FAILED"
	case GoalDropped:
		return "DROPPED"
	case GoalSucceeded:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// ParentRef links a sub-goal instance back to the plan task that pursued
// it (§3 Goal "parent: {goalHandle, planTaskId}").
type ParentRef struct {
	GoalHandle identity.Handle
	PlanTaskID int
}

// GoalTemplate is the committed, reusable definition of a goal (§3 Goal
// template fields).
type GoalTemplate struct {
	Name          string
	MessageSchema *message.Schema // optional pursue-parameter schema

	Precondition func(*belief.Context) bool
	Satisfied    func(*belief.Context) bool // nil for a perform goal
	DropWhen     func(*belief.Context) bool
	Heuristic    func(*belief.Context) float64 // nil: scheduler falls back to unit cost

	Persistent bool
}

// IsAchievement reports whether this is an achievement goal (carries a
// satisfied condition) as opposed to a perform goal (§3: "an achievement
// goal has a satisfied condition, a perform goal does not").
func (t *GoalTemplate) IsAchievement() bool { return t.Satisfied != nil }

// Goal is a live instance of a GoalTemplate (§3 Goal instance fields).
type Goal struct {
	Template *GoalTemplate

	ID      identity.UniqueId
	Context *belief.Context // populated from parent agent + pursue message before first tick
	Params  *message.Message // the pursue message this instance was created with, if any

	// Persistent overrides Template.Persistent for this one instance, set
	// from the originating PURSUE event (§3 Event PURSUE(..., persistent)).
	Persistent bool

	Parent ParentRef

	FinishState  FinishState
	PlanSelection *PlanSelection
}

// NewGoal instantiates template with a fresh id; Context must be
// populated by the caller before the instance's first executor tick
// (§3 invariant).
func NewGoal(template *GoalTemplate, ctx *belief.Context, parent ParentRef) *Goal {
	return &Goal{
		Template:    template,
		ID:          identity.New(),
		Context:     ctx,
		Parent:      parent,
		FinishState: NotYet,
	}
}

func (g *Goal) Handle() identity.Handle {
	return identity.Handle{Name: g.Template.Name, Id: g.ID}
}

func (g *Goal) IsAchievement() bool { return g.Template.IsAchievement() }

func (g *Goal) IsSatisfied() bool {
	if g.Template.Satisfied == nil {
		return false
	}
	return g.Template.Satisfied(g.Context)
}

// IsValid reports whether the goal's precondition still holds; a goal
// with no precondition is always valid (§4.4).
func (g *Goal) IsValid() bool {
	if g.Template.Precondition == nil {
		return true
	}
	return g.Template.Precondition(g.Context)
}

func (g *Goal) ShouldDrop() bool {
	if g.Template.DropWhen == nil {
		return false
	}
	return g.Template.DropWhen(g.Context)
}

// Heuristic evaluates the template's heuristic, or 0 if none is provided
// (the scheduler's costing step clamps to max(0, ...) regardless, §4.6).
func (g *Goal) Heuristic() float64 {
	if g.Template.Heuristic == nil {
		return 0
	}
	h := g.Template.Heuristic(g.Context)
	if h < 0 {
		return 0
	}
	return h
}

// PlanOrder governs how a Tactic restricts and orders its plan list
// (§3 Tactic).
type PlanOrder int

const (
	Strict PlanOrder = iota
	ExcludePlanAfterAttempt
	ChooseBestPlan
)

// InfiniteLoops marks a Tactic with no loop-count ceiling.
const InfiniteLoops = -1

// Tactic restricts and orders the plans a goal's executor may attempt
// (§3 Tactic).
type Tactic struct {
	Name          string
	Goal          string // goal template name
	Plans         []*PlanTemplate
	UsePlanList   bool
	PlanOrder     PlanOrder
	LoopPlansCount int // InfiniteLoops or a positive ceiling
}

// BuiltinTacticName returns the auto-created tactic name for a committed
// goal (§6.2: "Committing a goal auto-creates its builtin tactic
// '<goal-name> Tactic'").
func BuiltinTacticName(goalName string) string {
	return goalName + " Tactic"
}

// NewBuiltinTactic builds the auto-created tactic for goalName, allowing
// every plan in plans, in ChooseBestPlan mode with an infinite loop
// ceiling (§3, §6.2, §8 invariant: "engine.getBuiltinTactic(g).valid()
// ... plan set equals the set of plans that handles(g)").
func NewBuiltinTactic(goalName string, plans []*PlanTemplate) *Tactic {
	return &Tactic{
		Name:           BuiltinTacticName(goalName),
		Goal:           goalName,
		Plans:          plans,
		UsePlanList:    true,
		PlanOrder:      ChooseBestPlan,
		LoopPlansCount: InfiniteLoops,
	}
}

// planHistory records one plan's attempt bookkeeping within a
// PlanSelection (§3 PlanSelection "history").
type planHistory struct {
	successCount     int
	failCount        int
	lastLoopIteration int
}

// PlanSelection is the per-desire record of tried plans (§3).
type PlanSelection struct {
	Tactic            *Tactic
	PlanLoopIteration int
	PlanListIndex     int

	history map[string]*planHistory
}

func NewPlanSelection(tactic *Tactic) *PlanSelection {
	return &PlanSelection{Tactic: tactic, history: make(map[string]*planHistory)}
}

func (s *PlanSelection) historyFor(planName string) *planHistory {
	h, ok := s.history[planName]
	if !ok {
		// -1: not attempted in any loop iteration yet.
		h = &planHistory{lastLoopIteration: -1}
		s.history[planName] = h
	}
	return h
}

// RecordAttempt updates the named plan's history after one run concludes.
func (s *PlanSelection) RecordAttempt(planName string, succeeded bool) {
	h := s.historyFor(planName)
	if succeeded {
		h.successCount++
	} else {
		h.failCount++
	}
	h.lastLoopIteration = s.PlanLoopIteration
}

// AllTried reports whether every applicable plan has been exhausted this
// loop iteration, per the ordering policy (§4.3):
//   - Strict: the just-run plan must equal tactic.plans[planListIndex];
//     all-tried when the advancing index wraps to 0.
//   - ExcludePlanAfterAttempt / ChooseBestPlan: all-tried iff every
//     applicable plan's history has lastLoopIteration == current loop
//     iteration.
func (s *PlanSelection) AllTried(justRun *PlanTemplate) bool {
	switch s.Tactic.PlanOrder {
	case Strict:
		if len(s.Tactic.Plans) == 0 {
			return true
		}
		s.PlanListIndex = (s.PlanListIndex + 1) % len(s.Tactic.Plans)
		return s.PlanListIndex == 0
	default: // ExcludePlanAfterAttempt, ChooseBestPlan
		for _, p := range s.Tactic.Plans {
			h := s.historyFor(p.Name)
			if h.lastLoopIteration != s.PlanLoopIteration {
				return false
			}
		}
		return true
	}
}

// AdvanceLoop increments the loop iteration if the tactic's loop ceiling
// permits another pass, and reports whether the policy is exhausted
// (goalPolicyFailure in §4.3).
func (s *PlanSelection) AdvanceLoop() (policyFailure bool) {
	if s.Tactic.LoopPlansCount == InfiniteLoops || s.PlanLoopIteration+1 < s.Tactic.LoopPlansCount {
		s.PlanLoopIteration++
		return false
	}
	return true
}

// Excluded reports whether planName should be skipped under
// ExcludePlanAfterAttempt (it has already failed this loop iteration).
func (s *PlanSelection) Excluded(planName string) bool {
	if s.Tactic.PlanOrder != ExcludePlanAfterAttempt {
		return false
	}
	h, ok := s.history[planName]
	return ok && h.lastLoopIteration == s.PlanLoopIteration && h.failCount > 0 && h.successCount == 0
}

// PlanTemplate is the committed, reusable definition of a plan (§3 Plan).
type PlanTemplate struct {
	Name string
	Goal string // goal template name

	// BuildBody constructs a fresh body coroutine for one intention; a
	// factory rather than a shared instance because coroutine state
	// (current index, async count) is per-intention.
	BuildBody func() *task.Coroutine
	// BuildDropCoroutine constructs the optional drop sequence.
	BuildDropCoroutine func() *task.Coroutine

	Precondition func(*belief.Context) bool
	DropWhen     func(*belief.Context) bool

	// Effects simulates the plan's outcome on a cloned context, used by
	// the scheduler's costing pass (§4.6). Must be deterministic over its
	// input context (§3 Plan invariant).
	Effects func(*belief.Context)

	ResourceLocks []string

	// RequiredServices names services the plan's action schemas need
	// attached and available on the agent (§4.6 expansion service check).
	RequiredServices []string
}

// Precond reports whether p's precondition passes against ctx; a plan
// with no precondition always passes.
func (p *PlanTemplate) Precond(ctx *belief.Context) bool {
	if p.Precondition == nil {
		return true
	}
	return p.Precondition(ctx)
}

// SimulateEffects clones ctx and applies p's Effects, returning the
// speculative result without mutating ctx (§4.6 expansion step).
func (p *PlanTemplate) SimulateEffects(ctx *belief.Context) *belief.Context {
	clone := ctx.Clone()
	if p.Effects != nil {
		p.Effects(clone)
	}
	return clone
}

// IsEffectless reports whether p declares no effects simulator, the
// distinction the scheduler uses to bucket candidates into "effectless"
// vs "expandable" (§4.6).
func (p *PlanTemplate) IsEffectless() bool { return p.Effects == nil }
