// Package executor implements §4.3-§4.5: the per-desire intention state
// machine, its precondition checks, and the agent-level DAG that
// multiplexes many intentions with resource-lock-aware parallelism.
package executor

import (
	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/model"
	"github.com/jackagents/jackgo/task"
)

// State is an IntentionExecutor's lifecycle state (§4.3).
type State int

const (
	Running State = iota
	Dropping
	ForceDropping
	Concluded
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Dropping:
		return "DROPPING"
	case ForceDropping:
		return "FORCE_DROPPING"
	case Concluded:
		return "CONCLUDED"
	default:
		return "UNKNOWN"
	}
}

// Observer receives BDI log events as intentions start and conclude
// (§10.1's BDI_LOG types: intention/goal start-finish).
type Observer interface {
	IntentionStarted(goal *model.Goal, plan *model.PlanTemplate)
	IntentionConcluded(goal *model.Goal, plan *model.PlanTemplate, outcome model.FinishState)
}

type noopObserver struct{}

func (noopObserver) IntentionStarted(*model.Goal, *model.PlanTemplate)                     {}
func (noopObserver) IntentionConcluded(*model.Goal, *model.PlanTemplate, model.FinishState) {}

// IntentionExecutor drives one desire's chosen plan to completion,
// re-selecting plans on failure per the goal's tactic (§4.3).
type IntentionExecutor struct {
	Agent        AgentHandle
	DesireHandle identity.Handle
	Goal         *model.Goal

	CurrentIntention *model.PlanTemplate
	TargetIntention  *model.PlanTemplate

	currentBody *task.Coroutine
	dropBody    *task.Coroutine

	LastPlanFinishState model.FinishState
	TotalIntentions     int
	Succeeded           int
	Failed              int

	SubGoalDesireIDs []identity.UniqueId
	Delegated        bool
	dropRequested    bool
	forceDrop        bool
	goalPolicyFailure bool

	State State

	started  bool
	observer Observer
}

// AgentHandle is the narrow view an IntentionExecutor needs of its owning
// agent: the belief context to run against and dispatch hooks for tasks.
type AgentHandle interface {
	Belief() *belief.Context
	Dispatcher() task.Dispatcher
	// HasLiveSubGoal reports whether a previously-spawned sub-goal desire
	// (by id) still exists, gating drop completion per §4.3: "Before
	// finishing a drop, all spawned sub-goal desires must no longer exist
	// in the agent".
	HasLiveSubGoal(id identity.UniqueId) bool
}

// NewIntentionExecutor starts an executor for goal, selecting plan as its
// first intention.
func NewIntentionExecutor(agent AgentHandle, goal *model.Goal, plan *model.PlanTemplate, observer Observer) *IntentionExecutor {
	if observer == nil {
		observer = noopObserver{}
	}
	e := &IntentionExecutor{
		Agent:            agent,
		DesireHandle:     goal.Handle(),
		Goal:             goal,
		CurrentIntention: plan,
		State:            Running,
		observer:         observer,
	}
	if plan != nil {
		e.currentBody = plan.BuildBody()
	}
	return e
}

// RequestDrop marks the executor to unwind its current plan cleanly
// before concluding. FORCE takes priority over a plain drop and, once
// set, blocks regression to DROPPING (§4.3 setPlan/drop semantics).
func (e *IntentionExecutor) RequestDrop(force bool) {
	if force {
		e.forceDrop = true
	}
	e.dropRequested = true
}

// SetPlan schedules a transition to a new intention: the current plan
// unwinds via DROPPING before p begins.
func (e *IntentionExecutor) SetPlan(p *model.PlanTemplate) {
	e.TargetIntention = p
	e.dropRequested = true
}

func (e *IntentionExecutor) execContext() *task.ExecContext {
	return &task.ExecContext{
		Belief:      e.Agent.Belief(),
		Dispatcher:  e.Agent.Dispatcher(),
		SearchOrder: belief.DefaultSearchOrder,
		IntentionID: e.Goal.ID,
	}
}

// Complete resolves a WAIT/ASYNC task by id against whichever coroutine
// (body or drop) is currently active, called by the event-dispatch layer
// on ACTIONCOMPLETE / sub-goal promise resolution / timer fire.
func (e *IntentionExecutor) Complete(taskID int, succeeded bool) {
	outcome := task.Succeeded
	if !succeeded {
		outcome = task.Failed
	}
	if e.State == Dropping || e.State == ForceDropping {
		if e.dropBody != nil {
			e.dropBody.Complete(taskID, outcome)
		}
		return
	}
	if e.currentBody != nil {
		e.currentBody.Complete(taskID, outcome)
	}
}

// Execute runs one tick of the executor (§4.3).
func (e *IntentionExecutor) Execute() {
	if e.State != Running && e.State != Dropping && e.State != ForceDropping {
		return
	}

	if e.CurrentIntention != nil {
		bc := e.Agent.Belief()
		if bc.AnyViolated(e.CurrentIntention.ResourceLocks) {
			return
		}
		// §5: the DAG's conflict chaining is a hint, not a mutex — a
		// sibling intention may still hold one of these locks.
		if bc.AnyLocked(e.CurrentIntention.ResourceLocks) {
			return
		}

		if !e.started {
			e.observer.IntentionStarted(e.Goal, e.CurrentIntention)
			e.started = true
		}

		if e.forceDrop {
			e.State = ForceDropping
		} else if e.dropRequested || e.State == Dropping {
			if e.State != ForceDropping {
				e.State = Dropping
			}
		}

		shouldDrop := e.State == Dropping || e.State == ForceDropping || (e.CurrentIntention.DropWhen != nil && e.CurrentIntention.DropWhen(e.Agent.Belief()))
		if shouldDrop {
			e.tickDrop()
		} else {
			e.tickBody()
		}
	}

	e.reconcileConclusion()
}

func (e *IntentionExecutor) tickBody() {
	if e.currentBody == nil {
		return
	}
	ec := e.execContext()
	e.currentBody.Tick(ec)
}

func (e *IntentionExecutor) tickDrop() {
	if e.dropBody == nil {
		if e.CurrentIntention != nil && e.CurrentIntention.BuildDropCoroutine != nil {
			e.dropBody = e.CurrentIntention.BuildDropCoroutine()
		} else {
			// No drop coroutine: treat as immediately unwound.
			e.dropBody = task.NewCoroutine(nil)
		}
	}
	if !e.allSubGoalsGone() {
		return // gate drop completion per §4.3
	}
	ec := e.execContext()
	e.dropBody.Tick(ec)
}

func (e *IntentionExecutor) allSubGoalsGone() bool {
	for _, id := range e.SubGoalDesireIDs {
		if e.Agent.HasLiveSubGoal(id) {
			return false
		}
	}
	return true
}

func (e *IntentionExecutor) bodyConcluded() bool {
	return e.currentBody != nil && e.currentBody.Finished()
}

func (e *IntentionExecutor) dropConcluded() bool {
	return e.dropBody != nil && e.dropBody.Finished() && e.allSubGoalsGone()
}

// reconcileConclusion implements §4.3 steps 2(last)-3: classify a
// concluded body/drop, update plan selection, and either advance to the
// target intention or conclude the goal.
func (e *IntentionExecutor) reconcileConclusion() {
	inDrop := e.State == Dropping || e.State == ForceDropping
	var concluded bool
	var finishState model.FinishState

	switch {
	case inDrop && e.dropConcluded():
		concluded = true
		// "DROPPED after body-completion is reclassified to SUCCESS" (§4.3).
		finishState = model.GoalSucceeded
	case !inDrop && e.bodyConcluded():
		concluded = true
		if e.currentBody.Succeeded() {
			finishState = model.GoalSucceeded
			e.Succeeded++
		} else {
			finishState = model.GoalFailed
			e.Failed++
		}
		e.updatePlanSelection(finishState == model.GoalSucceeded)
	}

	if !concluded {
		return
	}

	e.LastPlanFinishState = finishState
	e.TotalIntentions++
	e.currentBody = nil
	e.dropBody = nil
	e.started = false
	// The reply history belongs to the concluded plan; a later plan's
	// ACTION_REPLY-first binding must not see a stale reply (§3).
	e.Agent.Belief().ClearActionReplies()

	nextPlan := e.TargetIntention
	e.TargetIntention = nil
	e.CurrentIntention = nextPlan

	goalPolicyFailure := e.consumeGoalPolicyFailure()

	if e.State == ForceDropping || goalPolicyFailure {
		if e.Goal.FinishState == model.NotYet {
			e.conclude(model.GoalDropped)
		} else {
			e.conclude(e.Goal.FinishState)
		}
		return
	}

	if nextPlan == nil && e.dropRequested {
		e.conclude(finishState)
		return
	}

	e.dropRequested = false
	e.State = Running
	e.checkPrecondition(finishState)

	if e.State != Running {
		return
	}

	// No explicit SetPlan transition was pending: the goal is still
	// running, so the tactic must supply the next plan to attempt
	// (§3 Tactic Strict/ExcludePlanAfterAttempt/ChooseBestPlan, §4.3
	// loop-iteration re-selection).
	if e.CurrentIntention == nil {
		e.CurrentIntention = e.selectNextPlan()
		if e.CurrentIntention == nil && e.Goal.PlanSelection != nil {
			e.conclude(model.GoalFailed)
			return
		}
	}

	if e.CurrentIntention != nil {
		e.currentBody = e.CurrentIntention.BuildBody()
	}
}

// selectNextPlan picks the plan this executor should attempt next when
// its current plan concluded without concluding the goal and no
// explicit SetPlan transition is pending, per the goal's tactic (§3).
func (e *IntentionExecutor) selectNextPlan() *model.PlanTemplate {
	sel := e.Goal.PlanSelection
	if sel == nil || sel.Tactic == nil || len(sel.Tactic.Plans) == 0 {
		return nil
	}
	if sel.Tactic.PlanOrder == model.Strict {
		return sel.Tactic.Plans[sel.PlanListIndex]
	}
	for _, p := range sel.Tactic.Plans {
		if !sel.Excluded(p.Name) {
			return p
		}
	}
	return nil
}

// updatePlanSelection records the just-run plan's outcome and, if every
// applicable plan for this loop iteration has been tried, advances the
// loop iteration (or flags a goalPolicyFailure) per §4.3.
func (e *IntentionExecutor) updatePlanSelection(succeeded bool) {
	sel := e.Goal.PlanSelection
	if sel == nil || e.CurrentIntention == nil {
		return
	}
	sel.RecordAttempt(e.CurrentIntention.Name, succeeded)
	if sel.AllTried(e.CurrentIntention) {
		e.goalPolicyFailure = sel.AdvanceLoop()
	} else {
		e.goalPolicyFailure = false
	}
}

func (e *IntentionExecutor) consumeGoalPolicyFailure() bool {
	v := e.goalPolicyFailure
	e.goalPolicyFailure = false
	return v
}

// checkPrecondition implements §4.4.
func (e *IntentionExecutor) checkPrecondition(lastFinish model.FinishState) {
	if e.Delegated {
		return
	}
	g := e.Goal
	if !g.IsSatisfied() && !g.IsValid() {
		e.conclude(model.GoalFailed)
		return
	}
	if (g.IsAchievement() && g.IsSatisfied()) || (!g.IsAchievement() && lastFinish == model.GoalSucceeded) {
		e.conclude(model.GoalSucceeded)
		return
	}
	e.State = Running
}

func (e *IntentionExecutor) conclude(finish model.FinishState) {
	e.Goal.FinishState = finish
	e.State = Concluded
	e.observer.IntentionConcluded(e.Goal, e.CurrentIntention, finish)
}
