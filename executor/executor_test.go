package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/model"
	"github.com/jackagents/jackgo/task"
)

type fakeAgent struct {
	ctx        *belief.Context
	dispatcher task.Dispatcher
	liveSub    map[identity.UniqueId]bool
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{ctx: belief.New(), dispatcher: noopDispatcher{}, liveSub: map[identity.UniqueId]bool{}}
}

func (a *fakeAgent) Belief() *belief.Context                  { return a.ctx }
func (a *fakeAgent) Dispatcher() task.Dispatcher               { return a.dispatcher }
func (a *fakeAgent) HasLiveSubGoal(id identity.UniqueId) bool { return a.liveSub[id] }

// noopDispatcher satisfies task.Dispatcher with no-op side effects, for
// executor tests that only care about state-machine transitions.
type noopDispatcher struct{}

func (noopDispatcher) DispatchAction(taskID int, actionName string, request *message.Message, resourceLocks []string) {
}
func (noopDispatcher) PursueSub(goalName string, params *message.Message, parentIntentionID identity.UniqueId, persistent bool) identity.UniqueId {
	return identity.New()
}
func (noopDispatcher) EmitDrop(handle identity.Handle, mode string, reason string) {}
func (noopDispatcher) Sleep(taskID int, d time.Duration)                          {}
func (noopDispatcher) Log(text string)                                            {}

func onePrintTaskPlan(name string) *model.PlanTemplate {
	return &model.PlanTemplate{
		Name: name,
		BuildBody: func() *task.Coroutine {
			b := task.NewBuilder()
			b.Add(task.NewPrintTask("running " + name))
			return b.Build()
		},
	}
}

func TestExecutorConcludesSuccessOnBodyCompletion(t *testing.T) {
	agent := newFakeAgent()
	tmpl := &model.GoalTemplate{Name: "Perform"}
	goal := model.NewGoal(tmpl, agent.ctx, model.ParentRef{})
	tactic := model.NewBuiltinTactic("Perform", nil)
	goal.PlanSelection = model.NewPlanSelection(tactic)

	plan := onePrintTaskPlan("SomePlan")
	exec := NewIntentionExecutor(agent, goal, plan, nil)

	exec.Execute() // runs the print task to completion, then reconciles
	require.Equal(t, Concluded, exec.State)
	assert.Equal(t, model.GoalSucceeded, goal.FinishState)
}

func TestPreconditionFailsWhenGoalInvalidAndUnsatisfied(t *testing.T) {
	agent := newFakeAgent()
	tmpl := &model.GoalTemplate{
		Name:         "Achieve",
		Satisfied:    func(*belief.Context) bool { return false },
		Precondition: func(*belief.Context) bool { return false },
	}
	goal := model.NewGoal(tmpl, agent.ctx, model.ParentRef{})
	goal.PlanSelection = model.NewPlanSelection(model.NewBuiltinTactic("Achieve", nil))

	plan := onePrintTaskPlan("AnyPlan")
	exec := NewIntentionExecutor(agent, goal, plan, nil)
	exec.Execute()

	assert.Equal(t, Concluded, exec.State)
	assert.Equal(t, model.GoalFailed, goal.FinishState)
}

func TestResourceViolationSkipsTick(t *testing.T) {
	agent := newFakeAgent()
	agent.ctx.PutResource(belief.NewResource("Battery", 0, 100, 150)) // already violated

	tmpl := &model.GoalTemplate{Name: "Perform"}
	goal := model.NewGoal(tmpl, agent.ctx, model.ParentRef{})
	goal.PlanSelection = model.NewPlanSelection(model.NewBuiltinTactic("Perform", nil))

	plan := onePrintTaskPlan("LockedPlan")
	plan.ResourceLocks = []string{"Battery"}
	exec := NewIntentionExecutor(agent, goal, plan, nil)

	exec.Execute()
	assert.Equal(t, Running, exec.State, "a resource violation must skip the tick entirely")
}

func TestForceDropTakesPriorityAndConcludesDropped(t *testing.T) {
	agent := newFakeAgent()
	tmpl := &model.GoalTemplate{Name: "Perform", Persistent: true}
	goal := model.NewGoal(tmpl, agent.ctx, model.ParentRef{})
	goal.PlanSelection = model.NewPlanSelection(model.NewBuiltinTactic("Perform", nil))

	plan := &model.PlanTemplate{
		Name: "LongPlan",
		BuildBody: func() *task.Coroutine {
			b := task.NewBuilder()
			b.Add(task.NewSleepTask(time.Second))
			return b.Build()
		},
		BuildDropCoroutine: func() *task.Coroutine {
			b := task.NewBuilder()
			b.Add(task.NewPrintTask("unwinding"))
			return b.Build()
		},
	}
	exec := NewIntentionExecutor(agent, goal, plan, nil)

	exec.Execute() // starts the sleep task, suspends WAIT
	require.Equal(t, Running, exec.State)

	exec.RequestDrop(true)
	exec.Execute() // should enter FORCE_DROPPING and run the drop coroutine to completion

	assert.Equal(t, Concluded, exec.State)
	assert.Equal(t, model.GoalDropped, goal.FinishState)
}

func TestDAGSeparatesConflictingLocksIntoParentChild(t *testing.T) {
	agent := newFakeAgent()
	mkExec := func(name string, locks []string) *IntentionExecutor {
		tmpl := &model.GoalTemplate{Name: name}
		goal := model.NewGoal(tmpl, agent.ctx, model.ParentRef{})
		goal.PlanSelection = model.NewPlanSelection(model.NewBuiltinTactic(name, nil))
		plan := onePrintTaskPlan(name)
		plan.ResourceLocks = locks
		return NewIntentionExecutor(agent, goal, plan, nil)
	}

	a := mkExec("A", []string{"Exclusive"})
	b := mkExec("B", []string{"Exclusive"})
	c := mkExec("C", []string{"Other"})

	dag := Rebuild([]ChainEntry{
		{Executor: a, ResourceLocks: []string{"Exclusive"}},
		{Executor: b, ResourceLocks: []string{"Exclusive"}},
		{Executor: c, ResourceLocks: []string{"Other"}},
	})

	require.Len(t, dag.Roots(), 2, "A (root) and C (root, no conflict); B attaches under A")
	assert.True(t, dag.NoDuplicateResourceLocks())
}

func TestDAGDelegatedNodesAreAlwaysRoot(t *testing.T) {
	agent := newFakeAgent()
	tmpl := &model.GoalTemplate{Name: "Delegated"}
	goal := model.NewGoal(tmpl, agent.ctx, model.ParentRef{})
	goal.PlanSelection = model.NewPlanSelection(model.NewBuiltinTactic("Delegated", nil))
	exec := NewIntentionExecutor(agent, goal, nil, nil)
	exec.Delegated = true

	dag := Rebuild([]ChainEntry{{Executor: exec, Delegated: true}})
	assert.Len(t, dag.Roots(), 1)
}
