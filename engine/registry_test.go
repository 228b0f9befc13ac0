package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/model"
	"github.com/jackagents/jackgo/task"
)

func countdownPlan(name string) *model.PlanTemplate {
	return &model.PlanTemplate{
		Name: name,
		Goal: "Countdown",
		BuildBody: func() *task.Coroutine {
			b := task.NewBuilder()
			b.Add(task.NewPrintTask("tick"))
			return b.Build()
		},
	}
}

func TestCommitGoalAutoCreatesBuiltinTactic(t *testing.T) {
	b := NewTemplateBuilder("Countdown")
	g := b.CommitGoal(&model.GoalTemplate{Name: "Countdown"})
	require.NotNil(t, g)

	tpl := b.Build()
	tactic, ok := tpl.Tactics["Countdown"]
	require.True(t, ok, "committing a goal must auto-create its builtin tactic")
	assert.Equal(t, model.BuiltinTacticName("Countdown"), tactic.Name)
	assert.Equal(t, model.ChooseBestPlan, tactic.PlanOrder)
	assert.Equal(t, model.InfiniteLoops, tactic.LoopPlansCount)
}

func TestCommitPlanAfterGoalKeepsBuiltinTacticInSync(t *testing.T) {
	b := NewTemplateBuilder("Countdown")
	b.CommitGoal(&model.GoalTemplate{Name: "Countdown"})
	p := countdownPlan("OnlyPlan")
	b.CommitPlan(p)

	tpl := b.Build()
	assert.Equal(t, []*model.PlanTemplate{p}, tpl.Plans["Countdown"])
	assert.Equal(t, []*model.PlanTemplate{p}, tpl.Tactics["Countdown"].Plans,
		"a plan committed after its goal must still reach the auto-created builtin tactic")
}

func TestCommitTacticOverridesBuiltin(t *testing.T) {
	b := NewTemplateBuilder("Countdown")
	b.CommitGoal(&model.GoalTemplate{Name: "Countdown"})
	p := countdownPlan("OnlyPlan")
	b.CommitPlan(p)

	custom := &model.Tactic{Name: "Custom", Goal: "Countdown", Plans: []*model.PlanTemplate{p}, PlanOrder: model.Strict}
	b.CommitTactic(custom)

	tpl := b.Build()
	assert.Same(t, custom, tpl.Tactics["Countdown"])
}

func TestRegistryCommitAndSpawn(t *testing.T) {
	b := NewTemplateBuilder("Countdown")
	b.CommitGoal(&model.GoalTemplate{Name: "Countdown"})
	b.CommitPlan(countdownPlan("OnlyPlan"))

	reg := NewRegistry()
	reg.CommitAgent(b.Build())

	e := New("node1", nil, nil)
	e.registry = reg
	a, err := e.SpawnAgent("Countdown")
	require.NoError(t, err)
	assert.Equal(t, "Countdown", a.Handle().Name)

	_, err = e.SpawnAgent("NoSuchTemplate")
	assert.Error(t, err)
}
