package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/belief"
)

func TestGoalAchievementVsPerform(t *testing.T) {
	perform := &GoalTemplate{Name: "Perform"}
	achievement := &GoalTemplate{Name: "Achieve", Satisfied: func(*belief.Context) bool { return true }}

	assert.False(t, perform.IsAchievement())
	assert.True(t, achievement.IsAchievement())
}

func TestGoalPreconditionDefaultsValid(t *testing.T) {
	g := NewGoal(&GoalTemplate{Name: "NoPrecondition"}, belief.New(), ParentRef{})
	assert.True(t, g.IsValid())
}

func TestGoalHeuristicClampsToZero(t *testing.T) {
	g := NewGoal(&GoalTemplate{
		Name:      "Negative",
		Heuristic: func(*belief.Context) float64 { return -5 },
	}, belief.New(), ParentRef{})
	assert.Equal(t, 0.0, g.Heuristic())
}

func TestBuiltinTacticIsChooseBestPlanInfiniteLoop(t *testing.T) {
	plans := []*PlanTemplate{{Name: "A"}, {Name: "B"}}
	tac := NewBuiltinTactic("SoakGoal", plans)

	assert.Equal(t, "SoakGoal Tactic", tac.Name)
	assert.Equal(t, ChooseBestPlan, tac.PlanOrder)
	assert.Equal(t, InfiniteLoops, tac.LoopPlansCount)
	assert.ElementsMatch(t, plans, tac.Plans)
}

func TestPlanSelectionStrictWrapsIndexToAllTried(t *testing.T) {
	plans := []*PlanTemplate{{Name: "A"}, {Name: "B"}}
	tac := &Tactic{Name: "T", Plans: plans, PlanOrder: Strict}
	sel := NewPlanSelection(tac)

	assert.False(t, sel.AllTried(plans[0]))
	assert.True(t, sel.AllTried(plans[1]), "index wraps back to 0 on the second plan")
}

func TestPlanSelectionChooseBestPlanAllTried(t *testing.T) {
	plans := []*PlanTemplate{{Name: "A"}, {Name: "B"}}
	tac := &Tactic{Name: "T", Plans: plans, PlanOrder: ChooseBestPlan}
	sel := NewPlanSelection(tac)

	sel.RecordAttempt("A", false)
	assert.False(t, sel.AllTried(plans[0]), "B has not been attempted this loop iteration")

	sel.RecordAttempt("B", true)
	assert.True(t, sel.AllTried(plans[1]))
}

func TestPlanSelectionAdvanceLoopRespectsCeiling(t *testing.T) {
	tac := &Tactic{Name: "T", LoopPlansCount: 2}
	sel := NewPlanSelection(tac)

	require.False(t, sel.AdvanceLoop())
	assert.Equal(t, 1, sel.PlanLoopIteration)

	assert.True(t, sel.AdvanceLoop(), "loop ceiling reached: policy failure")
}

func TestPlanSelectionAdvanceLoopInfinite(t *testing.T) {
	tac := &Tactic{Name: "T", LoopPlansCount: InfiniteLoops}
	sel := NewPlanSelection(tac)

	for i := 0; i < 100; i++ {
		assert.False(t, sel.AdvanceLoop())
	}
	assert.Equal(t, 100, sel.PlanLoopIteration)
}

func TestPlanSimulateEffectsDoesNotMutateOriginal(t *testing.T) {
	ctx := belief.New()
	ctx.PutResource(belief.NewResource("Battery", 0, 100, 50))

	p := &PlanTemplate{
		Name: "DoTask",
		Effects: func(c *belief.Context) {
			r, _ := c.GetResource("Battery")
			r.Consume(10)
		},
	}
	assert.False(t, p.IsEffectless())

	result := p.SimulateEffects(ctx)
	rResult, _ := result.GetResource("Battery")
	assert.Equal(t, int64(40), rResult.Count)

	rOriginal, _ := ctx.GetResource("Battery")
	assert.Equal(t, int64(50), rOriginal.Count, "simulation must not mutate the live context")
}

func TestPlanWithNoEffectsIsEffectless(t *testing.T) {
	p := &PlanTemplate{Name: "PureQuery"}
	assert.True(t, p.IsEffectless())
}
