package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/task"
)

func printBody(text string) PlanBodyFactory {
	return func() *task.Coroutine {
		b := task.NewBuilder()
		b.Add(task.NewPrintTask(text))
		return b.Build()
	}
}

func TestBundleApplyCommitsAgentTemplate(t *testing.T) {
	bundle := &Bundle{
		Agents: []AgentSpec{
			{
				Name:  "Rover",
				Goals: []GoalSpec{{Name: "Patrol", Persistent: true}},
				Plans: []PlanSpec{{Name: "PatrolPlan", Goal: "Patrol", BodyRef: "patrol"}},
				Roles: []string{"Patrol"},
			},
		},
	}

	r := NewRegistry()
	bodies := map[string]PlanBodyFactory{"patrol": printBody("patrolling")}
	require.NoError(t, bundle.Apply(r, bodies, nil))

	tpl, ok := r.agentTemplates["Rover"]
	require.True(t, ok)
	assert.Len(t, tpl.GoalTemplates, 1)
	assert.Len(t, tpl.Plans["Patrol"], 1)
	assert.Equal(t, []string{"Patrol"}, tpl.Roles)
}

func TestBundleApplyRejectsUnregisteredPlanBody(t *testing.T) {
	bundle := &Bundle{
		Agents: []AgentSpec{{
			Name:  "Rover",
			Goals: []GoalSpec{{Name: "Patrol"}},
			Plans: []PlanSpec{{Name: "PatrolPlan", Goal: "Patrol", BodyRef: "missing"}},
		}},
	}
	err := bundle.Apply(NewRegistry(), map[string]PlanBodyFactory{}, nil)
	assert.Error(t, err)
}

func TestBundleApplyRejectsUnknownMessageSchema(t *testing.T) {
	bundle := &Bundle{
		Agents: []AgentSpec{{
			Name:  "Rover",
			Goals: []GoalSpec{{Name: "Patrol", MessageSchema: "NoSuchSchema"}},
		}},
	}
	err := bundle.Apply(NewRegistry(), nil, nil)
	assert.Error(t, err)
}

func TestBundleApplyCommitsTeamTemplate(t *testing.T) {
	bundle := &Bundle{
		Agents: []AgentSpec{{Name: "Squad", Team: true, Goals: []GoalSpec{{Name: "Mission"}}}},
	}
	r := NewRegistry()
	require.NoError(t, bundle.Apply(r, nil, nil))

	_, isAgent := r.agentTemplates["Squad"]
	_, isTeam := r.teamTemplates["Squad"]
	assert.False(t, isAgent)
	assert.True(t, isTeam)
}
