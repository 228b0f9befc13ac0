package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/model"
	"github.com/jackagents/jackgo/task"
)

// PlanBodyFactory builds a plan's coroutine body; YAML can name a plan
// but never its control flow, so every Bundle load is handed a registry
// of these, keyed by the BodyRef a PlanSpec names (§6.2 "committing a
// plan" kept as Go-authored code; only the wiring around it — which
// goals, which tactics, which resources — is data).
type PlanBodyFactory func() *task.Coroutine

// GoalSpec declaratively names one committed goal template. Precondition/
// Satisfied/DropWhen/Heuristic predicates stay Go-side (a GoalPredicates
// value looked up by goal name in Apply), same rationale as
// PlanBodyFactory.
type GoalSpec struct {
	Name          string `yaml:"name"`
	MessageSchema string `yaml:"message_schema,omitempty"`
	Persistent    bool   `yaml:"persistent,omitempty"`
}

// PlanSpec declaratively names one committed plan template.
type PlanSpec struct {
	Name             string   `yaml:"name"`
	Goal             string   `yaml:"goal"`
	BodyRef          string   `yaml:"body"`
	ResourceLocks    []string `yaml:"resource_locks,omitempty"`
	RequiredServices []string `yaml:"required_services,omitempty"`
}

// AgentSpec declaratively describes one agent or team template (§6.2's
// builder API, loaded from data instead of Go calls).
type AgentSpec struct {
	Name      string     `yaml:"name"`
	Team      bool       `yaml:"team,omitempty"`
	Goals     []GoalSpec `yaml:"goals,omitempty"`
	Plans     []PlanSpec `yaml:"plans,omitempty"`
	Roles     []string   `yaml:"roles,omitempty"`
	Services  []string   `yaml:"services,omitempty"`
	Resources []string   `yaml:"resources,omitempty"` // names only; quantities are Go-side (belief.Resource holds a mutex-guarded counter)
	Beliefs   []string   `yaml:"beliefs,omitempty"`   // committed message schema names to instantiate as empty beliefs
	Shared    []string   `yaml:"shared,omitempty"`
	Desires   []struct {
		Goal       string `yaml:"goal"`
		Persistent bool   `yaml:"persistent,omitempty"`
	} `yaml:"desires,omitempty"`
	ShareCadence time.Duration `yaml:"share_cadence,omitempty"`
}

// Bundle is the top-level shape of a templates.yaml file (§11 "a
// YAML-first alternative to the builder API of §6.2").
type Bundle struct {
	Schemas []message.Schema `yaml:"schemas,omitempty"`
	Agents  []AgentSpec      `yaml:"agents,omitempty"`
}

// LoadBundleFile reads and parses a templates.yaml at path.
func LoadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template bundle %s: %w", path, err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse template bundle %s: %w", path, err)
	}
	return &b, nil
}

// Apply commits every schema and agent/team template in b against r,
// resolving GoalSpec predicates from goalPredicates (by goal name) and
// PlanSpec bodies from bodies (by BodyRef). An unregistered body or an
// unknown schema name is an error rather than a silently-empty plan: a
// committed plan with a nil body would panic the first time its executor
// started it. A goal with no goalPredicates entry is committed without
// predicates.
func (b *Bundle) Apply(r *Registry, bodies map[string]PlanBodyFactory, goalPredicates map[string]GoalPredicates) error {
	for _, s := range b.Schemas {
		r.CommitMessageSchema(s)
	}
	for _, spec := range b.Agents {
		builder := NewTemplateBuilder(spec.Name)
		for _, gs := range spec.Goals {
			gt := &model.GoalTemplate{Name: gs.Name, Persistent: gs.Persistent}
			if pred, ok := goalPredicates[gs.Name]; ok {
				gt.Precondition = pred.Precondition
				gt.Satisfied = pred.Satisfied
				gt.DropWhen = pred.DropWhen
				gt.Heuristic = pred.Heuristic
			}
			if gs.MessageSchema != "" {
				if sch, ok := r.Schema(gs.MessageSchema); ok {
					gt.MessageSchema = &sch
				} else {
					return fmt.Errorf("template %s: goal %s references unknown schema %s", spec.Name, gs.Name, gs.MessageSchema)
				}
			}
			builder.CommitGoal(gt)
		}
		for _, ps := range spec.Plans {
			body, ok := bodies[ps.BodyRef]
			if !ok {
				return fmt.Errorf("template %s: plan %s references unregistered body %q", spec.Name, ps.Name, ps.BodyRef)
			}
			builder.CommitPlan(&model.PlanTemplate{
				Name:             ps.Name,
				Goal:             ps.Goal,
				BuildBody:        body,
				ResourceLocks:    ps.ResourceLocks,
				RequiredServices: ps.RequiredServices,
			})
		}
		for _, role := range spec.Roles {
			builder.CommitRole(role)
		}
		for _, svc := range spec.Services {
			builder.RequireService(svc)
		}
		for _, res := range spec.Resources {
			// A YAML-declared resource is a single exclusive lock (min 0,
			// max 1, starting full); anything richer needs the builder API.
			builder.CommitResource(belief.NewResource(res, 0, 1, 1))
		}
		for _, schemaName := range spec.Beliefs {
			if sch, ok := r.Schema(schemaName); ok {
				builder.CommitBelief(sch)
			} else {
				return fmt.Errorf("template %s: belief references unknown schema %s", spec.Name, schemaName)
			}
		}
		for _, schemaName := range spec.Shared {
			builder.Share(schemaName)
		}
		for _, d := range spec.Desires {
			builder.Desire(d.Goal, nil, d.Persistent)
		}

		tpl := builder.Build()
		if spec.Team {
			r.CommitTeam(tpl)
		} else {
			r.CommitAgent(tpl)
		}
	}
	return nil
}

// GoalPredicates holds the Go-side callbacks a GoalSpec's declarative
// stub resolves to, looked up by goal name at Apply time.
type GoalPredicates struct {
	Precondition func(*belief.Context) bool
	Satisfied    func(*belief.Context) bool
	DropWhen     func(*belief.Context) bool
	Heuristic    func(*belief.Context) float64
}
