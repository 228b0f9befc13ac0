package engine

import (
	"github.com/jackagents/jackgo/agent"
	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/model"
)

// Registry is the template registration surface (§6.2: "An engine exposes
// builders for each template kind. The committed form is keyed by name.").
// It holds every committed agent/team/service/schema definition; Engine
// instantiates live entities from what's committed here.
type Registry struct {
	agentTemplates map[string]*agent.Template
	teamTemplates  map[string]*agent.Template
	services       map[string]*agent.ServiceTemplate
	serviceOrder   []string // commit order, for "the first globally-committed compatible service" (§4.7)
	schemas        map[string]message.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		agentTemplates: make(map[string]*agent.Template),
		teamTemplates:  make(map[string]*agent.Template),
		services:       make(map[string]*agent.ServiceTemplate),
		schemas:        make(map[string]message.Schema),
	}
}

// CommitMessageSchema registers schema under its own name so agent/team
// templates can reference it when declaring beliefs (§6.2, §3 Beliefs).
func (r *Registry) CommitMessageSchema(schema message.Schema) message.Schema {
	r.schemas[schema.Name] = schema
	return schema
}

// Schema looks up a previously committed schema by name.
func (r *Registry) Schema(name string) (message.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// CommitService registers a reusable service definition, keyed by name, in
// commit order (§4.7 "the first globally-committed compatible service").
func (r *Registry) CommitService(tpl *agent.ServiceTemplate) *agent.ServiceTemplate {
	if _, exists := r.services[tpl.Name]; !exists {
		r.serviceOrder = append(r.serviceOrder, tpl.Name)
	}
	r.services[tpl.Name] = tpl
	return tpl
}

// CommitAgent registers a plain (non-team) agent template.
func (r *Registry) CommitAgent(tpl *agent.Template) *agent.Template {
	r.agentTemplates[tpl.Name] = tpl
	return tpl
}

// CommitTeam registers a team template; teams are instantiated through
// Engine.SpawnTeam rather than Engine.SpawnAgent so membership can be
// wired in after the Team's own Agent half exists (§3 Team, §4.8).
func (r *Registry) CommitTeam(tpl *agent.Template) *agent.Template {
	r.teamTemplates[tpl.Name] = tpl
	return tpl
}

// AgentTemplateNames lists every committed non-team agent template, for
// hosts (jackd) that spawn one instance per committed template rather
// than wiring spawns by hand.
func (r *Registry) AgentTemplateNames() []string {
	names := make([]string, 0, len(r.agentTemplates))
	for name := range r.agentTemplates {
		names = append(names, name)
	}
	return names
}

// TeamTemplateNames lists every committed team template.
func (r *Registry) TeamTemplateNames() []string {
	names := make([]string, 0, len(r.teamTemplates))
	for name := range r.teamTemplates {
		names = append(names, name)
	}
	return names
}

// TemplateBuilder assembles one agent.Template's goals, plans, tactics,
// actions, roles, resources and beliefs through the per-kind commit calls
// of §6.2, auto-wiring the builtin tactic the moment a goal is committed.
type TemplateBuilder struct {
	tpl *agent.Template
}

// NewTemplateBuilder starts a fresh template named name.
func NewTemplateBuilder(name string) *TemplateBuilder {
	return &TemplateBuilder{tpl: &agent.Template{
		Name:            name,
		GoalTemplates:   make(map[string]*model.GoalTemplate),
		Plans:           make(map[string][]*model.PlanTemplate),
		Tactics:         make(map[string]*model.Tactic),
		ActionHandlers:  make(map[string]agent.ActionHandler),
		MessageHandlers: make(map[string]agent.MessageHandler),
	}}
}

// CommitGoal registers a goal template and auto-creates its builtin tactic
// "<goal-name> Tactic" in ChooseBestPlan mode with every plan committed to
// it so far (§6.2); a later CommitTactic call for the same goal overrides
// this default.
func (b *TemplateBuilder) CommitGoal(g *model.GoalTemplate) *model.GoalTemplate {
	b.tpl.GoalTemplates[g.Name] = g
	if _, ok := b.tpl.Tactics[g.Name]; !ok {
		b.tpl.Tactics[g.Name] = model.NewBuiltinTactic(g.Name, b.tpl.Plans[g.Name])
	}
	return g
}

// CommitPlan binds p to its goal's per-goal plan list, in commit order, and
// keeps that goal's still-builtin tactic in sync so a plan committed after
// its goal is still reachable (§6.2 "Committing a plan binds it to its
// goal's per-goal plan list").
func (b *TemplateBuilder) CommitPlan(p *model.PlanTemplate) *model.PlanTemplate {
	b.tpl.Plans[p.Goal] = append(b.tpl.Plans[p.Goal], p)
	if t, ok := b.tpl.Tactics[p.Goal]; ok && t.Name == model.BuiltinTacticName(p.Goal) {
		t.Plans = b.tpl.Plans[p.Goal]
	}
	return p
}

// CommitTactic overrides the auto-created builtin tactic for t.Goal.
func (b *TemplateBuilder) CommitTactic(t *model.Tactic) *model.Tactic {
	b.tpl.Tactics[t.Goal] = t
	return t
}

// CommitAction registers an action handler by name.
func (b *TemplateBuilder) CommitAction(name string, h agent.ActionHandler) {
	b.tpl.ActionHandlers[name] = h
}

// CommitMessageHandler registers a belief-replacing MESSAGE handler for
// schemaName.
func (b *TemplateBuilder) CommitMessageHandler(schemaName string, h agent.MessageHandler) {
	b.tpl.MessageHandlers[schemaName] = h
}

// CommitRole marks this template as a delegate candidate for goalName
// (§3 Roles, §4.8 getDelegates).
func (b *TemplateBuilder) CommitRole(goalName string) {
	b.tpl.Roles = append(b.tpl.Roles, goalName)
}

// CommitResource registers a resource this template's plans may lock.
func (b *TemplateBuilder) CommitResource(r *belief.Resource) {
	b.tpl.Resources = append(b.tpl.Resources, r)
}

// CommitBelief instantiates schema as an empty belief at agent start.
func (b *TemplateBuilder) CommitBelief(schema message.Schema) {
	b.tpl.Beliefs = append(b.tpl.Beliefs, schema)
}

// RequireService declares that an instance of this template needs svcName
// attached (§3 Template "services (required)").
func (b *TemplateBuilder) RequireService(svcName string) {
	b.tpl.Services = append(b.tpl.Services, svcName)
}

// Share marks schemaName as one this template publishes to its teams on
// the share cadence (§4.8 shared-beliefsets, §12 supplemented feature).
func (b *TemplateBuilder) Share(schemaName string) {
	b.tpl.SharedSchemas = append(b.tpl.SharedSchemas, schemaName)
}

// Desire seeds an initial pursued goal at instance start (§3 "desires").
func (b *TemplateBuilder) Desire(goalName string, params *message.Message, persistent bool) {
	b.tpl.Desires = append(b.tpl.Desires, agent.PursueSpec{GoalName: goalName, Params: params, Persistent: persistent})
}

// Build returns the assembled template, ready for Registry.CommitAgent or
// Registry.CommitTeam.
func (b *TemplateBuilder) Build() *agent.Template { return b.tpl }
