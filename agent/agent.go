// Package agent implements §3 Agent/Team/Service/ProxyAgent and §4.5/§4.7:
// the event-driven entity that owns a belief context, a desire list, a
// scheduler-fed intention DAG, and the dispatcher side effects its tasks
// trigger.
package agent

import (
	"time"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/executor"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/model"
	"github.com/jackagents/jackgo/schedule"
	"github.com/jackagents/jackgo/task"
)

// DefaultMaxDepth is the MaxDepth every schedule search is built with. The
// search stores it but does not consult it: it expands each remaining goal
// one ply only.
const DefaultMaxDepth = 8

// fairDrainBound caps how many events one Tick drains from an entity's
// queue, per §4.7 "the owner drains per tick" and §4.5 step 1 "up to a
// fair bound".
const fairDrainBound = 64

// DefaultShareCadence is how often an agent publishes dirty beliefs to its
// teams when Template.ShareCadence is zero (§4.8 shared-beliefsets).
const DefaultShareCadence = time.Second

// ActionResult is an action handler's synchronous or eventually-resolved
// outcome (§4.7 "handler returns SUCCESS|FAIL|PENDING").
type ActionResult struct {
	Status event.Status
	Reply  *message.Message
}

// ActionHandler answers one ACTION event. Returning event.StatusPending
// defers the result; the caller must later call Agent.FinishActionHandle.
type ActionHandler func(request *message.Message) ActionResult

// MessageHandler reacts to an incoming belief-replacing MESSAGE event.
type MessageHandler func(msg *message.Message)

// PursueSpec is one template-level initial desire (§3 Agent "desires").
type PursueSpec struct {
	GoalName   string
	Params     *message.Message
	Persistent bool
}

// Template is the committed, reusable definition of an agent (§3
// "Agent / Team. Template fields: plans, roles, resources, services
// (required), desires (initial goals), beliefs (schema names to
// instantiate), tactics, actionHandlers, messageHandlers,
// resourcesToGoals").
type Template struct {
	Name string

	GoalTemplates map[string]*model.GoalTemplate
	// Plans maps a goal template name to its committed plan list, in
	// commit order (§6.2 "Committing a plan binds it to its goal's
	// per-goal plan list").
	Plans map[string][]*model.PlanTemplate
	// Tactics overrides the auto-created builtin tactic for a goal name;
	// goals absent here get NewBuiltinTactic (§6.2).
	Tactics map[string]*model.Tactic

	Resources []*belief.Resource
	Beliefs   []message.Schema // schemas to instantiate as empty beliefs at start

	Roles []string // goal names this agent can serve as a team delegate

	// Services names the services this agent requires attached; each
	// entry starts available unless overridden via SetServiceAvailable.
	Services []string

	ActionHandlers  map[string]ActionHandler
	MessageHandlers map[string]MessageHandler

	Desires []PursueSpec

	// SharedSchemas lists the belief schemas this agent publishes to its
	// teams on ShareCadence (§4.8, §12 supplemented feature).
	SharedSchemas []string
	ShareCadence  time.Duration
}

// LifecycleState is the CONTROL-driven state machine shared by Agent and
// Service (§3 Service, §4.7 CONTROL).
type LifecycleState int

const (
	Stopped LifecycleState = iota
	Stopping
	Running
	Paused
)

func (s LifecycleState) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Paused:
		return "PAUSED"
	case Stopping:
		return "STOPPING"
	default:
		return "STOPPED"
	}
}

// RunState is the rolled-up executor state reported by an agent tick
// (§4.5 "Runtime state rolled up from executors").
type RunState int

const (
	Idle RunState = iota
	Busy
	Waiting
	Halted
)

func (s RunState) String() string {
	switch s {
	case Busy:
		return "BUSY"
	case Waiting:
		return "WAITING"
	case Halted:
		return "STOPPED"
	default:
		return "IDLE"
	}
}

// Router delivers an event this agent cannot resolve itself: a PURSUE/
// DROP/DELEGATION/ACTIONCOMPLETE bound for another local entity, a team,
// or (for a ProxyAgent) the external bus (§4.7, §4.9).
type Router interface {
	Route(e *event.Event)
}

type delegationCallback struct {
	team       identity.Handle
	scheduleID identity.UniqueId
}

// Agent is the live instance of a Template (§3 Agent instance state).
type Agent struct {
	handle   identity.Handle
	nodeName string
	template *Template

	logger core.ComponentAwareLogger
	router Router

	belief  *belief.Context
	schemas map[string]message.Schema // committed schemas this agent knows, by name

	queue *event.Queue

	goals map[identity.UniqueId]*model.Goal
	execs map[identity.UniqueId]*executor.IntentionExecutor

	dag           *executor.DAG
	pendingSearch *schedule.Search
	dirty         schedule.DirtyBits

	timers         []*event.Event
	pendingActions map[int]event.ActionPayload

	delegationCallbacks map[identity.UniqueId]delegationCallback

	services map[string]bool

	dispatcher *dispatcher

	state           LifecycleState
	internalClockUs int64
	lastShareUs     int64
	dirtySinceShare map[string]bool

	// auctionSink and shareSink let Team intercept AUCTION/SHAREBELIEFSET
	// events without this package depending on package agent's own Team
	// type (set by NewTeam).
	auctionSink func(*event.Event)
	shareSink   func(*event.Event)

	// delegable/members/broker plug the scheduler's delegation path; a
	// plain Agent never delegates (always nil/empty), Team overrides them.
	delegable func(*model.Goal) bool
	members   func(*model.Goal) []string
	broker    schedule.AuctionBroker

	// onDelegateBound fires the first time a delegated SearchNode becomes
	// a live executor, letting Team commit the winning delegate and tell
	// other bidders to stand down (§4.8 delegateGoal).
	onDelegateBound func(goalHandle identity.Handle, delegate string, params *message.Message, goalName string)
}

type noopComponentLogger struct{ core.NoOpLogger }

func (noopComponentLogger) WithComponent(string) core.Logger { return core.NoOpLogger{} }

// NewAgent builds a started-but-stopped Agent instance from tpl: installs
// its resources and empty beliefs, auto-creates builtin tactics for every
// committed goal (§6.2), and seeds its initial desires (§3 "desires").
func NewAgent(nodeName string, tpl *Template, logger core.ComponentAwareLogger) *Agent {
	if logger == nil {
		logger = noopComponentLogger{}
	}
	a := &Agent{
		handle:              identity.NewHandle(tpl.Name),
		nodeName:            nodeName,
		template:            tpl,
		logger:              logger,
		belief:              belief.New(),
		schemas:             make(map[string]message.Schema),
		queue:               event.NewQueue(),
		goals:               make(map[identity.UniqueId]*model.Goal),
		execs:               make(map[identity.UniqueId]*executor.IntentionExecutor),
		pendingActions:      make(map[int]event.ActionPayload),
		delegationCallbacks: make(map[identity.UniqueId]delegationCallback),
		services:            make(map[string]bool),
		dirtySinceShare:     make(map[string]bool),
		state:               Stopped,
	}
	a.dispatcher = &dispatcher{agent: a}

	if tpl.Tactics == nil {
		tpl.Tactics = make(map[string]*model.Tactic)
	}
	for name := range tpl.GoalTemplates {
		if _, ok := tpl.Tactics[name]; !ok {
			tpl.Tactics[name] = model.NewBuiltinTactic(name, tpl.Plans[name])
		}
	}

	for _, r := range tpl.Resources {
		a.belief.PutResource(r)
	}
	for _, schema := range tpl.Beliefs {
		a.schemas[schema.Name] = schema
		a.belief.SetBelief(message.New(schema))
	}
	for _, svc := range tpl.Services {
		a.services[svc] = true
	}
	if tpl.ShareCadence <= 0 {
		tpl.ShareCadence = DefaultShareCadence
	}

	for _, d := range tpl.Desires {
		a.pursueInternal(d.GoalName, d.Params, identity.Handle{}, d.Persistent)
	}
	return a
}

// Handle returns this agent's identity.
func (a *Agent) Handle() identity.Handle { return a.handle }

// Belief implements executor.AgentHandle.
func (a *Agent) Belief() *belief.Context { return a.belief }

// Dispatcher implements executor.AgentHandle.
func (a *Agent) Dispatcher() task.Dispatcher { return a.dispatcher }

// HasLiveSubGoal implements executor.AgentHandle (§4.3 drop gate).
func (a *Agent) HasLiveSubGoal(id identity.UniqueId) bool {
	g, ok := a.goals[id]
	return ok && g.FinishState == model.NotYet
}

// SetRouter installs the cross-entity delivery hook (§4.7, §4.9).
func (a *Agent) SetRouter(r Router) { a.router = r }

// SetServiceAvailable marks name attached/detached for the scheduler's
// required-service check (§4.6 expansion).
func (a *Agent) SetServiceAvailable(name string, available bool) {
	a.services[name] = available
}

// AttachedServices lists the service names this agent's template declared
// (§3 Template "services (required)"), for the engine's unhandled-ACTION
// forwarding fallback (§4.7 "forwards to the first attached service with a
// matching handler").
func (a *Agent) AttachedServices() []string { return a.template.Services }

// HasBelief reports whether schemaName was committed to this agent's
// belief context, for the engine's null-recipient PERCEPT broadcast
// (§4.7 "percept to all agents subscribed to the schema's belief").
func (a *Agent) HasBelief(schemaName string) bool {
	_, ok := a.schemas[schemaName]
	return ok
}

// HasMessageHandler reports whether this agent registered a handler for
// schemaName, for the engine's null-recipient MESSAGE broadcast (§4.7
// "messages to targeted agent or broadcast to all handlers").
func (a *Agent) HasMessageHandler(schemaName string) bool {
	_, ok := a.template.MessageHandlers[schemaName]
	return ok
}

// Enqueue pushes an externally-produced event onto this agent's queue.
// Safe to call from any goroutine (§5 "event producers ... may enqueue
// events from any thread").
func (a *Agent) Enqueue(e *event.Event) { a.queue.Push(e) }

// FinishActionHandle completes a PENDING action handler result from any
// thread by enqueuing an ACTIONCOMPLETE event correlated by taskID and
// desireID (§5 seam 2, §4.7 ACTIONCOMPLETE).
func (a *Agent) FinishActionHandle(taskID int, desireID identity.UniqueId, succeeded bool, reply *message.Message, resourceLocks []string) {
	ev := event.New(event.ActionComplete, a.nodeName, a.handle, a.handle, 0)
	ev.ActionComplete = event.ActionCompletePayload{
		TaskID:        taskID,
		DesireID:      desireID,
		Succeeded:     succeeded,
		Reply:         reply,
		ResourceLocks: resourceLocks,
	}
	a.queue.Push(ev)
}

// Control applies a CONTROL command immediately (used by the engine and by
// tests; equivalent to enqueuing a CONTROL event to self).
func (a *Agent) Control(cmd event.ControlCommand) {
	switch cmd {
	case event.CmdStart:
		a.state = Running
	case event.CmdPause:
		a.state = Paused
	case event.CmdStop:
		a.state = Stopped
	}
}

func (a *Agent) State() LifecycleState { return a.state }

// RunState rolls up the DAG's open executors into the §4.5 status report.
func (a *Agent) RunState() RunState {
	if a.state != Running {
		return Halted
	}
	if a.dag == nil || len(a.dag.Roots()) == 0 {
		return Idle
	}
	for _, n := range a.dag.Roots() {
		if n.Executor.State == executor.Running {
			return Busy
		}
	}
	return Waiting
}

func (a *Agent) markDirty(bits schedule.DirtyBits) { a.dirty |= bits }

// DesireCount reports how many desire instances are currently live, for
// diagnostics and the jackd inspect CLI.
func (a *Agent) DesireCount() int { return len(a.goals) }

// Goal looks up a live desire by id, for diagnostics and tests.
func (a *Agent) Goal(id identity.UniqueId) (*model.Goal, bool) {
	g, ok := a.goals[id]
	return g, ok
}

// IntentionSnapshot is a read-only projection of one live
// IntentionExecutor, for the jackd inspect CLI and store.RedisExecutionStore's
// telemetry mirror (§11 domain stack: schedule/auction telemetry may be
// persisted for observability without the belief context itself ever
// becoming durable).
type IntentionSnapshot struct {
	GoalID     identity.UniqueId
	GoalName   string
	PlanName   string
	Delegated  bool
	State      executor.State
	Succeeded  int
	Failed     int
}

// Intentions snapshots every currently-executing desire, in no
// particular order.
func (a *Agent) Intentions() []IntentionSnapshot {
	out := make([]IntentionSnapshot, 0, len(a.execs))
	for id, ex := range a.execs {
		planName := ""
		if ex.CurrentIntention != nil {
			planName = ex.CurrentIntention.Name
		}
		out = append(out, IntentionSnapshot{
			GoalID:    id,
			GoalName:  ex.Goal.Template.Name,
			PlanName:  planName,
			Delegated: ex.Delegated,
			State:     ex.State,
			Succeeded: ex.Succeeded,
			Failed:    ex.Failed,
		})
	}
	return out
}

func (a *Agent) route(ev *event.Event) {
	if a.router != nil {
		a.router.Route(ev)
	}
}

func (a *Agent) now() time.Time { return time.UnixMicro(a.internalClockUs) }

// pursueInternal builds a new desire instance directly (used for the
// template's initial desires and for re-pursuing a persistent goal, §3
// Goal "persistent").
func (a *Agent) pursueInternal(goalName string, params *message.Message, parentGoal identity.Handle, persistent bool) identity.UniqueId {
	tpl, ok := a.template.GoalTemplates[goalName]
	if !ok {
		a.logger.WithComponent("jack/dispatch").Warn("pursue: unknown goal", map[string]interface{}{"goal": goalName})
		return identity.Nil
	}
	g := model.NewGoal(tpl, a.belief, model.ParentRef{GoalHandle: parentGoal})
	g.Params = params
	g.Persistent = persistent
	g.PlanSelection = model.NewPlanSelection(a.tacticFor(goalName))
	a.goals[g.ID] = g
	a.markDirty(schedule.GoalAdded)
	return g.ID
}

func (a *Agent) tacticFor(goalName string) *model.Tactic {
	if t, ok := a.template.Tactics[goalName]; ok {
		return t
	}
	t := model.NewBuiltinTactic(goalName, a.template.Plans[goalName])
	a.template.Tactics[goalName] = t
	return t
}

func (a *Agent) serviceAvailable(name string) bool { return a.services[name] }

// schedulerDeps builds the §4.6 Deps closures bound to this agent's
// template and (for Team) delegation hooks.
func (a *Agent) schedulerDeps() schedule.Deps {
	return schedule.Deps{
		PlansFor:         func(name string) []*model.PlanTemplate { return a.template.Plans[name] },
		TacticFor:        a.tacticFor,
		ServiceAvailable: a.serviceAvailable,
		Delegable:        a.delegable,
		Members:          a.members,
	}
}

// beforeTick is installed as the DAG's BeforeTick hook: it stamps which
// intention is "active" on the shared dispatcher and publishes its goal
// params into the belief context, both scoped to this one root's Execute
// call (§4.7 ACTION/TIMER correlation, §3 BeliefContext "goal").
func (a *Agent) beforeTick(n *executor.DAGNode) {
	a.dispatcher.active = n.Executor
	a.belief.SetGoalParams(n.Executor.Goal.Params)
}

// liveGoals returns every desire not yet finished, the scheduler's input
// set for one search (§4.6).
func (a *Agent) liveGoals() []*model.Goal {
	var out []*model.Goal
	for _, g := range a.goals {
		if g.FinishState == model.NotYet {
			out = append(out, g)
		}
	}
	return out
}

// Tick drains this agent's queue, fires due timers, reaps concluded
// desires, advances the schedule search, and runs one DAG tick (§4.5,
// §4.10 "run(): one executor step plus one schedule step at most").
func (a *Agent) Tick(nowUs int64) {
	a.internalClockUs = nowUs
	a.drainEvents()
	if a.state != Running {
		return
	}
	a.fireDueTimers()
	a.reapConcludedDesires()
	a.stepSchedule()
	if a.dag != nil {
		a.dag.BeforeTick = a.beforeTick
		a.dag.Tick()
	}
	a.maybeShareBeliefSets(nowUs)
}

func (a *Agent) drainEvents() {
	batch := a.queue.Drain(fairDrainBound)
	for _, ev := range batch {
		a.handleEvent(ev)
	}
}

func (a *Agent) handleEvent(ev *event.Event) {
	switch ev.Kind {
	case event.Control:
		a.Control(ev.Control.Cmd)
	case event.Percept:
		a.handlePercept(ev)
	case event.Message:
		a.handleMessage(ev)
	case event.Pursue:
		a.handlePursueEvent(ev)
	case event.Drop:
		a.handleDrop(ev)
	case event.Delegation:
		a.handleDelegation(ev)
	case event.Auction:
		if a.auctionSink != nil {
			a.auctionSink(ev)
		}
	case event.Action:
		a.handleAction(ev)
	case event.ActionComplete:
		a.handleActionComplete(ev)
	case event.Timer:
		a.handleTimer(ev)
	case event.ShareBeliefSet:
		if a.shareSink != nil {
			a.shareSink(ev)
		}
	}
}

func (a *Agent) handlePercept(ev *event.Event) {
	p := ev.Percept
	msg, ok := a.belief.Belief(p.SchemaName)
	if !ok {
		schema, ok2 := a.schemas[p.SchemaName]
		if !ok2 {
			return
		}
		msg = message.New(schema)
	}
	msg.Set(p.Field.Name, p.Field.Value)
	a.belief.SetBelief(msg)
	a.dirtySinceShare[p.SchemaName] = true
	a.markDirty(schedule.Percept)
}

func (a *Agent) handleMessage(ev *event.Event) {
	if ev.MessagePayload == nil {
		return
	}
	clone := ev.MessagePayload.Clone()
	a.belief.SetBelief(clone)
	a.dirtySinceShare[clone.SchemaName()] = true
	if h, ok := a.template.MessageHandlers[clone.SchemaName()]; ok && h != nil {
		h(clone)
	}
	a.markDirty(schedule.MessageDirty)
}

func (a *Agent) handlePursueEvent(ev *event.Event) {
	p := ev.Pursue
	tpl, ok := a.template.GoalTemplates[p.GoalName]
	if !ok {
		a.logger.WithComponent("jack/dispatch").Warn("pursue: unknown goal", map[string]interface{}{"goal": p.GoalName})
		return
	}
	parent := model.ParentRef{}
	g := model.NewGoal(tpl, a.belief, parent)
	if p.PreassignedID.Valid() {
		g.ID = p.PreassignedID
	}
	g.Params = p.Params
	g.Persistent = p.Persistent
	g.PlanSelection = model.NewPlanSelection(a.tacticFor(p.GoalName))
	a.goals[g.ID] = g
	a.markDirty(schedule.GoalAdded)
}

func (a *Agent) handleDrop(ev *event.Event) {
	d := ev.Drop
	g, ok := a.goals[d.GoalHandle.Id]
	if !ok {
		return // idempotent drop of a non-existent desire (§7)
	}
	if d.Mode == event.DropNormal && (g.Persistent || g.Template.Persistent) {
		return
	}
	if ex, ok := a.execs[g.ID]; ok {
		ex.RequestDrop(d.Mode == event.DropForce)
		return
	}
	g.FinishState = model.GoalDropped
	delete(a.goals, g.ID)
	a.markDirty(schedule.GoalRemoved)
}

// handleDelegation implements §4.7's two DELEGATION cases: a team asking
// this member to bid (Analyse), or directing it to actually run the goal.
func (a *Agent) handleDelegation(ev *event.Event) {
	d := ev.Delegation
	tpl, ok := a.template.GoalTemplates[d.GoalName]
	if !ok {
		return
	}
	if d.Analyse {
		a.bidOnDelegation(ev, tpl, d)
		return
	}
	g := model.NewGoal(tpl, a.belief, model.ParentRef{})
	g.Params = d.Params
	g.PlanSelection = model.NewPlanSelection(a.tacticFor(d.GoalName))
	a.goals[g.ID] = g
	a.markDirty(schedule.GoalAdded)
	a.delegationCallbacks[g.ID] = delegationCallback{team: ev.Sender, scheduleID: d.ScheduleID}
}

// bidOnDelegation builds a single-goal schedule against a cloned context
// and replies with an AUCTION bid, or sends nothing (letting the auction
// time out) if no local plan applies (§4.6 "Auction").
func (a *Agent) bidOnDelegation(ev *event.Event, tpl *model.GoalTemplate, d event.DelegationPayload) {
	ctx := a.belief.Clone()
	probe := model.NewGoal(tpl, ctx, model.ParentRef{})
	probe.Params = d.Params
	probe.PlanSelection = model.NewPlanSelection(a.tacticFor(d.GoalName))

	deps := schedule.Deps{
		PlansFor:         func(name string) []*model.PlanTemplate { return a.template.Plans[name] },
		TacticFor:        a.tacticFor,
		ServiceAvailable: a.serviceAvailable,
	}
	search := schedule.NewSearch([]*model.Goal{probe}, ctx, DefaultMaxDepth, deps, nil)
	search.Run(a.now())
	chain := search.BestChain()
	if len(chain) == 0 {
		return
	}
	reply := event.New(event.Auction, a.nodeName, a.handle, ev.Sender, a.internalClockUs)
	reply.Auction = event.AuctionPayload{Bid: chain[0].CostTotal, ScheduleID: d.ScheduleID}
	a.route(reply)
}

func (a *Agent) handleAction(ev *event.Event) {
	act := ev.Action
	h, ok := a.template.ActionHandlers[act.Name]
	if !ok {
		a.route(ev) // §4.7: the engine forwards unhandled actions to a service
		return
	}
	result := h(act.Request)
	if result.Status == event.StatusPending {
		a.pendingActions[act.TaskID] = act
		return
	}
	a.completeAction(act.TaskID, act.IntentionID, result.Status == event.StatusSuccess, result.Reply, act.ResourceLocks)
}

func (a *Agent) handleActionComplete(ev *event.Event) {
	c := ev.ActionComplete
	a.completeAction(c.TaskID, c.DesireID, c.Succeeded, c.Reply, c.ResourceLocks)
}

func (a *Agent) completeAction(taskID int, desireID identity.UniqueId, succeeded bool, reply *message.Message, locks []string) {
	delete(a.pendingActions, taskID)
	if reply != nil {
		a.belief.PushActionReply(reply)
	}
	if ex, ok := a.execs[desireID]; ok {
		ex.Complete(taskID, succeeded)
	}
	for _, name := range locks {
		if r, ok := a.belief.GetResource(name); ok {
			r.Unlock()
		}
	}
}

func (a *Agent) handleTimer(ev *event.Event) {
	a.timers = append(a.timers, ev)
}

// fireDueTimers pops every timer whose ExpireAtUs has passed internalClock
// and routes it as an action-complete to the sleeping task (§4.7 TIMER,
// §5 "Sleep timers fire by absolute expiry against internalClock").
func (a *Agent) fireDueTimers() {
	var remaining []*event.Event
	for _, t := range a.timers {
		if t.Timer.ExpireAtUs <= a.internalClockUs {
			a.completeAction(t.Timer.TaskID, t.Timer.DesireID, true, nil, nil)
		} else {
			remaining = append(remaining, t)
		}
	}
	a.timers = remaining
}

// reapConcludedDesires removes every CONCLUDED executor's desire, dirties
// the schedule, notifies a delegating team if this desire was run on its
// behalf, and re-pursues persistent goals (§3 Goal "persistent").
func (a *Agent) reapConcludedDesires() {
	for id, ex := range a.execs {
		if ex.State != executor.Concluded {
			continue
		}
		g := ex.Goal
		delete(a.execs, id)
		delete(a.goals, id)
		a.markDirty(schedule.GoalRemoved)

		if cb, ok := a.delegationCallbacks[id]; ok {
			delete(a.delegationCallbacks, id)
			status := event.DelegationFailed
			if g.FinishState == model.GoalSucceeded {
				status = event.DelegationSuccess
			}
			reply := event.New(event.Delegation, a.nodeName, a.handle, cb.team, a.internalClockUs)
			reply.Delegation = event.DelegationPayload{GoalName: g.Template.Name, Status: status, ScheduleID: cb.scheduleID}
			a.route(reply)
		}

		if (g.Persistent || g.Template.Persistent) && g.FinishState != model.GoalDropped {
			a.pursueInternal(g.Template.Name, g.Params, identity.Handle{}, g.Persistent)
		}
	}
}

// stepSchedule advances (or starts) the best-first search one state-cycle
// step (§4.6), applying its chain into the DAG once it concludes. A team's
// search may straddle many ticks while an auction is pending; everyone
// else's resolves in a single Step since Deps.Delegable is nil.
func (a *Agent) stepSchedule() {
	if a.pendingSearch == nil {
		if !a.needsRebuild() {
			return
		}
		goals := a.liveGoals()
		a.dirty = 0
		if len(goals) == 0 {
			a.dag = executor.NewDAG()
			return
		}
		a.pendingSearch = schedule.NewSearch(goals, a.belief, DefaultMaxDepth, a.schedulerDeps(), a.broker)
	}
	if a.pendingSearch.Step(a.now()) {
		chain := a.pendingSearch.BestChain()
		a.applyChain(chain)
		a.pendingSearch = nil
	}
}

func (a *Agent) needsRebuild() bool {
	if a.dirty.RequiresImmediateRebuild() {
		return true
	}
	if a.dag == nil {
		return true
	}
	return a.dirty != 0 && len(a.dag.Roots()) == 0
}

// applyChain turns a concluded search's best chain into fresh or reused
// IntentionExecutors and rebuilds the DAG from them (§4.5 step 3).
func (a *Agent) applyChain(chain []*schedule.SearchNode) {
	var entries []executor.ChainEntry
	for _, n := range chain {
		ex, ok := a.execs[n.Goal.ID]
		if !ok {
			ex = executor.NewIntentionExecutor(a, n.Goal, n.Plan, a)
			ex.Delegated = n.Plan == nil
			a.execs[n.Goal.ID] = ex
			if ex.Delegated && a.onDelegateBound != nil {
				a.onDelegateBound(n.Goal.Handle(), n.Delegate, n.Goal.Params, n.Goal.Template.Name)
			}
		} else if n.Plan != nil && ex.CurrentIntention == nil && ex.State == executor.Running {
			ex.SetPlan(n.Plan)
		}
		var locks []string
		if n.Plan != nil {
			locks = n.Plan.ResourceLocks
		}
		entries = append(entries, executor.ChainEntry{Executor: ex, ResourceLocks: locks, Delegated: ex.Delegated})
	}
	a.dag = executor.Rebuild(entries)
}

// maybeShareBeliefSets publishes dirty shared schemas to every team this
// agent belongs to, on Template.ShareCadence (§4.8).
func (a *Agent) maybeShareBeliefSets(nowUs int64) {
	if len(a.template.SharedSchemas) == 0 {
		return
	}
	if nowUs-a.lastShareUs < a.template.ShareCadence.Microseconds() {
		return
	}
	a.lastShareUs = nowUs
	for _, schemaName := range a.template.SharedSchemas {
		if !a.dirtySinceShare[schemaName] {
			continue
		}
		msg, ok := a.belief.Belief(schemaName)
		if !ok {
			continue
		}
		delete(a.dirtySinceShare, schemaName)
		ev := event.New(event.ShareBeliefSet, a.nodeName, a.handle, identity.Handle{}, nowUs)
		ev.ShareBeliefSet = event.ShareBeliefSetPayload{
			Member:        a.handle.Name,
			SchemaName:    schemaName,
			Msg:           msg.Clone(),
			LastUpdatedUs: nowUs,
		}
		a.route(ev)
	}
}

// IntentionStarted implements executor.Observer: emits the §6.1 BDI_LOG
// "intention start" line.
func (a *Agent) IntentionStarted(goal *model.Goal, plan *model.PlanTemplate) {
	planName := "<delegated>"
	if plan != nil {
		planName = plan.Name
	}
	a.logger.WithComponent("jack/executor").Info("intention started", map[string]interface{}{
		"agent": a.handle.String(), "goal": goal.Handle().String(), "plan": planName,
	})
}

// IntentionConcluded implements executor.Observer: emits the §6.1 BDI_LOG
// "intention finish" line.
func (a *Agent) IntentionConcluded(goal *model.Goal, plan *model.PlanTemplate, outcome model.FinishState) {
	planName := "<delegated>"
	if plan != nil {
		planName = plan.Name
	}
	a.logger.WithComponent("jack/executor").Info("intention concluded", map[string]interface{}{
		"agent": a.handle.String(), "goal": goal.Handle().String(), "plan": planName, "outcome": outcome.String(),
	})
}

// dispatcher implements task.Dispatcher over one Agent's queue. active is
// stamped by Agent.beforeTick immediately before each root executor's
// Execute call (§5: ticking is single-threaded cooperative, so a single
// mutable slot is safe); it is nil outside of a tick, which task bodies
// never run in.
type dispatcher struct {
	agent  *Agent
	active *executor.IntentionExecutor
}

func (d *dispatcher) activeDesireID() identity.UniqueId {
	if d.active == nil {
		return identity.Nil
	}
	return d.active.Goal.ID
}

func (d *dispatcher) DispatchAction(taskID int, actionName string, request *message.Message, resourceLocks []string) {
	a := d.agent
	ev := event.New(event.Action, a.nodeName, a.handle, a.handle, a.internalClockUs)
	ev.Action = event.ActionPayload{
		Name:          actionName,
		Request:       request,
		TaskID:        taskID,
		Goal:          a.handle,
		IntentionID:   d.activeDesireID(),
		ResourceLocks: resourceLocks,
	}
	if d.active != nil && d.active.CurrentIntention != nil {
		ev.Action.Plan = d.active.CurrentIntention.Name
	}
	for _, name := range resourceLocks {
		if r, ok := a.belief.GetResource(name); ok {
			r.Lock()
		}
	}
	a.queue.Push(ev)
}

func (d *dispatcher) PursueSub(goalName string, params *message.Message, parentIntentionID identity.UniqueId, persistent bool) identity.UniqueId {
	a := d.agent
	preassigned := identity.New()
	ev := event.New(event.Pursue, a.nodeName, a.handle, a.handle, a.internalClockUs)
	ev.Pursue = event.PursuePayload{
		GoalName:          goalName,
		Params:            params,
		ParentIntentionID: parentIntentionID,
		Persistent:        persistent,
		PreassignedID:     preassigned,
	}
	a.queue.Push(ev)
	if d.active != nil {
		d.active.SubGoalDesireIDs = append(d.active.SubGoalDesireIDs, preassigned)
	}
	return preassigned
}

func (d *dispatcher) EmitDrop(handle identity.Handle, mode string, reason string) {
	a := d.agent
	m := event.DropNormal
	if mode == "FORCE" {
		m = event.DropForce
	}
	ev := event.New(event.Drop, a.nodeName, a.handle, a.handle, a.internalClockUs)
	ev.Drop = event.DropPayload{GoalHandle: handle, Mode: m, Reason: reason}
	a.queue.Push(ev)
}

func (d *dispatcher) Sleep(taskID int, dur time.Duration) {
	a := d.agent
	ev := event.New(event.Timer, a.nodeName, a.handle, a.handle, a.internalClockUs)
	ev.Timer = event.TimerPayload{
		ExpireAtUs: a.internalClockUs + dur.Microseconds(),
		Recipient:  a.handle,
		TaskID:     taskID,
		DesireID:   d.activeDesireID(),
	}
	a.timers = append(a.timers, ev)
}

func (d *dispatcher) Log(text string) {
	d.agent.logger.WithComponent("jack/dispatch").Info(text, map[string]interface{}{"agent": d.agent.handle.String()})
}
