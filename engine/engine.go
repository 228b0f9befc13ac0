// Package engine implements §4.6-§4.10: the process that owns every
// committed template (via Registry) and every live agent/team/service/
// proxy instance spawned from one, drains its own queue, routes events no
// entity could resolve to itself, and drives the single-threaded tick loop
// described in §4.10 and §5.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackagents/jackgo/agent"
	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/telemetry"
)

// Entity is the common tickable surface shared by Agent, Team (which
// embeds *Agent), Service and ProxyAgent; the engine only needs this much
// of any of them to run its tick loop.
type Entity interface {
	Handle() identity.Handle
	Tick(nowUs int64)
	Enqueue(*event.Event)
}

type noopComponentLogger struct{ core.NoOpLogger }

func (noopComponentLogger) WithComponent(string) core.Logger { return core.NoOpLogger{} }

// routerFunc adapts a plain function to agent.Router, for wiring a
// ProxyAgent's outbound bus hook without a concrete bus implementation.
type routerFunc func(*event.Event)

func (f routerFunc) Route(e *event.Event) { f(e) }

// Engine is one running JACK process (§2 "engine: the tick-driven runtime
// that owns every agent/team/service instance").
type Engine struct {
	mu sync.Mutex

	nodeName  string
	cfg       *core.EngineConfig
	logger    core.ComponentAwareLogger
	telemetry *telemetry.Provider

	registry *Registry

	order          []identity.UniqueId // spawn order, for §4.10 step 3 "in commit order"
	agentsByID     map[identity.UniqueId]*agent.Agent // plain agents and every Team's embedded Agent
	teamsByID      map[identity.UniqueId]*agent.Team
	servicesByID   map[identity.UniqueId]*agent.Service
	servicesByName map[string]*agent.Service
	proxiesByID    map[identity.UniqueId]*agent.ProxyAgent
	byName         map[string]identity.Handle

	queue           *event.Queue
	internalClockUs int64

	busForward func(*event.Event) // optional: forwards a ProxyAgent's bus-eligible events externally
	heartbeat  func(nowUs int64)  // optional: notified once per poll (§4.10 step 6)

	exitCh  chan struct{}
	stopped bool
}

// New builds a stopped Engine from cfg. When cfg is nil or its logger is
// not component-aware, a no-op logger is used; a nil telemetryProvider is
// kept as nil and the engine then emits no spans or counters.
func New(nodeName string, cfg *core.EngineConfig, telemetryProvider *telemetry.Provider) *Engine {
	var logger core.ComponentAwareLogger
	if cfg != nil {
		if cal, ok := cfg.Logger().(core.ComponentAwareLogger); ok {
			logger = cal
		}
	}
	if logger == nil {
		logger = noopComponentLogger{}
	}
	return &Engine{
		nodeName:       nodeName,
		cfg:            cfg,
		logger:         logger,
		telemetry:      telemetryProvider,
		registry:       NewRegistry(),
		agentsByID:     make(map[identity.UniqueId]*agent.Agent),
		teamsByID:      make(map[identity.UniqueId]*agent.Team),
		servicesByID:   make(map[identity.UniqueId]*agent.Service),
		servicesByName: make(map[string]*agent.Service),
		proxiesByID:    make(map[identity.UniqueId]*agent.ProxyAgent),
		byName:         make(map[string]identity.Handle),
		queue:          event.NewQueue(),
		exitCh:         make(chan struct{}),
	}
}

// Registry exposes the template commit surface (§6.2).
func (e *Engine) Registry() *Registry { return e.registry }

// SetBusForward installs the hook every spawned ProxyAgent's bus-eligible
// traffic is forwarded through; until a concrete bus is wired, this is
// nil and a proxy's forwardable events are simply dropped.
func (e *Engine) SetBusForward(f func(*event.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busForward = f
	var r agent.Router
	if f != nil {
		r = routerFunc(f)
	}
	for _, p := range e.proxiesByID {
		p.SetBus(r)
	}
}

// SetHeartbeat installs the hook invoked once per poll with the current
// internal clock (§4.10 step 6 "emit heartbeat to the bus if configured").
func (e *Engine) SetHeartbeat(f func(nowUs int64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heartbeat = f
}

func (e *Engine) componentLogger(component string) core.Logger {
	return e.logger.WithComponent(component)
}

// Route implements agent.Router: any entity that cannot resolve an event
// itself hands it here. The event is queued, not delivered inline, so
// routing always happens on the engine's own tick (§4.10 step 2) no
// matter which goroutine called Route (§5 "event producers... from any
// thread").
func (e *Engine) Route(ev *event.Event) {
	e.queue.Push(ev)
}

// SpawnAgent instantiates a plain agent from the template committed under
// name, wires its Router back to this engine, and registers it in commit
// order.
func (e *Engine) SpawnAgent(templateName string) (*agent.Agent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tpl, ok := e.registry.agentTemplates[templateName]
	if !ok {
		return nil, (&core.EngineError{Op: "SpawnAgent", Kind: "agent", ID: templateName, Message: "no agent template committed under this name", Err: core.ErrAgentNotFound})
	}
	a := agent.NewAgent(e.nodeName, tpl, e.componentLoggerFor("jack/agent"))
	a.SetRouter(e)
	e.register(a.Handle(), a, nil, nil, nil)
	return a, nil
}

// SpawnTeam instantiates a team from the template committed under name,
// with no members yet; wire members in with AddTeamMember.
func (e *Engine) SpawnTeam(templateName string) (*agent.Team, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tpl, ok := e.registry.teamTemplates[templateName]
	if !ok {
		return nil, (&core.EngineError{Op: "SpawnTeam", Kind: "agent", ID: templateName, Message: "no team template committed under this name", Err: core.ErrAgentNotFound})
	}
	t := agent.NewTeam(e.nodeName, tpl, e.componentLoggerFor("jack/team"))
	t.SetRouter(e)
	e.register(t.Handle(), t.Agent, t, nil, nil)
	return t, nil
}

// SpawnService instantiates a service from the template committed under
// name and wires its Router back to this engine.
func (e *Engine) SpawnService(templateName string) (*agent.Service, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tpl, ok := e.registry.services[templateName]
	if !ok {
		return nil, (&core.EngineError{Op: "SpawnService", Kind: "service", ID: templateName, Message: "no service template committed under this name", Err: core.ErrServiceNotFound})
	}
	s := agent.NewService(e.nodeName, tpl, e.componentLoggerFor("jack/service"))
	s.SetRouter(e)
	e.register(s.Handle(), nil, nil, s, nil)
	return s, nil
}

// SpawnProxy creates a stand-in for a remote agent/team named name,
// forwarding bus-eligible events through the engine's busForward hook.
func (e *Engine) SpawnProxy(name string) *agent.ProxyAgent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var bus agent.Router
	if e.busForward != nil {
		bus = routerFunc(e.busForward)
	}
	p := agent.NewProxyAgent(e.nodeName, name, bus)
	e.register(p.Handle(), nil, nil, nil, p)
	return p
}

// register records ent under handle in commit order and in whichever
// typed map applies; exactly one of a/t/s/p is non-nil (t also registers
// its embedded *Agent under the same id, so action/pursue/drop routing by
// id works identically for a plain agent and a team).
func (e *Engine) register(h identity.Handle, a *agent.Agent, t *agent.Team, s *agent.Service, p *agent.ProxyAgent) {
	e.order = append(e.order, h.Id)
	e.byName[h.Name] = h
	switch {
	case t != nil:
		e.teamsByID[h.Id] = t
		e.agentsByID[h.Id] = t.Agent
	case a != nil:
		e.agentsByID[h.Id] = a
	case s != nil:
		e.servicesByID[h.Id] = s
		e.servicesByName[h.Name] = s
	case p != nil:
		e.proxiesByID[h.Id] = p
	}
}

func (e *Engine) componentLoggerFor(component string) core.ComponentAwareLogger {
	return componentLoggerWrap{e.logger, component}
}

// componentLoggerWrap hands a pre-tagged Logger to a spawned entity while
// still satisfying core.ComponentAwareLogger itself (agent.NewAgent et al.
// require the richer interface even though they only ever call the
// methods Logger already exposes).
type componentLoggerWrap struct {
	core.ComponentAwareLogger
	component string
}

func (w componentLoggerWrap) Info(msg string, fields map[string]interface{}) {
	w.ComponentAwareLogger.WithComponent(w.component).Info(msg, fields)
}
func (w componentLoggerWrap) Warn(msg string, fields map[string]interface{}) {
	w.ComponentAwareLogger.WithComponent(w.component).Warn(msg, fields)
}
func (w componentLoggerWrap) Error(msg string, fields map[string]interface{}) {
	w.ComponentAwareLogger.WithComponent(w.component).Error(msg, fields)
}
func (w componentLoggerWrap) Debug(msg string, fields map[string]interface{}) {
	w.ComponentAwareLogger.WithComponent(w.component).Debug(msg, fields)
}

// AddTeamMember enrolls the already-spawned agent memberName as a
// delegate-eligible member of the already-spawned team teamName (§4.8).
func (e *Engine) AddTeamMember(teamName, memberName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.byName[teamName]
	if !ok {
		return &core.EngineError{Op: "AddTeamMember", Kind: "agent", ID: teamName, Message: "no such team instance", Err: core.ErrAgentNotFound}
	}
	team, ok := e.teamsByID[th.Id]
	if !ok {
		return &core.EngineError{Op: "AddTeamMember", Kind: "agent", ID: teamName, Message: "instance is not a team", Err: core.ErrAgentNotFound}
	}
	mh, ok := e.byName[memberName]
	if !ok {
		return &core.EngineError{Op: "AddTeamMember", Kind: "agent", ID: memberName, Message: "no such agent instance", Err: core.ErrAgentNotFound}
	}
	member, ok := e.agentsByID[mh.Id]
	if !ok {
		return &core.EngineError{Op: "AddTeamMember", Kind: "agent", ID: memberName, Message: "instance is not an agent", Err: core.ErrAgentNotFound}
	}
	team.AddMember(member)
	return nil
}

// AgentByName looks up a spawned agent or team (by its Agent half) by
// instance name.
func (e *Engine) AgentByName(name string) (*agent.Agent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.byName[name]
	if !ok {
		return nil, false
	}
	a, ok := e.agentsByID[h.Id]
	return a, ok
}

// Pursue enqueues a PURSUE event addressed to the named agent or team,
// processed on the engine's next poll (§4.7 PURSUE). It is the
// external-entry-point equivalent of a goal pursued from inside a plan
// body, for application code outside the tick loop.
func (e *Engine) Pursue(targetName, goalName string, params *message.Message, persistent bool) error {
	target, ok := e.AgentByName(targetName)
	if !ok {
		return &core.EngineError{Op: "Pursue", Kind: "agent", ID: targetName, Message: "no such agent or team instance", Err: core.ErrAgentNotFound}
	}
	ev := event.New(event.Pursue, e.nodeName, identity.Handle{}, target.Handle(), e.clockUs())
	ev.Pursue = event.PursuePayload{GoalName: goalName, Params: params, Persistent: persistent}
	e.Route(ev)
	return nil
}

// Drop enqueues a DROP event for goalID against the named agent or team
// (§4.7 DROP, §5 "drop(handle, mode)").
func (e *Engine) Drop(targetName string, goalID identity.UniqueId, mode event.DropMode) error {
	target, ok := e.AgentByName(targetName)
	if !ok {
		return &core.EngineError{Op: "Drop", Kind: "agent", ID: targetName, Message: "no such agent or team instance", Err: core.ErrAgentNotFound}
	}
	ev := event.New(event.Drop, e.nodeName, identity.Handle{}, target.Handle(), e.clockUs())
	ev.Drop = event.DropPayload{GoalHandle: identity.Handle{Id: goalID}, Mode: mode}
	e.Route(ev)
	return nil
}

func (e *Engine) clockUs() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.internalClockUs
}

// Poll runs one engine tick (§4.10 poll(deltaTime)):
//  1. accumulate internalClock
//  2. drain the engine's own queue, routing each event
//  3. tick every agent/team/service in spawn order
//  4. (service timers and resource unlocks already happen inside each
//     entity's own Tick; the engine has nothing extra to fire here)
//  5. nothing to do: shared-beliefset cadence is each agent's own concern
//  6. emit a heartbeat if configured
//
// Returns the count of running entities and the count currently executing
// a plan body (§4.10 step 7).
func (e *Engine) Poll(deltaTimeUs int64) (agentsRunning, agentsExecuting int) {
	ctx := context.Background()
	var span telemetry.Span
	if e.telemetry != nil {
		_, span = e.telemetry.StartSpan(ctx, "jack.engine.poll")
		defer span.End()
	}

	e.mu.Lock()
	e.internalClockUs += deltaTimeUs
	now := e.internalClockUs
	e.mu.Unlock()

	e.drainQueue()

	e.mu.Lock()
	order := append([]identity.UniqueId(nil), e.order...)
	e.mu.Unlock()

	for _, id := range order {
		ent, ok := e.entityByID(id)
		if !ok {
			continue
		}
		ent.Tick(now)
		if a, ok := e.agentByEntity(id); ok {
			if a.State() == agent.Running {
				agentsRunning++
			}
			if a.RunState() == agent.Busy {
				agentsExecuting++
			}
		}
	}

	if e.telemetry != nil {
		e.telemetry.Observe("jack_engine_agents_running", float64(agentsRunning))
		e.telemetry.Observe("jack_engine_agents_executing", float64(agentsExecuting))
	}

	if e.heartbeat != nil {
		e.heartbeat(now)
	}

	return agentsRunning, agentsExecuting
}

func (e *Engine) entityByID(id identity.UniqueId) (Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if a, ok := e.agentsByID[id]; ok {
		return a, true
	}
	if s, ok := e.servicesByID[id]; ok {
		return s, true
	}
	if p, ok := e.proxiesByID[id]; ok {
		return p, true
	}
	return nil, false
}

func (e *Engine) agentByEntity(id identity.UniqueId) (*agent.Agent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.agentsByID[id]
	return a, ok
}

// drainQueue pops the events the engine has accumulated (from entities'
// Route calls or external producers), at most EventFairnessBound per
// entity plus one batch (4096 when no bound is configured), and routes
// each one (§4.10 step 2). Events beyond the bound stay queued for the
// next poll.
func (e *Engine) drainQueue() {
	bound := 4096
	if e.cfg != nil && e.cfg.EventFairnessBound > 0 {
		bound = e.cfg.EventFairnessBound * (len(e.order) + 1)
	}
	batch := e.queue.Drain(bound)
	for _, ev := range batch {
		e.routeEvent(ev)
	}
}

// routeEvent implements §4.7's routing rules for every event the engine's
// own queue has accumulated.
func (e *Engine) routeEvent(ev *event.Event) {
	switch ev.Kind {
	case event.Action:
		e.routeAction(ev)
		return
	case event.Percept:
		if ev.Recipient.Invalid() {
			e.broadcastPercept(ev)
			return
		}
	case event.Message:
		if ev.Recipient.Invalid() {
			e.broadcastMessage(ev)
			return
		}
	}
	if ent, ok := e.entityByID(ev.Recipient.Id); ok {
		ent.Enqueue(ev)
		return
	}
	e.componentLogger("jack/engine").Warn("event undeliverable: recipient not found", map[string]interface{}{
		"kind":      fmt.Sprintf("%d", ev.Kind),
		"recipient": ev.Recipient.String(),
	})
}

// routeAction applies §4.7's ACTION fallback chain. An ACTION event
// reaching the engine always has Recipient set to the agent/team that
// could not handle it locally (Agent.handleAction routes the very event
// it dispatched to itself, unchanged, once its own handler table misses),
// so delivering it straight back by recipient would loop forever; the
// engine must instead resolve a service.
func (e *Engine) routeAction(ev *event.Event) {
	e.mu.Lock()
	_, isAgentLike := e.agentsByID[ev.Recipient.Id]
	svc, isService := e.servicesByID[ev.Recipient.Id]
	_, isProxy := e.proxiesByID[ev.Recipient.Id]
	e.mu.Unlock()

	if isService {
		svc.Enqueue(ev)
		return
	}
	if isProxy {
		if p, ok := e.proxyByID(ev.Recipient.Id); ok {
			p.Enqueue(ev)
		}
		return
	}
	if isAgentLike {
		e.forwardUnhandledAction(ev)
		return
	}
	e.componentLogger("jack/engine").Warn("action addressed to unknown entity", map[string]interface{}{
		"action": ev.Action.Name,
	})
}

func (e *Engine) proxyByID(id identity.UniqueId) (*agent.ProxyAgent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.proxiesByID[id]
	return p, ok
}

// forwardUnhandledAction implements §4.7: "if absent and
// unhandledActionsForwardedToFirstApplicableService is true, forward to
// the first attached service with a matching handler; else to the first
// globally-committed compatible service; else ACTION fails."
func (e *Engine) forwardUnhandledAction(ev *event.Event) {
	act := ev.Action
	owner, _ := e.agentByEntity(ev.Recipient.Id)

	forwardToFirstApplicable := e.cfg == nil || e.cfg.UnhandledActionsForwardedToFirstApplicableService

	if forwardToFirstApplicable && owner != nil {
		for _, name := range owner.AttachedServices() {
			e.mu.Lock()
			svc, ok := e.servicesByName[name]
			e.mu.Unlock()
			if ok && svc.HasHandler(act.Name) {
				e.deliverToService(ev, svc)
				return
			}
		}
	}

	e.mu.Lock()
	order := append([]string(nil), e.registry.serviceOrder...)
	e.mu.Unlock()
	for _, name := range order {
		e.mu.Lock()
		svc, ok := e.servicesByName[name]
		e.mu.Unlock()
		if ok && svc.HasHandler(act.Name) {
			e.deliverToService(ev, svc)
			return
		}
	}

	e.failAction(ev)
}

func (e *Engine) deliverToService(ev *event.Event, svc *agent.Service) {
	forwarded := *ev
	forwarded.Recipient = svc.Handle()
	svc.Enqueue(&forwarded)
}

// failAction synthesizes the ACTIONCOMPLETE a dispatching agent is
// waiting on when no handler anywhere can serve the action (§4.7 "else
// ACTION fails").
func (e *Engine) failAction(ev *event.Event) {
	act := ev.Action
	reply := event.New(event.ActionComplete, e.nodeName, ev.Recipient, ev.Sender, e.clockUs())
	reply.ActionComplete = event.ActionCompletePayload{TaskID: act.TaskID, DesireID: act.IntentionID, Succeeded: false}
	if ent, ok := e.entityByID(ev.Sender.Id); ok {
		ent.Enqueue(reply)
	}
}

// broadcastPercept delivers a null-recipient PERCEPT to every agent/team
// that has committed the schema it names (§4.7 "percept to all agents
// subscribed to the schema's belief").
func (e *Engine) broadcastPercept(ev *event.Event) {
	e.mu.Lock()
	targets := make([]*agent.Agent, 0, len(e.agentsByID))
	for _, a := range e.agentsByID {
		if a.HasBelief(ev.Percept.SchemaName) {
			targets = append(targets, a)
		}
	}
	e.mu.Unlock()
	for _, a := range targets {
		cp := *ev
		cp.Recipient = a.Handle()
		a.Enqueue(&cp)
	}
}

// broadcastMessage delivers a null-recipient MESSAGE to every agent/team
// with a handler registered for its schema (§4.7 "messages to targeted
// agent or broadcast to all handlers").
func (e *Engine) broadcastMessage(ev *event.Event) {
	e.mu.Lock()
	targets := make([]*agent.Agent, 0, len(e.agentsByID))
	for _, a := range e.agentsByID {
		if ev.MessagePayload != nil && a.HasMessageHandler(ev.MessagePayload.SchemaName()) {
			targets = append(targets, a)
		}
	}
	e.mu.Unlock()
	for _, a := range targets {
		cp := *ev
		cp.Recipient = a.Handle()
		a.Enqueue(&cp)
	}
}

// Execute loops Poll until ctx is cancelled or (exitWhenDone and no agent
// remains running), sleeping cfg.TickPeriod between polls (§4.10
// execute()).
func (e *Engine) Execute(ctx context.Context, exitWhenDone bool) {
	period := 50 * time.Millisecond
	if e.cfg != nil && e.cfg.TickPeriod > 0 {
		period = e.cfg.TickPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var lastPoll time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.exitCh:
			return
		case now := <-ticker.C:
			var deltaUs int64
			if lastPoll.IsZero() {
				deltaUs = period.Microseconds()
			} else {
				deltaUs = now.Sub(lastPoll).Microseconds()
			}
			lastPoll = now
			running, _ := e.Poll(deltaUs)
			if exitWhenDone && running == 0 {
				return
			}
		}
	}
}

// Start runs Execute in a dedicated goroutine (§4.10 "start() runs
// execute() in a dedicated thread") and returns immediately.
func (e *Engine) Start(ctx context.Context, exitWhenDone bool) {
	go e.Execute(ctx, exitWhenDone)
}

// Stop requests Execute return at the next select, idempotently.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	close(e.exitCh)
}
