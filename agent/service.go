package agent

import (
	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
)

// ServiceTemplate is the committed, reusable definition of a service
// (§3 Service: "a service exposes action handlers but owns no beliefs,
// goals, or intentions").
type ServiceTemplate struct {
	Name           string
	ActionHandlers map[string]ActionHandler
	MessageSchemas []message.Schema
}

// pendingServiceAction records who to reply to once an async handler
// finishes, since a Service has no executor/goal to correlate through.
type pendingServiceAction struct {
	requester identity.Handle
	payload   event.ActionPayload
}

// Service is a stateless action provider (§3 Service, §4.9): it never
// schedules or ticks intentions, it only dispatches ACTION events to
// handlers and routes the ACTIONCOMPLETE back to whoever asked.
type Service struct {
	handle   identity.Handle
	nodeName string
	template *ServiceTemplate
	logger   core.ComponentAwareLogger
	router   Router

	queue *event.Queue
	state LifecycleState

	available       bool
	pendingActions  map[int]pendingServiceAction
	internalClockUs int64
}

// NewService builds a Service from tpl.
func NewService(nodeName string, tpl *ServiceTemplate, logger core.ComponentAwareLogger) *Service {
	if logger == nil {
		logger = noopComponentLogger{}
	}
	return &Service{
		handle:         identity.Handle{Name: tpl.Name, Id: identity.New()},
		nodeName:       nodeName,
		template:       tpl,
		logger:         logger,
		queue:          event.NewQueue(),
		state:          Stopped,
		available:      true,
		pendingActions: make(map[int]pendingServiceAction),
	}
}

func (s *Service) Handle() identity.Handle         { return s.handle }
func (s *Service) State() LifecycleState           { return s.state }
func (s *Service) Available() bool                 { return s.available }
func (s *Service) SetAvailable(available bool)     { s.available = available }
func (s *Service) Enqueue(e *event.Event)          { s.queue.Push(e) }
func (s *Service) SetRouter(r Router)              { s.router = r }
func (s *Service) HasHandler(name string) bool     { _, ok := s.template.ActionHandlers[name]; return ok }

func (s *Service) route(ev *event.Event) {
	if s.router != nil {
		s.router.Route(ev)
	}
}

// Tick drains the service's queue; a service never runs a scheduler or a
// DAG, so this is its entire runtime loop (§4.9).
func (s *Service) Tick(nowUs int64) {
	s.internalClockUs = nowUs
	batch := s.queue.Drain(fairDrainBound)
	for _, ev := range batch {
		switch ev.Kind {
		case event.Control:
			s.handleControl(ev)
		case event.Action:
			s.handleAction(ev)
		case event.ActionComplete:
			if ev.Sender.Equal(s.handle) {
				// looped back through FinishActionHandle: fill in the
				// original requester from pendingActions before routing.
				s.resolvePendingActionComplete(ev)
			} else {
				// a service never owns the intention that dispatched this
				// action; forward it to the actor that originally
				// dispatched it (§4.9).
				s.route(ev)
			}
		}
	}
}

// Control applies a CONTROL command immediately, equivalent to enqueuing a
// CONTROL event to self (used by the engine and by tests).
func (s *Service) Control(cmd event.ControlCommand) {
	switch cmd {
	case event.CmdStart:
		s.state = Running
	case event.CmdPause:
		s.state = Paused
	case event.CmdStop:
		s.state = Stopped
	}
}

func (s *Service) handleControl(ev *event.Event) {
	s.Control(ev.Control.Cmd)
}

func (s *Service) handleAction(ev *event.Event) {
	act := ev.Action
	handler, ok := s.template.ActionHandlers[act.Name]
	if !ok || !s.available {
		s.replyComplete(ev.Sender, act.TaskID, act.IntentionID, false, nil, act.ResourceLocks)
		return
	}
	result := handler(act.Request)
	if result.Status == event.StatusPending {
		s.pendingActions[act.TaskID] = pendingServiceAction{requester: ev.Sender, payload: act}
		return
	}
	s.replyComplete(ev.Sender, act.TaskID, act.IntentionID, result.Status == event.StatusSuccess, result.Reply, act.ResourceLocks)
}

// replyComplete emits the ACTIONCOMPLETE event a requester's agent/team is
// waiting on (§4.7 ACTIONCOMPLETE).
func (s *Service) replyComplete(requester identity.Handle, taskID int, desireID identity.UniqueId, succeeded bool, reply *message.Message, locks []string) {
	ev := event.New(event.ActionComplete, s.nodeName, s.handle, requester, s.internalClockUs)
	ev.ActionComplete = event.ActionCompletePayload{
		TaskID: taskID, DesireID: desireID, Succeeded: succeeded, Reply: reply, ResourceLocks: locks,
	}
	s.route(ev)
}

// FinishActionHandle lets an asynchronous handler complete from any
// goroutine: it pushes the result onto the service's own queue rather than
// mutating pendingActions directly, mirroring Agent.FinishActionHandle's
// thread-safety seam (§5).
func (s *Service) FinishActionHandle(taskID int, succeeded bool, reply *message.Message) {
	ev := &event.Event{Kind: event.ActionComplete, EventID: identity.New(), Status: event.StatusPending}
	ev.ActionComplete = event.ActionCompletePayload{TaskID: taskID, Succeeded: succeeded, Reply: reply}
	ev.Sender = s.handle
	s.queue.Push(ev)
}

// resolvePendingActionComplete is invoked from Tick when an
// ActionComplete event carries only a TaskID (from FinishActionHandle,
// which doesn't know the requester) and needs pendingActions to fill in
// who to reply to.
func (s *Service) resolvePendingActionComplete(ev *event.Event) {
	pending, ok := s.pendingActions[ev.ActionComplete.TaskID]
	if !ok {
		return
	}
	delete(s.pendingActions, ev.ActionComplete.TaskID)
	s.replyComplete(pending.requester, ev.ActionComplete.TaskID, pending.payload.IntentionID,
		ev.ActionComplete.Succeeded, ev.ActionComplete.Reply, pending.payload.ResourceLocks)
}
