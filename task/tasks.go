package task

import (
	"time"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
)

// ActionTask builds an ACTION event addressed from the agent to itself,
// attaching the owning plan's resource locks (§4.2).
type ActionTask struct {
	BaseTask Base

	ActionName    string
	RequestSchema message.Schema
	ResourceLocks []string
}

func NewActionTask(actionName string, schema message.Schema, resourceLocks []string) *ActionTask {
	return &ActionTask{BaseTask: newBase(0), ActionName: actionName, RequestSchema: schema, ResourceLocks: resourceLocks}
}

func (t *ActionTask) Base() *Base { return &t.BaseTask }

func (t *ActionTask) Execute(ec *ExecContext) (State, Outcome) {
	req := BindParameters(t.RequestSchema, ec, t.BaseTask.ParameterBindings, t.BaseTask.LiteralBindings)
	ec.Dispatcher.DispatchAction(t.BaseTask.ID, t.ActionName, req, t.ResourceLocks)
	if t.BaseTask.WaitFlag {
		return Wait, Succeeded
	}
	return Async, Succeeded
}

// PursueTask pursues a sub-goal on behalf of the current intention
// (§4.2). NoWait fires the pursue without subscribing to its promise —
// the coroutine proceeds immediately, per the original engine's
// "nowait" pursue variant (§12 supplemented feature).
type PursueTask struct {
	BaseTask Base

	GoalName      string
	ParamsSchema  message.Schema
	Persistent    bool
	NoWait        bool
}

func NewPursueTask(goalName string, schema message.Schema, persistent, noWait bool) *PursueTask {
	return &PursueTask{BaseTask: newBase(0), GoalName: goalName, ParamsSchema: schema, Persistent: persistent, NoWait: noWait}
}

func (t *PursueTask) Base() *Base { return &t.BaseTask }

func (t *PursueTask) Execute(ec *ExecContext) (State, Outcome) {
	params := BindParameters(t.ParamsSchema, ec, t.BaseTask.ParameterBindings, t.BaseTask.LiteralBindings)
	ec.Dispatcher.PursueSub(t.GoalName, params, ec.IntentionID, t.Persistent)
	if t.NoWait {
		return Done, Succeeded
	}
	return Wait, Succeeded
}

// ConditionalTask evaluates a belief predicate once (§4.2).
type ConditionalTask struct {
	BaseTask  Base
	Predicate func(*belief.Context) bool
}

func NewConditionalTask(predicate func(*belief.Context) bool) *ConditionalTask {
	return &ConditionalTask{BaseTask: newBase(0), Predicate: predicate}
}

func (t *ConditionalTask) Base() *Base { return &t.BaseTask }

func (t *ConditionalTask) Execute(ec *ExecContext) (State, Outcome) {
	if t.Predicate != nil && t.Predicate(ec.Belief) {
		return Done, Succeeded
	}
	return Done, Failed
}

// YieldUntilTask re-evaluates its predicate every tick until true
// (§4.2).
type YieldUntilTask struct {
	BaseTask  Base
	Predicate func(*belief.Context) bool
}

func NewYieldUntilTask(predicate func(*belief.Context) bool) *YieldUntilTask {
	return &YieldUntilTask{BaseTask: newBase(0), Predicate: predicate}
}

func (t *YieldUntilTask) Base() *Base { return &t.BaseTask }

func (t *YieldUntilTask) Execute(ec *ExecContext) (State, Outcome) {
	if t.Predicate != nil && t.Predicate(ec.Belief) {
		return Done, Succeeded
	}
	return Yield, Succeeded
}

// SleepTask enqueues a TIMER event for now+Duration, addressed to the
// owning agent, and resumes when it fires (§4.2).
type SleepTask struct {
	BaseTask Base
	Duration time.Duration
}

func NewSleepTask(d time.Duration) *SleepTask {
	return &SleepTask{BaseTask: newBase(0), Duration: d}
}

func (t *SleepTask) Base() *Base { return &t.BaseTask }

func (t *SleepTask) Execute(ec *ExecContext) (State, Outcome) {
	ec.Dispatcher.Sleep(t.BaseTask.ID, t.Duration)
	return Wait, Succeeded
}

// DropTask emits a DROP event for the referenced goal handle and
// completes immediately once dispatched (§4.2).
type DropTask struct {
	BaseTask Base
	Handle   identity.Handle
	Mode     string
	Reason   string
}

func NewDropTask(handle identity.Handle, mode, reason string) *DropTask {
	return &DropTask{BaseTask: newBase(0), Handle: handle, Mode: mode, Reason: reason}
}

func (t *DropTask) Base() *Base { return &t.BaseTask }

func (t *DropTask) Execute(ec *ExecContext) (State, Outcome) {
	ec.Dispatcher.EmitDrop(t.Handle, t.Mode, t.Reason)
	return Done, Succeeded
}

// PrintTask emits a log line and completes immediately (§4.2).
type PrintTask struct {
	BaseTask Base
	Text     string
}

func NewPrintTask(text string) *PrintTask {
	return &PrintTask{BaseTask: newBase(0), Text: text}
}

func (t *PrintTask) Base() *Base { return &t.BaseTask }

func (t *PrintTask) Execute(ec *ExecContext) (State, Outcome) {
	ec.Dispatcher.Log(t.Text)
	return Done, Succeeded
}
