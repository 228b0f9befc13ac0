// Package task implements §4.2 coroutine execution: the labeled task
// graph that forms a plan's body or drop sequence, and the seven task
// kinds of the coroutine taxonomy.
package task

import (
	"time"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/field"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
)

// State is a task's runtime state within its coroutine (§4.2).
type State int

const (
	NotReady State = iota
	Ready
	Wait
	Yield
	Async
	Done
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NOTREADY"
	case Ready:
		return "READY"
	case Wait:
		return "WAIT"
	case Yield:
		return "YIELD"
	case Async:
		return "ASYNC"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of a concluded task or coroutine.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
)

// Terminal is the sentinel successTarget/failTarget marking "this edge
// ends the coroutine" (§3 Coroutine).
const Terminal = -1

// Dispatcher is the set of side effects a task's Execute can trigger,
// implemented by the executor/agent layer. Kept here as a narrow
// interface so task has no dependency on executor or agent.
type Dispatcher interface {
	// DispatchAction emits an ACTION event from the agent to itself
	// (§4.7) and returns immediately; completion arrives later via
	// Coroutine.Complete correlated by taskID.
	DispatchAction(taskID int, actionName string, request *message.Message, resourceLocks []string)
	// PursueSub issues a PURSUE event for a sub-goal on behalf of the
	// current intention (§4.2 PursueTask) and returns the new desire's id.
	PursueSub(goalName string, params *message.Message, parentIntentionID identity.UniqueId, persistent bool) identity.UniqueId
	// EmitDrop issues a DROP event for handle.
	EmitDrop(handle identity.Handle, mode string, reason string)
	// Sleep schedules a TIMER event for now+d addressed to the owning
	// agent, correlated by taskID.
	Sleep(taskID int, d time.Duration)
	// Log emits a PrintTask's log line.
	Log(text string)
}

// ExecContext is everything a Task.Execute needs: the agent's beliefs,
// the side-effect dispatcher, and the lookup order for parameter binding.
type ExecContext struct {
	Belief       *belief.Context
	Dispatcher   Dispatcher
	SearchOrder  []belief.SearchScope
	IntentionID  identity.UniqueId
}

// Base carries the fields every task holds per §3 Coroutine: "(id,
// successTarget, failTarget, wait, parameterBindings, literalBindings)".
type Base struct {
	ID            int
	SuccessTarget int
	FailTarget    int
	WaitFlag      bool

	// ParameterBindings maps a request-message field name to the context
	// field name it is read from (§4.2 step 2).
	ParameterBindings map[string]string
	// LiteralBindings overwrite request-message fields unconditionally
	// (§4.2 step 3).
	LiteralBindings map[string]field.Value
}

func newBase(id int) Base {
	return Base{ID: id, SuccessTarget: Terminal, FailTarget: Terminal}
}

// Task is one node of a coroutine's task graph.
type Task interface {
	Base() *Base
	// Execute runs the task's behavior for this tick. Called whenever the
	// task is NOTREADY/READY (or YIELD, for YieldUntilTask's re-poll).
	Execute(ec *ExecContext) (State, Outcome)
}

// BindParameters implements §4.2's three-step parameter binding: seed
// from a whole-message context match, apply mapped fields, then apply
// literal overwrites. schema may be the zero Schema when the task has no
// request/parameter message, in which case BindParameters returns nil.
func BindParameters(schema message.Schema, ec *ExecContext, mapped map[string]string, literal map[string]field.Value) *message.Message {
	if schema.Name == "" && len(schema.Fields) == 0 {
		return nil
	}

	var msg *message.Message
	if found, ok := ec.Belief.GetMessageBySchema(schema, ec.SearchOrder); ok {
		msg = found.Clone()
	} else {
		msg = message.New(schema)
	}

	for paramName, contextName := range mapped {
		v, ok := ec.Belief.Get(contextName, ec.SearchOrder)
		if !ok {
			continue
		}
		msg.Set(paramName, v) // type mismatch silently ignored per §4.2 step 2
	}
	for paramName, v := range literal {
		msg.Set(paramName, v)
	}
	return msg
}

// Coroutine is an ordered sequence of tasks driven one step per tick
// (§4.2).
type Coroutine struct {
	Tasks   []Task
	Current int // Terminal once concluded
	State   State

	LastOutcome      Outcome
	AsyncOutstanding int
}

// NewCoroutine builds a coroutine over tasks, starting at task 0 (or
// Terminal if tasks is empty).
func NewCoroutine(tasks []Task) *Coroutine {
	c := &Coroutine{Tasks: tasks}
	if len(tasks) == 0 {
		c.Current = Terminal
	} else {
		c.Current = 0
		c.State = Ready
	}
	return c
}

// Finished reports whether the coroutine has run off its last edge and
// has no outstanding async tasks (§4.2: "it cannot be reported finished
// until the counter returns to zero").
func (c *Coroutine) Finished() bool {
	return c.Current == Terminal && c.AsyncOutstanding == 0
}

// Succeeded reports the coroutine's terminal outcome; valid only once
// Finished() is true.
func (c *Coroutine) Succeeded() bool {
	return c.LastOutcome == Succeeded
}

// Tick executes at most one task at the current index (§4.2).
func (c *Coroutine) Tick(ec *ExecContext) {
	if c.Current == Terminal {
		return
	}
	switch c.State {
	case NotReady, Ready, Yield:
		t := c.Tasks[c.Current]
		newState, outcome := t.Execute(ec)
		switch newState {
		case Wait:
			c.State = Wait
		case Yield:
			c.State = Yield
		case Async:
			c.AsyncOutstanding++
			c.advance(Succeeded)
		case Done:
			c.advance(outcome)
		default:
			c.State = newState
		}
	case Wait, Async:
		// Do nothing; awaits an external Complete call correlated by task id.
	case Done:
		// Already advanced this tick; nothing to do until next.
	}
}

// Complete is called by the executor/event-dispatch layer when an
// external event (ACTIONCOMPLETE, sub-goal promise resolution, timer
// fire) resolves taskID. If taskID is not the currently WAITing task, it
// is treated as a late async completion and only decrements the async
// counter (§4.2, §4.7).
func (c *Coroutine) Complete(taskID int, outcome Outcome) {
	if c.Current != Terminal && c.State == Wait && c.Tasks[c.Current].Base().ID == taskID {
		c.advance(outcome)
		return
	}
	if c.AsyncOutstanding > 0 {
		c.AsyncOutstanding--
	}
}

// advance follows the current task's successTarget or failTarget per
// outcome (§4.2: "When task becomes DONE: if SUCCEEDED, follow
// successTarget; if FAILED, follow failTarget. TERMINAL marks the
// coroutine finished").
func (c *Coroutine) advance(outcome Outcome) {
	cur := c.Tasks[c.Current].Base()
	c.LastOutcome = outcome
	target := cur.SuccessTarget
	if outcome == Failed {
		target = cur.FailTarget
	}
	c.State = Done
	if target == Terminal {
		c.Current = Terminal
		return
	}
	c.Current = target
	c.State = Ready
}

// Builder assembles a coroutine's task list, applying the default
// chaining rule from §3: "each added task sets its predecessor's
// successTarget to itself if the predecessor still targets TERMINAL".
type Builder struct {
	tasks []Task
}

func NewBuilder() *Builder { return &Builder{} }

// Add appends t, assigning it the next task id (its index) and applying
// the default-successor chaining rule to the previous task.
func (b *Builder) Add(t Task) *Builder {
	id := len(b.tasks)
	t.Base().ID = id
	if id > 0 {
		prev := b.tasks[id-1].Base()
		if prev.SuccessTarget == Terminal {
			prev.SuccessTarget = id
		}
	}
	b.tasks = append(b.tasks, t)
	return b
}

// Build produces the finished Coroutine.
func (b *Builder) Build() *Coroutine {
	return NewCoroutine(b.tasks)
}
