// Package belief implements §3 Resource and BeliefContext: the per-agent
// store of belief messages and bounded resources that plans and tasks
// query and mutate, and the lookup order defined in §4.1.
package belief

import (
	"sync"

	"github.com/jackagents/jackgo/field"
	"github.com/jackagents/jackgo/message"
)

// Resource is a counted, bounded quantity with lock/unlock semantics
// (§3 Resource).
type Resource struct {
	mu     sync.Mutex
	Name   string
	Min    int64
	Max    int64
	Count  int64
	locked bool
}

// NewResource builds a resource seeded at count, per (name, min, max).
func NewResource(name string, min, max, count int64) *Resource {
	return &Resource{Name: name, Min: min, Max: max, Count: count}
}

// Consume mutates count down by n. It does not clamp — Violated reports
// whether the result is out of [min, max] (§3: "Violated iff count < min
// or count > max").
func (r *Resource) Consume(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Count -= n
}

// Produce mutates count up by n.
func (r *Resource) Produce(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Count += n
}

// Violated reports whether count has left [min, max].
func (r *Resource) Violated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Count < r.Min || r.Count > r.Max
}

// Lock marks the resource unavailable to other plans in the same agent
// until Unlock (§3: "A locked resource is unavailable to other plans in
// the same agent until unlocked").
func (r *Resource) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

func (r *Resource) Unlock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = false
}

func (r *Resource) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked
}

// Clone returns an independent copy, carrying the lock state too (used by
// the scheduler's speculative context clones in §4.6).
func (r *Resource) Clone() *Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Resource{Name: r.Name, Min: r.Min, Max: r.Max, Count: r.Count, locked: r.locked}
}

// SearchScope names one of the three belief-lookup scan targets (§4.1).
type SearchScope string

const (
	ActionReply SearchScope = "ACTION_REPLY"
	Goal        SearchScope = "GOAL"
	Agent       SearchScope = "AGENT"
)

// DefaultSearchOrder is the default for action/sub-goal parameter
// binding (§4.1).
var DefaultSearchOrder = []SearchScope{ActionReply, Goal, Agent}

// Context is the per-agent BeliefContext (§3).
type Context struct {
	mu sync.RWMutex

	// messages maps schema name -> belief message (the agent's belief set).
	messages map[string]*message.Message

	// resources maps resource name -> Resource.
	resources map[string]*Resource

	// actionReplyMessages is newest-first, scoped to the current plan.
	actionReplyMessages []*message.Message

	// goalParams is the parameter message of the currently-executing goal,
	// set per-intention.
	goalParams *message.Message
}

// New builds an empty belief context.
func New() *Context {
	return &Context{
		messages:  make(map[string]*message.Message),
		resources: make(map[string]*Resource),
	}
}

// SetBelief installs msg as the belief for its schema, replacing any
// previous message of that schema (§4.7 MESSAGE handling: "replace (by
// clone) the belief message of matching schema").
func (c *Context) SetBelief(msg *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[msg.SchemaName()] = msg
}

// Belief returns the belief message for schemaName, if any.
func (c *Context) Belief(schemaName string) (*message.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.messages[schemaName]
	return m, ok
}

// SetGoalParams installs the parameter message of the intention currently
// executing against this context.
func (c *Context) SetGoalParams(msg *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goalParams = msg
}

// PushActionReply prepends a completed action's reply message so it
// becomes the newest ACTION_REPLY lookup hit.
func (c *Context) PushActionReply(msg *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actionReplyMessages = append([]*message.Message{msg}, c.actionReplyMessages...)
}

// ClearActionReplies empties the reply sequence; called when a plan
// concludes and its reply history goes out of scope.
func (c *Context) ClearActionReplies() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actionReplyMessages = nil
}

// PutResource installs or overwrites r by name.
func (c *Context) PutResource(r *Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.Name] = r
}

// GetResource returns the named resource, if any.
func (c *Context) GetResource(name string) (*Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.resources[name]
	return r, ok
}

// AnyViolated reports whether any of the named resources is currently
// violated, used by the executor's per-tick resource check (§4.3) and
// the scheduler's effect simulation (§4.6).
func (c *Context) AnyViolated(names []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range names {
		if r, ok := c.resources[n]; ok && r.Violated() {
			return true
		}
	}
	return false
}

// AnyLocked reports whether any of the named resources is currently
// locked, whichever in-flight action holds the lock.
func (c *Context) AnyLocked(names []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range names {
		if r, ok := c.resources[n]; ok && r.Locked() {
			return true
		}
	}
	return false
}

// messagesInScanOrder returns, for one scope, the messages to search —
// newest-first for ACTION_REPLY, the single goal-params message for GOAL,
// and the full belief set for AGENT. Caller holds at least a read lock.
func (c *Context) messagesInScanOrder(scope SearchScope) []*message.Message {
	switch scope {
	case ActionReply:
		return c.actionReplyMessages
	case Goal:
		if c.goalParams == nil {
			return nil
		}
		return []*message.Message{c.goalParams}
	case Agent:
		out := make([]*message.Message, 0, len(c.messages))
		for _, m := range c.messages {
			out = append(out, m)
		}
		return out
	default:
		return nil
	}
}

// Get returns the first value of field fieldName found scanning order
// (§4.1 "get(key, searchOrder)").
func (c *Context) Get(fieldName string, order []SearchScope) (field.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, scope := range order {
		for _, m := range c.messagesInScanOrder(scope) {
			if v, ok := m.Get(fieldName); ok {
				return v, true
			}
		}
	}
	return field.Value{}, false
}

// GetMessageByName returns the first whole message whose schema name
// equals schemaName, scanning order (§4.1 "getMessage...by schema name").
func (c *Context) GetMessageByName(schemaName string, order []SearchScope) (*message.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, scope := range order {
		for _, m := range c.messagesInScanOrder(scope) {
			if m.SchemaName() == schemaName {
				return m, true
			}
		}
	}
	return nil, false
}

// GetMessageBySchema returns the first whole message structurally
// conforming to schema, scanning order (§4.1 "getMessage...by schema
// object (structural equality of field names/types)").
func (c *Context) GetMessageBySchema(schema message.Schema, order []SearchScope) (*message.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, scope := range order {
		for _, m := range c.messagesInScanOrder(scope) {
			probe := message.Schema{Name: m.SchemaName(), Fields: fieldSpecsOf(m)}
			if schema.ConformsStructurally(probe) {
				return m, true
			}
		}
	}
	return nil, false
}

func fieldSpecsOf(m *message.Message) []field.FieldSpec {
	fields := m.Fields()
	specs := make([]field.FieldSpec, len(fields))
	for i, f := range fields {
		specs[i] = field.FieldSpec{Name: f.Name, Type: f.Type}
	}
	return specs
}

// Clone deep-copies messages and resources; action reply messages are not
// cloned (§3: "Contexts are cloneable by deep copy (clone messages and
// resources; do not clone reply messages)"). Used by the scheduler to
// speculatively apply plan effects without mutating the live context.
func (c *Context) Clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := &Context{
		messages:  make(map[string]*message.Message, len(c.messages)),
		resources: make(map[string]*Resource, len(c.resources)),
	}
	for name, m := range c.messages {
		cp.messages[name] = m.Clone()
	}
	for name, r := range c.resources {
		cp.resources[name] = r.Clone()
	}
	if c.goalParams != nil {
		cp.goalParams = c.goalParams.Clone()
	}
	return cp
}
