// Package event implements §3 Event and §4.7 dispatch: the tagged event
// variant every entity exchanges, and the per-entity multi-producer
// single-consumer queue that carries them.
package event

import (
	"github.com/jackagents/jackgo/field"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
)

// Type discriminates an Event's active payload (§3 Event).
type Type int

const (
	Control Type = iota
	Percept
	Message
	Pursue
	Drop
	Delegation
	Auction
	Action
	ActionComplete
	Timer
	ShareBeliefSet
)

func (t Type) String() string {
	switch t {
	case Control:
		return "CONTROL"
	case Percept:
		return "PERCEPT"
	case Message:
		return "MESSAGE"
	case Pursue:
		return "PURSUE"
	case Drop:
		return "DROP"
	case Delegation:
		return "DELEGATION"
	case Auction:
		return "AUCTION"
	case Action:
		return "ACTION"
	case ActionComplete:
		return "ACTIONCOMPLETE"
	case Timer:
		return "TIMER"
	case ShareBeliefSet:
		return "SHAREBELIEFSET"
	default:
		return "UNKNOWN"
	}
}

// Status is every event's outcome field (§3: "Every event carries ...
// status: PENDING|SUCCESS|FAIL").
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFail:
		return "FAIL"
	default:
		return "PENDING"
	}
}

// ControlCommand is the CONTROL event's payload (§4.7: "transition state
// machine (START, PAUSE, STOP)").
type ControlCommand int

const (
	CmdStart ControlCommand = iota
	CmdPause
	CmdStop
)

// DropMode distinguishes a normal drop (persistent desires are kept) from
// a forced one (§5 "FORCE drops persistent goals too").
type DropMode int

const (
	DropNormal DropMode = iota
	DropForce
)

func (m DropMode) String() string {
	if m == DropForce {
		return "FORCE"
	}
	return "NORMAL"
}

// DelegationStatus is the DELEGATION payload's own status field, distinct
// from the event header's Status (§3).
type DelegationStatus int

const (
	DelegationPending DelegationStatus = iota
	DelegationFailed
	DelegationSuccess
)

// ControlPayload carries a CONTROL event's command.
type ControlPayload struct {
	Cmd ControlCommand
}

// PerceptPayload is a single-field external update (§3 PERCEPT(schema, field)).
type PerceptPayload struct {
	SchemaName string
	Field      field.Field
}

// PursuePayload requests a new desire instance (§3 PURSUE(goal, params,
// parentId, persistent)). PreassignedID is minted by the dispatcher at
// enqueue time so PursueTask's caller can hold a stable id for the
// eventual desire before the PURSUE event is actually drained and the
// goal instance built (§4.7 PURSUE: "return a Promise fulfilled on finish").
type PursuePayload struct {
	GoalName          string
	Params            *message.Message
	ParentIntentionID identity.UniqueId
	Persistent        bool
	PreassignedID     identity.UniqueId
}

// DropPayload requests a desire be dropped (§3 DROP(goal, id, mode, reason)).
type DropPayload struct {
	GoalHandle identity.Handle
	Mode       DropMode
	Reason     string
}

// DelegationPayload carries a team auction round-trip (§3 DELEGATION(goal,
// params, analyse?, score?, status, team, scheduleId)).
type DelegationPayload struct {
	GoalName   string
	Params     *message.Message
	Analyse    bool
	Score      float64
	Status     DelegationStatus
	Team       identity.Handle
	ScheduleID identity.UniqueId
}

// AuctionPayload is a member's bid reply (§3 AUCTION(bid, scheduleId)).
type AuctionPayload struct {
	Bid        float64
	ScheduleID identity.UniqueId
}

// ActionPayload dispatches a handler invocation (§3 ACTION(name, request,
// reply, taskId, goal, intentionId, plan, resourceLocks)).
type ActionPayload struct {
	Name          string
	Request       *message.Message
	Reply         *message.Message
	TaskID        int
	Goal          identity.Handle
	IntentionID   identity.UniqueId
	Plan          string
	ResourceLocks []string
}

// ActionCompletePayload correlates an asynchronous handler's result back to
// its originating task (§4.7 ACTIONCOMPLETE).
type ActionCompletePayload struct {
	TaskID        int
	DesireID      identity.UniqueId
	Succeeded     bool
	Reply         *message.Message
	ResourceLocks []string
}

// TimerPayload is a scheduled wakeup (§3 TIMER(expireAt, recipient)). TaskID
// and DesireID correlate the fired timer back to the sleeping coroutine
// task, the same way ActionPayload correlates an ACTION dispatch.
type TimerPayload struct {
	ExpireAtUs int64
	Recipient  identity.Handle
	TaskID     int
	DesireID   identity.UniqueId
}

// ShareBeliefSetPayload is one schema's periodic publication to a team
// (§4.8 shared-beliefsets).
type ShareBeliefSetPayload struct {
	Member        string
	SchemaName    string
	Msg           *message.Message
	LastUpdatedUs int64
}

// Event is the tagged variant every entity's queue carries (§3 Event). Only
// the field matching Kind is populated; the rest are zero-valued. This
// mirrors field.Value's tagged-variant-over-struct-fields shape rather than
// an interface{} payload, so routing code can switch on Kind without a
// type assertion.
type Event struct {
	TimestampUs int64
	SenderNode  string
	Sender      identity.Handle
	Recipient   identity.Handle
	EventID     identity.UniqueId
	Status      Status

	Kind Type

	Control        ControlPayload
	Percept        PerceptPayload
	MessagePayload *message.Message
	Pursue         PursuePayload
	Drop           DropPayload
	Delegation     DelegationPayload
	Auction        AuctionPayload
	Action         ActionPayload
	ActionComplete ActionCompletePayload
	Timer          TimerPayload
	ShareBeliefSet ShareBeliefSetPayload
}

// New builds an event with a fresh id and PENDING status.
func New(kind Type, senderNode string, sender, recipient identity.Handle, timestampUs int64) *Event {
	return &Event{
		TimestampUs: timestampUs,
		SenderNode:  senderNode,
		Sender:      sender,
		Recipient:   recipient,
		EventID:     identity.New(),
		Status:      StatusPending,
		Kind:        kind,
	}
}
