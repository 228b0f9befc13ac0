package bus

import (
	"encoding/json"
	"fmt"

	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
)

// EventType is the wire enumeration of §6.1, in its specified stable
// order. It is deliberately a separate type from event.Type: the wire
// enum carries session-management kinds (REGISTER, DEREGISTER,
// AGENT_JOIN_TEAM, AGENT_LEAVE_TEAM) that the in-process event.Type never
// needs, because those are bus-connection concerns rather than BDI
// events a local queue ever carries.
type EventType int

const (
	EventNone EventType = iota
	EventControl
	EventPercept
	EventMessage
	EventPursue
	EventDrop
	EventDelegation
	EventRegister
	EventDeregister
	EventAgentJoinTeam
	EventAgentLeaveTeam
	EventActionBegin
	EventActionUpdate
	EventBDILog
	eventCount
)

func (t EventType) String() string {
	switch t {
	case EventNone:
		return "NONE"
	case EventControl:
		return "CONTROL"
	case EventPercept:
		return "PERCEPT"
	case EventMessage:
		return "MESSAGE"
	case EventPursue:
		return "PURSUE"
	case EventDrop:
		return "DROP"
	case EventDelegation:
		return "DELEGATION"
	case EventRegister:
		return "REGISTER"
	case EventDeregister:
		return "DEREGISTER"
	case EventAgentJoinTeam:
		return "AGENT_JOIN_TEAM"
	case EventAgentLeaveTeam:
		return "AGENT_LEAVE_TEAM"
	case EventActionBegin:
		return "ACTION_BEGIN"
	case EventActionUpdate:
		return "ACTION_UPDATE"
	case EventBDILog:
		return "BDI_LOG"
	default:
		return "COUNT"
	}
}

func (t EventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// BDILogLevel and BDILogResult are the severity/outcome enums a BDI_LOG
// event carries (§6.1).
type BDILogLevel int

const (
	LogNormal BDILogLevel = iota
	LogImportant
	LogCritical
)

type BDILogResult int

const (
	LogFailed BDILogResult = iota
	LogSucceeded
	LogDropped
)

// BDILogKind names what the log entry is about (§6.1 "goal start/finish,
// subgoal start/finish, intention start/finish, action start/finish,
// sleep start/finish, condition").
type BDILogKind string

const (
	LogGoalStart      BDILogKind = "GOAL_START"
	LogGoalFinish     BDILogKind = "GOAL_FINISH"
	LogSubgoalStart   BDILogKind = "SUBGOAL_START"
	LogSubgoalFinish  BDILogKind = "SUBGOAL_FINISH"
	LogIntentionStart BDILogKind = "INTENTION_START"
	LogIntentionEnd   BDILogKind = "INTENTION_FINISH"
	LogActionStart    BDILogKind = "ACTION_START"
	LogActionFinish   BDILogKind = "ACTION_FINISH"
	LogSleepStart     BDILogKind = "SLEEP_START"
	LogSleepFinish    BDILogKind = "SLEEP_FINISH"
	LogCondition      BDILogKind = "CONDITION"
)

// toWireType maps an internal event.Type onto the wire enum for the
// kinds a ProxyAgent ever forwards (§4.9 busForwardable: PURSUE,
// DELEGATION, DROP, ACTIONCOMPLETE). ACTIONCOMPLETE has no dedicated
// wire kind of its own; it rides as an ACTION_UPDATE, the wire
// protocol's general-purpose action-progress notification.
func toWireType(k event.Type) (EventType, bool) {
	switch k {
	case event.Pursue:
		return EventPursue, true
	case event.Drop:
		return EventDrop, true
	case event.Delegation:
		return EventDelegation, true
	case event.ActionComplete:
		return EventActionUpdate, true
	default:
		return EventNone, false
	}
}

// Envelope is the JSON form of an event's wire header (§6.1) plus the
// kind-specific payload fields needed to reconstruct a PURSUE, DROP,
// DELEGATION or ACTIONCOMPLETE event on the far side. Only these four
// kinds ever cross the wire (§4.9), so Envelope carries only their
// payloads rather than mirroring event.Event's full tagged union.
type Envelope struct {
	TimestampUs int64     `json:"timestampUs"`
	Type        EventType `json:"type"`
	SenderNode  Address   `json:"senderNode"`
	Sender      Address   `json:"sender"`
	Recipient   Address   `json:"recipient"`
	EventID     identity.UniqueId `json:"eventId"`
	Status      string    `json:"status"`

	Pursue         *wirePursue     `json:"pursue,omitempty"`
	Drop           *wireDrop       `json:"drop,omitempty"`
	Delegation     *wireDelegation `json:"delegation,omitempty"`
	ActionComplete *wireActionComplete `json:"actionComplete,omitempty"`
}

type wirePursue struct {
	GoalName          string            `json:"goalName"`
	ParentIntentionID identity.UniqueId `json:"parentIntentionId"`
	Persistent        bool              `json:"persistent"`
	PreassignedID     identity.UniqueId `json:"preassignedId"`
}

type wireDrop struct {
	GoalHandle Address `json:"goalHandle"`
	Mode       string  `json:"mode"`
	Reason     string  `json:"reason"`
}

type wireDelegation struct {
	GoalName   string            `json:"goalName"`
	Analyse    bool              `json:"analyse"`
	Score      float64           `json:"score"`
	Status     string            `json:"status"`
	Team       Address           `json:"team"`
	ScheduleID identity.UniqueId `json:"scheduleId"`
}

type wireActionComplete struct {
	TaskID        int               `json:"taskId"`
	DesireID      identity.UniqueId `json:"desireId"`
	Succeeded     bool              `json:"succeeded"`
	ResourceLocks []string          `json:"resourceLocks,omitempty"`
}

// delegationStatusString and dropModeString render event's own enums for
// the wire; parseDelegationStatus/parseDropMode invert them.
func delegationStatusString(s event.DelegationStatus) string {
	switch s {
	case event.DelegationSuccess:
		return "SUCCESS"
	case event.DelegationFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

func parseDelegationStatus(s string) event.DelegationStatus {
	switch s {
	case "SUCCESS":
		return event.DelegationSuccess
	case "FAILED":
		return event.DelegationFailed
	default:
		return event.DelegationPending
	}
}

func parseDropMode(s string) event.DropMode {
	if s == "FORCE" {
		return event.DropForce
	}
	return event.DropNormal
}

// EncodeEnvelope converts an in-process event into its wire Envelope.
// nodeName names the local node for the SenderNode field. senderAddr and
// recipientAddr carry the Kind (agent/team/service) that a bare
// identity.Handle cannot express on its own, since the caller already
// knows what kind of entity originated and is addressed by ev.
func EncodeEnvelope(ev *event.Event, nodeName string, senderAddr, recipientAddr Address) (*Envelope, error) {
	wireType, ok := toWireType(ev.Kind)
	if !ok {
		return nil, fmt.Errorf("bus: event kind %s does not cross the wire", ev.Kind)
	}
	env := &Envelope{
		TimestampUs: ev.TimestampUs,
		Type:        wireType,
		SenderNode:  ForNode(nodeName, identity.Nil),
		Sender:      senderAddr,
		Recipient:   recipientAddr,
		EventID:     ev.EventID,
		Status:      ev.Status.String(),
	}
	switch ev.Kind {
	case event.Pursue:
		env.Pursue = &wirePursue{
			GoalName:          ev.Pursue.GoalName,
			ParentIntentionID: ev.Pursue.ParentIntentionID,
			Persistent:        ev.Pursue.Persistent,
			PreassignedID:     ev.Pursue.PreassignedID,
		}
	case event.Drop:
		env.Drop = &wireDrop{
			GoalHandle: ForAgent(ev.Drop.GoalHandle),
			Mode:       ev.Drop.Mode.String(),
			Reason:     ev.Drop.Reason,
		}
	case event.Delegation:
		env.Delegation = &wireDelegation{
			GoalName:   ev.Delegation.GoalName,
			Analyse:    ev.Delegation.Analyse,
			Score:      ev.Delegation.Score,
			Status:     delegationStatusString(ev.Delegation.Status),
			Team:       ForTeam(ev.Delegation.Team),
			ScheduleID: ev.Delegation.ScheduleID,
		}
	case event.ActionComplete:
		env.ActionComplete = &wireActionComplete{
			TaskID:        ev.ActionComplete.TaskID,
			DesireID:      ev.ActionComplete.DesireID,
			Succeeded:     ev.ActionComplete.Succeeded,
			ResourceLocks: ev.ActionComplete.ResourceLocks,
		}
	}
	return env, nil
}

// DecodeEnvelope reconstructs an in-process event from a wire Envelope.
// Message-carrying payloads (PURSUE's and DELEGATION's Params) are not
// carried by Envelope at all, so a decoded event always has nil Params;
// interpreting remote parameters would need a schema set shared between
// nodes, which this package does not have.
func DecodeEnvelope(env *Envelope) (*event.Event, error) {
	ev := &event.Event{
		TimestampUs: env.TimestampUs,
		SenderNode:  env.SenderNode.Name,
		Sender:      env.Sender.Handle(),
		Recipient:   env.Recipient.Handle(),
		EventID:     env.EventID,
	}
	switch env.Status {
	case "SUCCESS":
		ev.Status = event.StatusSuccess
	case "FAIL":
		ev.Status = event.StatusFail
	default:
		ev.Status = event.StatusPending
	}

	switch env.Type {
	case EventPursue:
		if env.Pursue == nil {
			return nil, fmt.Errorf("bus: PURSUE envelope missing its payload")
		}
		ev.Kind = event.Pursue
		ev.Pursue = event.PursuePayload{
			GoalName:          env.Pursue.GoalName,
			ParentIntentionID: env.Pursue.ParentIntentionID,
			Persistent:        env.Pursue.Persistent,
			PreassignedID:     env.Pursue.PreassignedID,
		}
	case EventDrop:
		if env.Drop == nil {
			return nil, fmt.Errorf("bus: DROP envelope missing its payload")
		}
		ev.Kind = event.Drop
		ev.Drop = event.DropPayload{
			GoalHandle: env.Drop.GoalHandle.Handle(),
			Mode:       parseDropMode(env.Drop.Mode),
			Reason:     env.Drop.Reason,
		}
	case EventDelegation:
		if env.Delegation == nil {
			return nil, fmt.Errorf("bus: DELEGATION envelope missing its payload")
		}
		ev.Kind = event.Delegation
		ev.Delegation = event.DelegationPayload{
			GoalName:   env.Delegation.GoalName,
			Analyse:    env.Delegation.Analyse,
			Score:      env.Delegation.Score,
			Status:     parseDelegationStatus(env.Delegation.Status),
			Team:       env.Delegation.Team.Handle(),
			ScheduleID: env.Delegation.ScheduleID,
		}
	case EventActionUpdate:
		if env.ActionComplete == nil {
			return nil, fmt.Errorf("bus: ACTION_UPDATE envelope missing its payload")
		}
		ev.Kind = event.ActionComplete
		ev.ActionComplete = event.ActionCompletePayload{
			TaskID:        env.ActionComplete.TaskID,
			DesireID:      env.ActionComplete.DesireID,
			Succeeded:     env.ActionComplete.Succeeded,
			ResourceLocks: env.ActionComplete.ResourceLocks,
		}
	default:
		return nil, fmt.Errorf("bus: envelope type %s does not decode to an in-process event", env.Type)
	}
	return ev, nil
}

// marshal/unmarshal are the frame codec the transport uses; kept as
// named functions (rather than inlined json.Marshal calls) so a future
// binary codec can replace them without touching wsbus.go.
func marshal(env *Envelope) ([]byte, error) { return json.Marshal(env) }
func unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
