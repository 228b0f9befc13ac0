package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
)

func TestEncodeDecodePursueEnvelopeRoundTrip(t *testing.T) {
	sender := identity.NewHandle("Rover")
	recipient := identity.NewHandle("Rover")
	ev := event.New(event.Pursue, "node1", sender, recipient, 1000)
	ev.Pursue = event.PursuePayload{
		GoalName:      "Patrol",
		Persistent:    true,
		PreassignedID: identity.New(),
	}

	env, err := EncodeEnvelope(ev, "node1", ForAgent(sender), ForAgent(recipient))
	require.NoError(t, err)
	assert.Equal(t, EventPursue, env.Type)

	data, err := marshal(env)
	require.NoError(t, err)

	decodedEnv, err := unmarshal(data)
	require.NoError(t, err)

	got, err := DecodeEnvelope(decodedEnv)
	require.NoError(t, err)
	assert.Equal(t, event.Pursue, got.Kind)
	assert.Equal(t, "Patrol", got.Pursue.GoalName)
	assert.True(t, got.Pursue.Persistent)
	assert.Equal(t, ev.Pursue.PreassignedID, got.Pursue.PreassignedID)
	assert.True(t, got.Sender.Equal(sender))
}

func TestEncodeDecodeDropEnvelopeRoundTrip(t *testing.T) {
	sender := identity.NewHandle("Rover")
	recipient := identity.NewHandle("Rover")
	goalHandle := identity.NewHandle("Patrol")
	ev := event.New(event.Drop, "node1", sender, recipient, 2000)
	ev.Drop = event.DropPayload{GoalHandle: goalHandle, Mode: event.DropForce, Reason: "retarget"}

	env, err := EncodeEnvelope(ev, "node1", ForAgent(sender), ForAgent(recipient))
	require.NoError(t, err)

	got, err := DecodeEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, event.Drop, got.Kind)
	assert.Equal(t, event.DropForce, got.Drop.Mode)
	assert.Equal(t, "retarget", got.Drop.Reason)
	assert.True(t, got.Drop.GoalHandle.Equal(goalHandle))
}

func TestEncodeDecodeDelegationEnvelopeRoundTrip(t *testing.T) {
	sender := identity.NewHandle("Scout")
	team := identity.NewHandle("Squad")
	ev := event.New(event.Delegation, "node1", sender, team, 3000)
	ev.Delegation = event.DelegationPayload{
		GoalName:   "Sweep",
		Score:      4.5,
		Status:     event.DelegationSuccess,
		Team:       team,
		ScheduleID: identity.New(),
	}

	env, err := EncodeEnvelope(ev, "node1", ForAgent(sender), ForTeam(team))
	require.NoError(t, err)

	got, err := DecodeEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, "Sweep", got.Delegation.GoalName)
	assert.Equal(t, event.DelegationSuccess, got.Delegation.Status)
	assert.Equal(t, 4.5, got.Delegation.Score)
	assert.True(t, got.Delegation.Team.Equal(team))
}

func TestEncodeDecodeActionCompleteEnvelopeRoundTrip(t *testing.T) {
	sender := identity.NewHandle("Camera")
	recipient := identity.NewHandle("Rover")
	ev := event.New(event.ActionComplete, "node1", sender, recipient, 4000)
	ev.ActionComplete = event.ActionCompletePayload{
		TaskID:        7,
		DesireID:      identity.New(),
		Succeeded:     true,
		ResourceLocks: []string{"Gimbal"},
	}

	env, err := EncodeEnvelope(ev, "node1", ForService(sender), ForAgent(recipient))
	require.NoError(t, err)
	assert.Equal(t, EventActionUpdate, env.Type, "ACTIONCOMPLETE rides the wire as ACTION_UPDATE")

	got, err := DecodeEnvelope(env)
	require.NoError(t, err)
	assert.Equal(t, event.ActionComplete, got.Kind)
	assert.Equal(t, 7, got.ActionComplete.TaskID)
	assert.True(t, got.ActionComplete.Succeeded)
	assert.Equal(t, []string{"Gimbal"}, got.ActionComplete.ResourceLocks)
}

func TestEncodeEnvelopeRejectsNonWireKinds(t *testing.T) {
	sender := identity.NewHandle("Rover")
	ev := event.New(event.Percept, "node1", sender, sender, 5000)

	_, err := EncodeEnvelope(ev, "node1", ForAgent(sender), ForAgent(sender))
	assert.Error(t, err, "PERCEPT never crosses the wire (only PURSUE/DELEGATION/DROP/ACTIONCOMPLETE do)")
}

func TestEventTypeStableOrder(t *testing.T) {
	// §6.1's stable order, checked positionally so a reordering of the
	// const block is caught even though the wire only ever serializes
	// the name, not the ordinal.
	names := []string{
		"NONE", "CONTROL", "PERCEPT", "MESSAGE", "PURSUE", "DROP",
		"DELEGATION", "REGISTER", "DEREGISTER", "AGENT_JOIN_TEAM",
		"AGENT_LEAVE_TEAM", "ACTION_BEGIN", "ACTION_UPDATE", "BDI_LOG",
	}
	for i, name := range names {
		assert.Equal(t, name, EventType(i).String())
	}
}
