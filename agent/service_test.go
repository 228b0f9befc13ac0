package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
)

// capturingRouter records every event routed through it, for assertions
// about what a Service or ProxyAgent forwards.
type capturingRouter struct{ events []*event.Event }

func (r *capturingRouter) Route(e *event.Event) { r.events = append(r.events, e) }

func TestServiceSynchronousActionRoundTrip(t *testing.T) {
	tpl := &ServiceTemplate{
		Name: "Weather",
		ActionHandlers: map[string]ActionHandler{
			"GetTemp": func(req *message.Message) ActionResult {
				return ActionResult{Status: event.StatusSuccess}
			},
		},
	}
	svc := NewService("node1", tpl, nil)
	router := &capturingRouter{}
	svc.SetRouter(router)
	svc.Control(event.CmdStart)

	requester := identity.NewHandle("Rover")
	ev := event.New(event.Action, "node1", requester, svc.Handle(), 0)
	ev.Action = event.ActionPayload{Name: "GetTemp", TaskID: 1, IntentionID: identity.New()}
	svc.Enqueue(ev)

	svc.Tick(0)

	require.Len(t, router.events, 1)
	got := router.events[0]
	assert.Equal(t, event.ActionComplete, got.Kind)
	assert.Equal(t, requester, got.Recipient)
	assert.True(t, got.ActionComplete.Succeeded)
}

func TestServiceUnknownActionFailsImmediately(t *testing.T) {
	tpl := &ServiceTemplate{Name: "Weather", ActionHandlers: map[string]ActionHandler{}}
	svc := NewService("node1", tpl, nil)
	router := &capturingRouter{}
	svc.SetRouter(router)
	svc.Control(event.CmdStart)

	requester := identity.NewHandle("Rover")
	ev := event.New(event.Action, "node1", requester, svc.Handle(), 0)
	ev.Action = event.ActionPayload{Name: "DoesNotExist", TaskID: 1}
	svc.Enqueue(ev)
	svc.Tick(0)

	require.Len(t, router.events, 1)
	assert.False(t, router.events[0].ActionComplete.Succeeded)
}

func TestServiceAsyncFinishActionHandleRoutesReply(t *testing.T) {
	tpl := &ServiceTemplate{
		Name: "Weather",
		ActionHandlers: map[string]ActionHandler{
			"SlowFetch": func(req *message.Message) ActionResult {
				return ActionResult{Status: event.StatusPending}
			},
		},
	}
	svc := NewService("node1", tpl, nil)
	router := &capturingRouter{}
	svc.SetRouter(router)
	svc.Control(event.CmdStart)

	requester := identity.NewHandle("Rover")
	ev := event.New(event.Action, "node1", requester, svc.Handle(), 0)
	ev.Action = event.ActionPayload{Name: "SlowFetch", TaskID: 9}
	svc.Enqueue(ev)
	svc.Tick(0)
	require.Empty(t, router.events, "a PENDING handler must not reply yet")

	svc.FinishActionHandle(9, true, nil)
	svc.Tick(1)

	require.Len(t, router.events, 1)
	assert.Equal(t, requester, router.events[0].Recipient)
	assert.True(t, router.events[0].ActionComplete.Succeeded)
}

func TestServiceForwardsActionCompleteNotAddressedToItself(t *testing.T) {
	tpl := &ServiceTemplate{Name: "Weather"}
	svc := NewService("node1", tpl, nil)
	router := &capturingRouter{}
	svc.SetRouter(router)
	svc.Control(event.CmdStart)

	other := identity.NewHandle("SomeAgent")
	ev := event.New(event.ActionComplete, "node1", other, other, 0)
	ev.ActionComplete = event.ActionCompletePayload{TaskID: 1, Succeeded: true}
	svc.Enqueue(ev)
	svc.Tick(0)

	require.Len(t, router.events, 1, "an externally-sourced ACTIONCOMPLETE is forwarded on, not resolved locally")
}
