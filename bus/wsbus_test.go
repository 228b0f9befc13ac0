package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
)

// newWSPipe starts an httptest server accepting one websocket connection
// and dials a client WSBus to it, returning both ends.
func newWSPipe(t *testing.T) (client *WSBus, server *WSBus) {
	t.Helper()
	serverCh := make(chan *WSBus, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := Accept(w, r)
		require.NoError(t, err)
		serverCh <- b
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := Dial(context.Background(), url)
	require.NoError(t, err)

	select {
	case server = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server side of the websocket never accepted")
	}
	return c, server
}

func TestWSBusSendRecvRoundTrip(t *testing.T) {
	client, server := newWSPipe(t)
	defer client.Close()
	defer server.Close()
	client.SetNodeName("node-client")

	sender := identity.NewHandle("Rover")
	recipient := identity.NewHandle("Rover")
	ev := event.New(event.Pursue, "node-client", sender, recipient, 1234)
	ev.Pursue = event.PursuePayload{GoalName: "Patrol", Persistent: true}

	require.NoError(t, client.Send(context.Background(), ev, ForAgent(sender), ForAgent(recipient)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := server.Recv(ctx)
	require.NoError(t, err)

	assert.Equal(t, event.Pursue, got.Kind)
	assert.Equal(t, "Patrol", got.Pursue.GoalName)
	assert.True(t, got.Pursue.Persistent)
	assert.True(t, got.Sender.Equal(sender))
}

func TestWSBusRecvReturnsErrClosedAfterClose(t *testing.T) {
	client, server := newWSPipe(t)
	defer client.Close()

	require.NoError(t, server.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestForwarderRoutesThroughBus(t *testing.T) {
	client, server := newWSPipe(t)
	defer client.Close()
	defer server.Close()

	kindOf := func(h identity.Handle) Kind { return KindAgent }
	fwd := NewForwarder(client, kindOf, nil)

	sender := identity.NewHandle("Rover")
	recipient := identity.NewHandle("Rover")
	ev := event.New(event.Pursue, "node1", sender, recipient, 10)
	ev.Pursue = event.PursuePayload{GoalName: "Patrol"}

	fwd.Route(ev)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := server.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Patrol", got.Pursue.GoalName)
}
