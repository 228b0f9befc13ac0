package bus

import (
	"context"

	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
)

// Forwarder adapts a Bus into the bare func(*event.Event) shape that
// Engine.SetBusForward and ProxyAgent.SetBus expect (agent.Router's
// single method), so cmd/jackd can wire a websocket connection in
// without either package importing bus directly (§4.9's
// forward-don't-execute boundary, kept at the transport edge too).
type Forwarder struct {
	bus    Bus
	kindOf func(identity.Handle) Kind
	logger core.Logger
}

// NewForwarder builds a Forwarder over b. kindOf classifies a handle as
// an agent, team, or service so the wire header can carry the address
// Kind a bare identity.Handle doesn't have; callers typically close over
// an engine's registry to answer this. A nil logger falls back to
// core.NoOpLogger.
func NewForwarder(b Bus, kindOf func(identity.Handle) Kind, logger core.Logger) *Forwarder {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Forwarder{bus: b, kindOf: kindOf, logger: logger}
}

// Route implements agent.Router by sending ev across the bus. Send
// errors are logged rather than returned: Route's signature (mirroring
// §4.7's fire-and-forget event delivery) has no error channel, matching
// §7's "no error kind unwinds across the engine boundary".
func (f *Forwarder) Route(ev *event.Event) {
	senderAddr := NewAddress(f.kindOf(ev.Sender), ev.Sender.Name, ev.Sender.Id)
	recipientAddr := NewAddress(f.kindOf(ev.Recipient), ev.Recipient.Name, ev.Recipient.Id)
	if err := f.bus.Send(context.Background(), ev, senderAddr, recipientAddr); err != nil {
		f.logger.Warn("bus: forward failed", map[string]interface{}{
			"kind":      ev.Kind.String(),
			"recipient": recipientAddr.String(),
			"error":     err.Error(),
		})
	}
}
