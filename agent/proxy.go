package agent

import (
	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/model"
)

// busForwardable lists the event kinds a ProxyAgent relays onto its bus
// rather than handling locally (§4.9: "a proxy forwards PURSUE, DELEGATION,
// DROP and ACTIONCOMPLETE across the wire and otherwise never ticks").
var busForwardable = map[event.Type]bool{
	event.Pursue:         true,
	event.Delegation:     true,
	event.Drop:           true,
	event.ActionComplete: true,
}

// ProxyAgent stands in for a remote agent or team reachable only across a
// bus connection (§3 ProxyAgent, §4.9). It owns no beliefs, desires, or
// intentions; it is always reported as delegated so the scheduler treats
// goals routed through it as already bound.
type ProxyAgent struct {
	handle   identity.Handle
	nodeName string
	queue    *event.Queue
	state    LifecycleState
	bus      Router
}

// NewProxyAgent builds a ProxyAgent named name, forwarding bus-eligible
// events through bus.
func NewProxyAgent(nodeName, name string, bus Router) *ProxyAgent {
	return &ProxyAgent{
		handle:   identity.Handle{Name: name, Id: identity.New()},
		nodeName: nodeName,
		queue:    event.NewQueue(),
		state:    Stopped,
		bus:      bus,
	}
}

func (p *ProxyAgent) Handle() identity.Handle { return p.handle }
func (p *ProxyAgent) State() LifecycleState   { return p.state }
func (p *ProxyAgent) Enqueue(e *event.Event)  { p.queue.Push(e) }
func (p *ProxyAgent) SetBus(r Router)         { p.bus = r }

// Delegated always reports true: a proxy never runs a local scheduler, so
// from the owning agent/team's point of view every goal routed to it is
// already bound elsewhere (§4.9).
func (p *ProxyAgent) Delegated() bool { return true }

// CurrentIntention is always nil: a proxy has no local plan body.
func (p *ProxyAgent) CurrentIntention() *model.PlanTemplate { return nil }

// Tick drains the proxy's queue, handling CONTROL locally and forwarding
// everything bus-eligible; a proxy never ticks a DAG.
func (p *ProxyAgent) Tick(nowUs int64) {
	batch := p.queue.Drain(fairDrainBound)
	for _, ev := range batch {
		if ev.Kind == event.Control {
			p.handleControl(ev)
			continue
		}
		if busForwardable[ev.Kind] && p.bus != nil {
			p.bus.Route(ev)
		}
	}
}

func (p *ProxyAgent) handleControl(ev *event.Event) {
	switch ev.Control.Cmd {
	case event.CmdStart:
		p.state = Running
	case event.CmdPause:
		p.state = Paused
	case event.CmdStop:
		p.state = Stopped
	}
}
