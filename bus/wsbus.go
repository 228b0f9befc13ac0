package bus

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/resilience"
)

// WSBus is the concrete Bus transport (§4.9, §1 "external wire protocol
// over a websocket connection"), grounded on the coder/websocket
// dial/read/write/close shape already used for a single persistent
// connection in goclaw's zalo personal protocol client. Outbound writes
// go through a circuit breaker so a stalled peer degrades to fast
// failures instead of blocking the caller's tick.
type WSBus struct {
	conn     *websocket.Conn
	cb       *resilience.CircuitBreaker
	nodeName string
}

// SetNodeName records the local node's name, used as Send's outgoing
// envelope senderNode field (§6.1 header). Defaults to "" until set.
func (b *WSBus) SetNodeName(name string) { b.nodeName = name }

// Dial connects to a peer node's websocket endpoint as a client.
func Dial(ctx context.Context, url string) (*WSBus, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bus: dial %s: %w", url, err)
	}
	return newWSBus(conn), nil
}

// DialWithRetry dials url, retrying transient failures per config (§7
// "no error kind unwinds across the engine boundary" extended to the
// transport: a flaky reconnect is retried rather than surfaced once).
func DialWithRetry(ctx context.Context, url string, config *resilience.RetryConfig) (*WSBus, error) {
	var b *WSBus
	err := resilience.Retry(ctx, config, func() error {
		conn, dialErr := websocket.Dial(ctx, url, nil)
		if dialErr != nil {
			return dialErr
		}
		b = newWSBus(conn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bus: dial %s: %w", url, err)
	}
	return b, nil
}

// Accept upgrades an incoming HTTP request to a websocket connection,
// for the server side of a node-to-node link.
func Accept(w http.ResponseWriter, r *http.Request) (*WSBus, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("bus: accept: %w", err)
	}
	return newWSBus(conn), nil
}

func newWSBus(conn *websocket.Conn) *WSBus {
	cfg := resilience.DefaultConfig()
	cfg.Name = "bus-send"
	cfg.VolumeThreshold = 5
	cb, _ := resilience.NewCircuitBreaker(cfg)
	return &WSBus{conn: conn, cb: cb}
}

// Send implements Bus.
func (b *WSBus) Send(ctx context.Context, ev *event.Event, senderAddr, recipientAddr Address) error {
	env, err := EncodeEnvelope(ev, b.nodeName, senderAddr, recipientAddr)
	if err != nil {
		return err
	}
	data, err := marshal(env)
	if err != nil {
		return fmt.Errorf("bus: marshal envelope: %w", err)
	}
	write := func() error { return b.conn.Write(ctx, websocket.MessageText, data) }
	if b.cb == nil {
		return write()
	}
	return b.cb.Execute(ctx, write)
}

// Recv implements Bus.
func (b *WSBus) Recv(ctx context.Context) (*event.Event, error) {
	_, data, err := b.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("bus: read: %w", err)
	}
	env, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("bus: unmarshal envelope: %w", err)
	}
	return DecodeEnvelope(env)
}

// Close implements Bus.
func (b *WSBus) Close() error {
	return b.conn.Close(websocket.StatusNormalClosure, "bus: closing")
}
