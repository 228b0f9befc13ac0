package bus

import (
	"context"
	"errors"

	"github.com/jackagents/jackgo/event"
)

// ErrClosed is returned by Recv once the peer has closed the connection.
var ErrClosed = errors.New("bus: connection closed")

// Bus is the external transport a ProxyAgent forwards bus-eligible events
// through (§4.9). Implementations need not be websocket-based; wsbus is
// the one concrete transport this module ships.
type Bus interface {
	// Send encodes ev and writes it to the peer. senderAddr/recipientAddr
	// supply the Kind information a bare identity.Handle lacks.
	Send(ctx context.Context, ev *event.Event, senderAddr, recipientAddr Address) error

	// Recv blocks until a decoded event arrives, ctx is cancelled, or the
	// bus is closed (returning ErrClosed).
	Recv(ctx context.Context) (*event.Event, error)

	// Close shuts down the underlying connection. Idempotent.
	Close() error
}
