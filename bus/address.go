// Package bus implements §6.1's external wire protocol: the BusAddress
// naming scheme, the wire EventType/BDI-log enumerations, and a
// websocket-backed Bus transport that carries the event kinds a
// ProxyAgent forwards (§4.9) between nodes.
package bus

import (
	"fmt"
	"strings"

	"github.com/jackagents/jackgo/identity"
)

// Kind is the first field after "jack" in a BusAddress, naming what
// kind of entity the address identifies (§6.1 "jack/<node|service|
// agent|team>/<name>/<uuid>").
type Kind string

const (
	KindNode    Kind = "node"
	KindService Kind = "service"
	KindAgent   Kind = "agent"
	KindTeam    Kind = "team"
)

func (k Kind) valid() bool {
	switch k {
	case KindNode, KindService, KindAgent, KindTeam:
		return true
	}
	return false
}

// Address is a parsed BusAddress (§6.1): "jack/<kind>/<name>/<uuid>",
// exactly four forward-slash-delimited fields.
type Address struct {
	Kind Kind
	Name string
	ID   identity.UniqueId
}

// NewAddress builds an Address from its parts; it does not validate kind,
// so callers should use one of the ForAgent/ForTeam/ForService/ForNode
// helpers unless they have a genuine need for an unchecked Kind.
func NewAddress(kind Kind, name string, id identity.UniqueId) Address {
	return Address{Kind: kind, Name: name, ID: id}
}

// ForAgent, ForTeam and ForService build an Address from a live entity's
// handle; ForNode builds one for the node itself (used as an event's
// senderNode/BusAddress per §6.1's header).
func ForAgent(h identity.Handle) Address   { return Address{Kind: KindAgent, Name: h.Name, ID: h.Id} }
func ForTeam(h identity.Handle) Address    { return Address{Kind: KindTeam, Name: h.Name, ID: h.Id} }
func ForService(h identity.Handle) Address { return Address{Kind: KindService, Name: h.Name, ID: h.Id} }
func ForNode(name string, id identity.UniqueId) Address {
	return Address{Kind: KindNode, Name: name, ID: id}
}

// String renders the canonical "jack/<kind>/<name>/<uuid>" form.
func (a Address) String() string {
	return fmt.Sprintf("jack/%s/%s/%s", a.Kind, a.Name, a.ID.String())
}

// Handle projects an Address back to an identity.Handle, discarding Kind.
func (a Address) Handle() identity.Handle {
	return identity.Handle{Name: a.Name, Id: a.ID}
}

// ParseAddress parses s into an Address, rejecting any form with other
// than exactly four fields or an unrecognized kind (§6.1 "Parser must
// reject any other field count", §8 round-trip property).
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return Address{}, fmt.Errorf("bus: address %q must have exactly 4 fields, got %d", s, len(parts))
	}
	if parts[0] != "jack" {
		return Address{}, fmt.Errorf("bus: address %q must start with \"jack\", got %q", s, parts[0])
	}
	kind := Kind(parts[1])
	if !kind.valid() {
		return Address{}, fmt.Errorf("bus: address %q has unknown kind %q", s, parts[1])
	}
	if parts[2] == "" {
		return Address{}, fmt.Errorf("bus: address %q has an empty name field", s)
	}
	id, err := identity.Parse(parts[3])
	if err != nil {
		return Address{}, fmt.Errorf("bus: address %q: %w", s, err)
	}
	return Address{Kind: kind, Name: parts[2], ID: id}, nil
}

// MarshalText and UnmarshalText let Address round-trip through JSON as
// its wire string form rather than as a nested object, matching
// identity.UniqueId's own TextMarshaler pattern.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
