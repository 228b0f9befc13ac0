// Package identity provides the 128-bit identifiers and lightweight
// handles every other JACK package builds on (§3 UniqueId, Handle).
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// UniqueId is a 128-bit identifier with a total order and the canonical
// string form "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee". A zeroed UniqueId is
// invalid; every live entity carries a valid one.
type UniqueId uuid.UUID

// Nil is the invalid, zeroed id.
var Nil UniqueId

// New generates a fresh random UniqueId.
func New() UniqueId {
	return UniqueId(uuid.New())
}

// Valid reports whether id is non-zero.
func (id UniqueId) Valid() bool {
	return id != Nil
}

// String renders the canonical hyphenated form.
func (id UniqueId) String() string {
	return uuid.UUID(id).String()
}

// Compare gives UniqueId a total order (lexicographic over the 16 raw
// bytes), used by deterministic tie-breaks in the scheduler and by tests
// asserting stable iteration order.
func (id UniqueId) Compare(other UniqueId) int {
	for i := range id {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Parse parses the canonical string form back into a UniqueId.
func Parse(s string) (UniqueId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("identity: parse %q: %w", s, err)
	}
	return UniqueId(u), nil
}

// MarshalText implements encoding.TextMarshaler so UniqueId round-trips
// through JSON/YAML as its string form rather than as a byte array.
func (id UniqueId) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *UniqueId) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Handle identifies a runtime instance (goal, tactic, action, agent,
// service, ...) by (name, id) without owning it. Two handles are equal
// iff their ids are equal; the name is carried for readability in logs
// and is not part of identity.
type Handle struct {
	Name string
	Id   UniqueId
}

// NewHandle mints a handle with a fresh id.
func NewHandle(name string) Handle {
	return Handle{Name: name, Id: New()}
}

// Invalid reports whether h carries the zero id.
func (h Handle) Invalid() bool {
	return !h.Id.Valid()
}

// Equal compares two handles by id only, per §3.
func (h Handle) Equal(other Handle) bool {
	return h.Id == other.Id
}

// String renders "name#id" for logs.
func (h Handle) String() string {
	if h.Invalid() {
		return fmt.Sprintf("%s#<invalid>", h.Name)
	}
	return fmt.Sprintf("%s#%s", h.Name, h.Id.String())
}
