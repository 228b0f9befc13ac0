package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackagents/jackgo/identity"
)

func TestAddressRoundTrip(t *testing.T) {
	h := identity.NewHandle("Rover")
	addr := ForAgent(h)

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)
}

func TestParseAddressRejectsWrongFieldCount(t *testing.T) {
	cases := []string{
		"jack/agent/Rover",
		"jack/agent/Rover/" + identity.New().String() + "/extra",
		"",
	}
	for _, s := range cases {
		_, err := ParseAddress(s)
		assert.Error(t, err, "address %q should be rejected", s)
	}
}

func TestParseAddressRejectsUnknownKind(t *testing.T) {
	_, err := ParseAddress("jack/planet/Rover/" + identity.New().String())
	assert.Error(t, err)
}

func TestParseAddressRejectsBadID(t *testing.T) {
	_, err := ParseAddress("jack/agent/Rover/not-a-uuid")
	assert.Error(t, err)
}

func TestParseAddressRejectsWrongPrefix(t *testing.T) {
	_, err := ParseAddress("bus/agent/Rover/" + identity.New().String())
	assert.Error(t, err)
}

func TestAddressHandleProjection(t *testing.T) {
	h := identity.NewHandle("Scout")
	addr := ForTeam(h)
	assert.True(t, addr.Handle().Equal(h))
	assert.Equal(t, "Scout", addr.Handle().Name)
}

func TestAddressMarshalTextRoundTrip(t *testing.T) {
	addr := ForService(identity.NewHandle("Camera"))
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var got Address
	require.NoError(t, got.UnmarshalText(text))
	assert.Equal(t, addr, got)
}
