package model

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNUDString(t *testing.T) {
	cases := []struct {
		status NUD
		want   string
	}{
		{NUDNone, "NONE"},
		{NUDIncomplete, "INCOMPLETE"},
		{NUDReachable, "REACHABLE"},
		{NUDIncomplete | NUDReachable, "REACHABLE"}, // kernel quirk: prefer REACHABLE
		{NUDStale, "STALE"},
		{NUDFailed, "FAILED"},
		{NUDPermanent, "PERMANENT"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.status.String())
	}
}

func TestNbrFlagString(t *testing.T) {
	assert.Equal(t, "-", NbrFlag(0).String())
	assert.Contains(t, (FlagResolve | FlagRefresh).String(), "RESOLVE")
	assert.Contains(t, (FlagResolve | FlagRefresh).String(), "REFRESH")
}

func TestIsZeroMAC(t *testing.T) {
	assert.True(t, IsZeroMAC(nil))
	assert.True(t, IsZeroMAC(make(net.HardwareAddr, 6)))

	mac, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.False(t, IsZeroMAC(mac))

	// Non-6-byte addresses are never treated as the zero sentinel.
	assert.False(t, IsZeroMAC(net.HardwareAddr{0, 0, 0}))
}

func TestNeighborEntryKeys(t *testing.T) {
	entry := NeighborEntry{
		VRFID:   7,
		Family:  FamilyINET4,
		Ifindex: 5,
		Addr:    net.ParseIP("10.0.0.1"),
	}
	key := entry.Key()
	assert.Equal(t, NeighborKey{VRFID: 7, Family: FamilyINET4, Ifindex: 5, Addr: "10.0.0.1"}, key)

	entry.ParentIf = 9
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	entry.MAC = mac
	assert.Equal(t, MACKey{Ifindex: 9, Addr: "aa:bb:cc:dd:ee:ff"}, entry.MACKey())
}

func TestMACOwnership(t *testing.T) {
	m := NewMAC(MACKey{Ifindex: 5, Addr: "aa:bb:cc:dd:ee:ff"})
	assert.True(t, m.Empty())
	assert.False(t, m.IsValid())

	nk := NeighborKey{VRFID: 0, Family: FamilyINET4, Ifindex: 5, Addr: "10.0.0.1"}
	m.AddNeighbor(nk)
	assert.False(t, m.Empty())

	m.MbrIfIndex = 7
	assert.True(t, m.IsValid())

	m.RemoveNeighbor(nk)
	assert.True(t, m.Empty())
}
