package store

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisy/nbrmgr/model"
)

func newTestNeighbor(vrf uint32, ifindex int, addr string) *model.Neighbor {
	return model.NewNeighbor(model.NeighborEntry{
		VRFID:   vrf,
		Family:  model.FamilyINET4,
		Ifindex: ifindex,
		Addr:    net.ParseIP(addr),
	})
}

func TestNeighborPutAndReverseIndex(t *testing.T) {
	c := New()
	n := newTestNeighbor(0, 5, "10.0.0.1")
	c.NeighborPut(n)

	got, ok := c.NeighborGet(n.Key)
	require.True(t, ok)
	assert.Same(t, n, got)

	found := false
	c.NeighborWalkIfindex(0, 5, func(walked *model.Neighbor) {
		if walked.Key == n.Key {
			found = true
		}
	})
	assert.True(t, found, "invariant 2: neighbor must appear in the reverse index")
}

func TestNeighborRemoveRespectsResolveFlag(t *testing.T) {
	c := New()
	n := newTestNeighbor(0, 5, "10.0.0.1")
	n.Flags |= model.FlagResolve
	c.NeighborPut(n)

	removed := c.NeighborRemove(n)
	assert.False(t, removed, "invariant 4: a neighbor with RESOLVE set must never be evicted here")

	_, ok := c.NeighborGet(n.Key)
	assert.True(t, ok)

	n.Flags &^= model.FlagResolve
	removed = c.NeighborRemove(n)
	assert.True(t, removed)
	_, ok = c.NeighborGet(n.Key)
	assert.False(t, ok)
}

func TestNeighborRemoveReleasesMAC(t *testing.T) {
	c := New()
	n := newTestNeighbor(0, 5, "10.0.0.1")
	mk := model.MACKey{Ifindex: 5, Addr: "aa:bb:cc:dd:ee:ff"}
	m := c.MACGetOrCreate(mk)
	m.AddNeighbor(n.Key)
	n.MAC = &mk
	c.NeighborPut(n)

	c.NeighborRemove(n)

	_, ok := c.MACGet(mk)
	assert.False(t, ok, "an orphaned non-LEARNED MAC must be removed once its last neighbor is gone")
}

func TestMACMaybeRemoveKeepsLearnedOrphans(t *testing.T) {
	c := New()
	mk := model.MACKey{Ifindex: 5, Addr: "aa:bb:cc:dd:ee:ff"}
	m := c.MACGetOrCreate(mk)
	m.FDBType = model.FDBLearned

	removed := c.MACMaybeRemove(m)
	assert.False(t, removed, "a LEARNED MAC with no referencing neighbors must persist")

	_, ok := c.MACGet(mk)
	assert.True(t, ok)

	m.FDBType = model.FDBIncomplete
	removed = c.MACMaybeRemove(m)
	assert.True(t, removed)
}

func TestPairInterfacesSymmetry(t *testing.T) {
	c := New()
	a := model.InterfaceKey{VRFID: 1, Ifindex: 5}
	b := model.InterfaceKey{VRFID: 0, Ifindex: 7}

	c.PairInterfaces(a, b)

	ai, ok := c.InterfaceGet(a)
	require.True(t, ok)
	bi, ok := c.InterfaceGet(b)
	require.True(t, ok)

	require.NotNil(t, ai.Paired)
	require.NotNil(t, bi.Paired)
	assert.Equal(t, b, *ai.Paired)
	assert.Equal(t, a, *bi.Paired)
}

func TestInterfaceDeleteClearsCounterpartPairing(t *testing.T) {
	c := New()
	a := model.InterfaceKey{VRFID: 1, Ifindex: 5}
	b := model.InterfaceKey{VRFID: 0, Ifindex: 7}
	c.PairInterfaces(a, b)

	_, ok := c.InterfaceDelete(a)
	require.True(t, ok)

	bi, ok := c.InterfaceGet(b)
	require.True(t, ok)
	assert.Nil(t, bi.Paired, "deleting one half of a pair must clear the other half's reference")
}

func TestInterfaceIndexesInVRF(t *testing.T) {
	c := New()
	c.NeighborPut(newTestNeighbor(3, 5, "10.0.0.1"))
	c.NeighborPut(newTestNeighbor(3, 6, "10.0.0.2"))
	c.NeighborPut(newTestNeighbor(0, 5, "10.0.0.3"))

	got := c.InterfaceIndexesInVRF(3)
	assert.ElementsMatch(t, []int{5, 6}, got)
}
