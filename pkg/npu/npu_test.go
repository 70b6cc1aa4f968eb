package npu

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisy/nbrmgr/model"
)

func entry(addr string, mac string) model.NeighborEntry {
	m, _ := net.ParseMAC(mac)
	return model.NeighborEntry{
		VRFID: 0, Family: model.FamilyINET4, Ifindex: 5,
		Addr: net.ParseIP(addr), MAC: m,
	}
}

func TestLogAdapterUpsertsRatherThanAccumulating(t *testing.T) {
	a := NewLogAdapter()

	a.ProgramNPU(model.OpCreate, entry("10.0.0.1", "aa:bb:cc:dd:ee:ff"))
	a.ProgramNPU(model.OpUpdate, entry("10.0.0.1", "bb:bb:cc:dd:ee:ff"))

	nh := a.GetAllNH(model.FamilyINET4)
	require.Len(t, nh, 1, "repeated CREATE/UPDATE for the same key must not accumulate duplicates")
	assert.Equal(t, "bb:bb:cc:dd:ee:ff", nh[0].MAC.String())
}

func TestLogAdapterDeleteRemovesOnlyMatchingKey(t *testing.T) {
	a := NewLogAdapter()

	a.ProgramNPU(model.OpCreate, entry("10.0.0.1", "aa:bb:cc:dd:ee:ff"))
	a.ProgramNPU(model.OpCreate, entry("10.0.0.2", "aa:bb:cc:dd:ee:ff"))
	a.ProgramNPU(model.OpDelete, entry("10.0.0.1", "aa:bb:cc:dd:ee:ff"))

	nh := a.GetAllNH(model.FamilyINET4)
	require.Len(t, nh, 1)
	assert.Equal(t, "10.0.0.2", nh[0].Addr.String())
}

func TestLogAdapterIsMACPresentInHWDefaultsPresent(t *testing.T) {
	a := NewLogAdapter()
	ok, present := a.IsMACPresentInHW(nil, 5)
	assert.True(t, ok)
	assert.True(t, present)

	a.Present = false
	_, present = a.IsMACPresentInHW(nil, 5)
	assert.False(t, present)
}
