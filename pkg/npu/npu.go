// Package npu defines the forwarding-plane programming seam described in spec.md section 6 as an
// external collaborator, plus a runnable default implementation. The daemon ships no real NPU SDK
// (none appears anywhere in the retrieved dependency pack) so LogAdapter stands in as the backend
// that makes the rest of the pipeline exercisable end to end.
package npu

import (
	"log"
	"net"
	"sync"

	"github.com/kisy/nbrmgr/model"
)

// Adapter is the forwarding-plane programming backend. Implementations absorb neighbor
// create/update/delete operations, interface status notifications, and answer whether a MAC is
// actually installed in hardware.
type Adapter interface {
	ProgramNPU(op model.Op, entry model.NeighborEntry) bool
	NotifyIntfStatus(op model.Op, entry model.InterfaceEntry)
	IsMACPresentInHW(mac net.HardwareAddr, ifindex int) (ok, present bool)
	GetAllNH(family model.Family) []model.NeighborEntry
}

// LogAdapter logs every operation it receives and reports every MAC as present, so the engine's
// hardware-MAC verification loop converges immediately unless a test overrides Present.
type LogAdapter struct {
	mu      sync.Mutex
	Present bool
	nh      map[model.Family][]model.NeighborEntry
}

func NewLogAdapter() *LogAdapter {
	return &LogAdapter{Present: true, nh: make(map[model.Family][]model.NeighborEntry)}
}

func (a *LogAdapter) ProgramNPU(op model.Op, entry model.NeighborEntry) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	log.Printf("npu: %s %s mac=%s if=%d", op, entry.Addr, entry.MAC, entry.Ifindex)
	list := a.nh[entry.Family]
	idx := -1
	for i, e := range list {
		if e.Key() == entry.Key() {
			idx = i
			break
		}
	}
	switch op {
	case model.OpCreate, model.OpUpdate:
		if idx >= 0 {
			list[idx] = entry
		} else {
			list = append(list, entry)
		}
	case model.OpDelete:
		if idx >= 0 {
			list = append(list[:idx], list[idx+1:]...)
		}
	}
	a.nh[entry.Family] = list
	return true
}

func (a *LogAdapter) NotifyIntfStatus(op model.Op, entry model.InterfaceEntry) {
	log.Printf("npu: intf %s vrf=%d if=%d up=%v", op, entry.VRFID, entry.Ifindex, entry.IsAdminUp)
}

func (a *LogAdapter) IsMACPresentInHW(mac net.HardwareAddr, ifindex int) (bool, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return true, a.Present
}

func (a *LogAdapter) GetAllNH(family model.Family) []model.NeighborEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.NeighborEntry, len(a.nh[family]))
	copy(out, a.nh[family])
	return out
}
