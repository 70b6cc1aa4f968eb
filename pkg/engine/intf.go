package engine

import (
	"net"

	"github.com/kisy/nbrmgr/model"
)

// handleIntfEvent implements spec.md section 4.2.3. On add/update it upserts the interface
// record, preserving the VLAN id on admin-only messages and the paired reference; on delete it
// clears the counterpart's pairing and removes the record. A VLAN-only update stores the new VLAN
// id and returns there; every other message then walks the reverse index for (vrf, ifindex) and applies handleIfStateChange to every neighbor there, deleting neighbors
// on interfaces that are now gone or admin-down (subject to invariant 4). Grounded on
// nbr_mgr_proc.cpp's nbr_proc_intf_msg.
func (e *Engine) handleIntfEvent(entry model.InterfaceEntry) {
	s := e.Cache.Stats
	key := entry.Key()

	if !entry.IsOpDel {
		s.IntfAddMsgCnt++
		if existing, ok := e.Cache.InterfaceGet(key); ok {
			if entry.Flags == model.IntfVlanMsg {
				existing.VlanID = entry.VlanID
				return
			}
			if entry.Flags == model.IntfAdminMsg && existing.VlanID != 0 {
				entry.VlanID = existing.VlanID
			}
			entry.ParentOrChildVRFID = 0
			if existing.Paired != nil {
				entry.ParentOrChildVRFID = existing.Paired.VRFID
				entry.ParentOrChildIfindex = existing.Paired.Ifindex
			}
		}
		e.NPU.NotifyIntfStatus(model.OpCreate, entry)
		ifc := model.NewInterface(entry)
		if entry.ParentOrChildIfindex != 0 {
			paired := model.InterfaceKey{VRFID: entry.ParentOrChildVRFID, Ifindex: entry.ParentOrChildIfindex}
			ifc.Paired = &paired
		}
		e.Cache.InterfacePut(ifc)
	} else {
		s.IntfDelMsgCnt++
		e.NPU.NotifyIntfStatus(model.OpDelete, entry)
		e.Cache.InterfaceDelete(key)
	}

	e.Cache.NeighborWalkIfindex(entry.VRFID, entry.Ifindex, func(n *model.Neighbor) {
		e.handleIfStateChange(n, entry)
		if entry.IsOpDel || !entry.IsAdminUp {
			e.deleteNeighborOnIntfChange(n)
		}
	})
}

// handleIfStateChange mirrors nbr_data::handle_if_state_change: a RESOLVE-pending neighbor on a
// newly admin-up interface is re-resolved; an admin-down interface resets the neighbor's status
// to NONE so the next kernel event starts fresh.
func (e *Engine) handleIfStateChange(n *model.Neighbor, entry model.InterfaceEntry) {
	if entry.IsAdminUp {
		if n.Flags.Has(model.FlagResolve) && !n.Status.Has(model.NUDReachable) && !n.Status.Has(model.NUDPermanent) {
			wire := model.NeighborEntry{
				VRFID: n.Key.VRFID, Family: n.Key.Family, Ifindex: n.Key.Ifindex, ParentIf: n.ParentIf,
				Addr: net.ParseIP(n.Key.Addr),
			}
			e.triggerResolve(n, wire)
		}
		return
	}
	n.Status = model.NUDNone
}

func (e *Engine) deleteNeighborOnIntfChange(n *model.Neighbor) {
	entry := model.NeighborEntry{
		VRFID: n.Key.VRFID, Family: n.Key.Family, Ifindex: n.Key.Ifindex, ParentIf: n.ParentIf,
		Addr: net.ParseIP(n.Key.Addr), Status: model.NUDNone, MsgType: model.EvtDel,
	}
	e.publish(n, model.OpDelete, entry)
	e.Cache.NeighborRemove(n)
}
