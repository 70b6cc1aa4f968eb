package engine

import (
	"net"

	"github.com/kisy/nbrmgr/model"
)

// handleFlush implements spec.md section 4.2.4's three flush shapes. A VRF flush (vrfid set,
// ifindex 0) synthesizes an interface-delete for every interface still holding neighbors in that
// VRF, reusing handleIntfEvent's own neighbor walk. An interface flush (ifindex set, any VRF)
// redirects to the paired counterpart whenever the flushed interface has a paired reference
// (the L3 and L2 halves of a pair are treated alike), then applies the per-status action table
// to every neighbor on the resulting interface. A global flush (both zero) applies
// the same table to every neighbor in every VRF. Grounded on nbr_mgr_proc.cpp's
// nbr_proc_flush_msg.
func (e *Engine) handleFlush(entry model.FlushEntry) {
	e.Cache.Stats.FlushMsgCnt++

	switch {
	case entry.VRFID != 0 && entry.Ifindex == 0:
		for _, ifindex := range e.Cache.InterfaceIndexesInVRF(entry.VRFID) {
			e.handleIntfEvent(model.InterfaceEntry{
				VRFID:   entry.VRFID,
				Ifindex: ifindex,
				IsOpDel: true,
			})
		}

	case entry.Ifindex != 0:
		vrf, ifindex := entry.VRFID, entry.Ifindex
		if ifc, ok := e.Cache.InterfaceGet(model.InterfaceKey{VRFID: vrf, Ifindex: ifindex}); ok && ifc.Paired != nil {
			vrf, ifindex = ifc.Paired.VRFID, ifc.Paired.Ifindex
		}
		e.Cache.NeighborWalkIfindex(vrf, ifindex, e.flushNeighbor)

	default:
		e.Cache.NeighborWalkAll(e.flushNeighbor)
	}
}

// flushNeighbor is the per-status action table from spec.md section 4.2.4: PERMANENT entries are
// left untouched; REFRESH-pending or still-INCOMPLETE entries just bump their refresh retry
// count; FAILED entries re-resolve; everything else gets a refresh.
func (e *Engine) flushNeighbor(n *model.Neighbor) {
	s := e.Cache.Stats

	if n.Status.Has(model.NUDPermanent) {
		return
	}

	entry := model.NeighborEntry{
		VRFID: n.Key.VRFID, Family: n.Key.Family, Ifindex: n.Key.Ifindex, ParentIf: n.ParentIf,
		Addr: net.ParseIP(n.Key.Addr), Status: n.Status,
	}

	switch {
	case n.Flags.Has(model.FlagRefresh) || n.Status.Has(model.NUDIncomplete):
		n.RefreshCnt++
		s.FlushNbrCnt++
		s.FlushSkipRefresh++

	case n.Status.Has(model.NUDFailed):
		e.triggerResolve(n, entry)
		s.FlushTrigRefreshCnt++
		s.FlushFailedResolve++

	default:
		e.triggerRefresh(n, entry)
		s.FlushTrigRefreshCnt++
		s.FlushRefresh++
	}
}
