package engine

import (
	"net"

	"github.com/kisy/nbrmgr/model"
)

// handleFDBEvent implements spec.md section 4.2.2: find-or-create the MAC, apply the
// ADD/DEL transition, then notify every referencing neighbor. Grounded on
// nbr_mgr_proc.cpp's nbr_proc_fdb_msg.
func (e *Engine) handleFDBEvent(entry model.FDBEntry) {
	s := e.Cache.Stats
	key := entry.Key()

	if entry.MsgType == model.EvtAdd {
		s.FdbAddMsgCnt++
		m := e.Cache.MACGetOrCreate(key)
		if m.FDBType == model.FDBLearned && m.MbrIfIndex == entry.MbrIfIndex {
			return
		}
		if entry.MbrIfIndex != 0 {
			m.MbrIfIndex = entry.MbrIfIndex
			m.FDBType = model.FDBLearned
		} else {
			m.FDBType = model.FDBIgnore
		}
		e.notifyFDBChange(m, model.EvtAdd)
		return
	}

	s.FdbDelMsgCnt++
	m, ok := e.Cache.MACGet(key)
	if !ok {
		return
	}
	if m.Empty() {
		e.Cache.MACMaybeRemove(m)
		return
	}
	m.MbrIfIndex = 0
	m.FDBType = model.FDBIncomplete
	e.notifyFDBChange(m, model.EvtDel)
}

func (e *Engine) notifyFDBChange(m *model.MAC, evt model.EvtType) {
	for key := range m.Neighbors {
		n, ok := e.Cache.NeighborGet(key)
		if !ok {
			continue
		}
		e.handleFDBChangeForNeighbor(n, m, evt)
	}
}

// handleFDBChangeForNeighbor is nbr_data::handle_fdb_change: on MAC delete/stale, refresh a
// dynamic neighbor so it re-learns on the correct port; on MAC learn while FAILED, resolve again;
// on MAC learn while MAC_NOT_PRESENT, clear the flag and publish an UPDATE.
func (e *Engine) handleFDBChangeForNeighbor(n *model.Neighbor, m *model.MAC, evt model.EvtType) {
	entry := model.NeighborEntry{
		VRFID:      n.Key.VRFID,
		Family:     n.Key.Family,
		Ifindex:    n.Key.Ifindex,
		Addr:       net.ParseIP(n.Key.Addr),
		ParentIf:   n.ParentIf,
		Status:     n.Status,
		MbrIfIndex: m.MbrIfIndex,
		MsgType:    model.EvtAdd,
	}
	if n.MAC != nil {
		if mac, err := net.ParseMAC(n.MAC.Addr); err == nil {
			entry.MAC = mac
		}
	}

	if evt == model.EvtDel || n.Status.Has(model.NUDStale) {
		if !n.Status.Has(model.NUDPermanent) && !n.Status.Has(model.NUDFailed) && !n.Status.Has(model.NUDIncomplete) {
			n.Flags |= model.FlagRefresh
			e.Cache.Stats.MACTrigRefresh++
			e.triggerRefresh(n, entry)
		}
		return
	}

	if evt == model.EvtAdd && n.Status.Has(model.NUDFailed) {
		n.Flags |= model.FlagRefresh
		e.triggerResolve(n, entry)
	}

	if n.Flags.Has(model.FlagMACNotPresent) {
		n.Flags &^= model.FlagMACNotPresent
		n.RetryCnt = 0
		reachable := n.Status.Has(model.NUDReachable) || n.Status.Has(model.NUDStale) ||
			n.Status.Has(model.NUDDelay) || n.Status.Has(model.NUDPermanent)
		if !reachable {
			return
		}
	} else {
		if !n.Status.Has(model.NUDPermanent) && n.RetryCnt > 0 {
			n.RetryCnt = 0
			n.Flags &^= model.FlagRefresh
		}
		return
	}

	e.publish(n, model.OpUpdate, entry)
}
