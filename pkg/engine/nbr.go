package engine

import "github.com/kisy/nbrmgr/model"

// handleNbrEvent implements spec.md section 4.2.1 in full: the transient-state and admin-down
// guards, the proactive-resolve fast path, parent-interface learning, MAC-change detection and
// attach, the state-transition table, and the DEL-side RESOLVE handling. Grounded on
// nbr_mgr_proc.cpp's nbr_proc_nbr_msg + nbr_data::process_nbr_data.
func (e *Engine) handleNbrEvent(entry model.NeighborEntry) {
	if entry.MsgType == model.EvtDel {
		e.handleNbrDel(entry)
		return
	}
	e.handleNbrAdd(entry)
}

func (e *Engine) handleNbrAdd(entry model.NeighborEntry) {
	s := e.Cache.Stats
	if entry.Flags.Has(model.FlagResolve) {
		s.NbrRslvAddMsgCnt++
	} else {
		s.NbrAddMsgCnt++
	}
	s.NbrAddByStatus(entry.Status.String())

	key := entry.Key()
	n, exists := e.Cache.NeighborGet(key)
	if !exists {
		// 1. Transient states guard: DELAY/PROBE/FAILED never create a fresh entry.
		if entry.Status.Has(model.NUDDelay) || entry.Status.Has(model.NUDProbe) || entry.Status.Has(model.NUDFailed) {
			return
		}
		// 2. Admin-down guard for a brand new INCOMPLETE entry.
		if entry.Status == model.NUDIncomplete && !e.interfaceUp(entry.VRFID, entry.Ifindex) {
			return
		}
		n = model.NewNeighbor(entry)
		e.Cache.NeighborPut(n)
	}

	// 3. Proactive-resolve fast path.
	if entry.Flags.Has(model.FlagResolve) {
		n.Flags |= model.FlagResolve
		if n.Status == model.NUDNone || n.Status.Has(model.NUDFailed) {
			e.triggerResolve(n, entry)
		}
		return
	}

	// 4. Parent-interface learning + paired-interface link.
	if entry.ParentIf != 0 && n.ParentIf == 0 && entry.Ifindex != entry.ParentIf {
		n.ParentIf = entry.ParentIf
		e.pairInterfaces(n)
	}

	// Kernel quirk: both INCOMPLETE and REACHABLE set simultaneously is treated as REACHABLE.
	status := entry.Status
	if status.Has(model.NUDIncomplete) && status.Has(model.NUDReachable) {
		status = model.NUDReachable
	}

	// 5. MAC-change detection.
	macChanged := false
	if n.MAC != nil && len(entry.MAC) == 6 && !model.IsZeroMAC(entry.MAC) && n.MAC.Addr != entry.MAC.String() {
		if n.Published {
			e.publish(n, model.OpDelete, entry)
		}
		old := *n.MAC
		if m, ok := e.Cache.MACGet(old); ok {
			m.RemoveNeighbor(n.Key)
			e.Cache.MACMaybeRemove(m)
		}
		n.MAC = nil
		n.Flags |= model.FlagMACChange
		macChanged = true
	}

	// 6. MAC attach.
	if n.MAC == nil && len(entry.MAC) == 6 && !model.IsZeroMAC(entry.MAC) {
		mk := entry.MACKey()
		m := e.Cache.MACGetOrCreate(mk)
		m.AddNeighbor(n.Key)
		n.MAC = &mk
	}

	// 7. State transition table.
	e.applyNbrAddTransition(n, entry, status, macChanged)

	n.Status = status
}

func (e *Engine) applyNbrAddTransition(n *model.Neighbor, entry model.NeighborEntry, status model.NUD, macChanged bool) {
	s := e.Cache.Stats

	reachableClass := status.Has(model.NUDReachable) ||
		status.Has(model.NUDPermanent) ||
		(status.Has(model.NUDDelay) && n.Status.Has(model.NUDIncomplete)) ||
		(status.Has(model.NUDStale) && n.Status.Has(model.NUDIncomplete)) ||
		(n.Status.Has(model.NUDFailed) && status.Has(model.NUDStale)) ||
		(status.Has(model.NUDStale) && (!n.Published || macChanged))

	switch {
	case status.Has(model.NUDIncomplete):
		if !n.Flags.Has(model.FlagRefresh) {
			e.publish(n, model.OpCreate, entry)
		}

	case reachableClass:
		n.FailedCnt = 0
		mac, macValid := (*model.MAC)(nil), false
		if n.MAC != nil {
			if m, ok := e.Cache.MACGet(*n.MAC); ok {
				mac = m
				macValid = m.IsValid()
			}
		}

		switch {
		case macValid:
			hwCheck := false
			switch {
			case n.Flags.Has(model.FlagRefresh):
				if n.RefreshCnt > 0 {
					n.RefreshCnt = 0
					e.triggerRefresh(n, entry)
				} else {
					n.RefreshForMACLearnRetryCnt = 0
					n.Flags &^= model.FlagRefreshForMACLearn
					n.Flags &^= model.FlagRefresh
					e.publish(n, model.OpCreate, entry)
					hwCheck = true
				}
			case n.Flags.Has(model.FlagRefreshForMACLearn):
				n.Flags &^= model.FlagRefreshForMACLearn
				if n.RefreshForMACLearnRetryCnt == e.MaxRefreshMacLearn {
					e.publish(n, model.OpCreate, entry)
				} else {
					n.RefreshForMACLearnRetryCnt++
					hwCheck = true
				}
			default:
				entry.MbrIfIndex = mac.MbrIfIndex
				e.publish(n, model.OpCreate, entry)
				hwCheck = true
			}
			if hwCheck {
				e.verifyHWMac(n, entry)
			}
			n.RetryCnt = 0

		case status.Has(model.NUDPermanent):
			n.Flags |= model.FlagMACNotPresent

		default:
			s.RetryCnt++
			if n.RetryCnt == e.MaxNbrRetry {
				e.debugf("engine: MAC still not learnt for %s after %d retries", n.Key, e.MaxNbrRetry)
			} else {
				if !n.Flags.Has(model.FlagRefresh) {
					n.Flags |= model.FlagMACNotPresent
				}
				n.RetryCnt++
				e.triggerDelayRefresh(n, entry)
			}
		}

		if n.MAC != nil && n.Flags.Has(model.FlagMACNotPresent) {
			if m, ok := e.Cache.MACGet(*n.MAC); ok {
				entry.MbrIfIndex = m.MbrIfIndex
			}
			e.publish(n, model.OpCreate, entry)
		}

	case status.Has(model.NUDFailed):
		n.RetryCnt = 0
		n.Flags &^= model.FlagRefreshForMACLearn
		n.RefreshForMACLearnRetryCnt = 0

		switch {
		case n.Flags.Has(model.FlagRefresh):
			s.FailedTrigResolveCnt++
			if n.FailedCnt == e.MaxNbrRetry {
				if n.RefreshCnt > 0 {
					n.RefreshCnt = 0
					e.triggerResolve(n, entry)
				} else {
					n.Flags &^= model.FlagRefresh
					if n.Flags.Has(model.FlagResolve) {
						e.triggerResolve(n, entry)
					}
					e.publish(n, model.OpCreate, entry)
				}
			} else {
				n.RefreshCnt = 0
				n.FailedCnt++
				e.triggerResolve(n, entry)
			}
		case n.Flags.Has(model.FlagResolve):
			e.triggerResolve(n, entry)
			e.publish(n, model.OpCreate, entry)
		default:
			e.publish(n, model.OpCreate, entry)
		}
	}

	if status.Has(model.NUDStale) {
		if entry.AutoRefreshOnStale {
			if !n.Status.Has(model.NUDIncomplete) {
				n.Flags |= model.FlagRefresh
			}
			s.StaleTrigRefreshCnt++
			e.triggerRefresh(n, entry)
		}
		e.publish(n, model.OpCreate, entry)
	}
}

// verifyHWMac is spec.md section 4.2.5's hardware-MAC verification loop.
func (e *Engine) verifyHWMac(n *model.Neighbor, entry model.NeighborEntry) {
	ok, present := e.NPU.IsMACPresentInHW(entry.MAC, entry.ParentIf)
	if !ok {
		return
	}
	if !present {
		e.Cache.Stats.MACNotPresentCnt++
		e.triggerRefreshForMACLearn(n, entry)
		return
	}
	n.Flags &^= model.FlagRefreshForMACLearn
	n.RefreshForMACLearnRetryCnt = 0
}

func (e *Engine) handleNbrDel(entry model.NeighborEntry) {
	s := e.Cache.Stats
	if entry.Flags.Has(model.FlagResolve) {
		s.NbrRslvDelMsgCnt++
	} else {
		s.NbrDelMsgCnt++
	}

	key := entry.Key()
	n, ok := e.Cache.NeighborGet(key)
	if !ok {
		return
	}

	if entry.Flags.Has(model.FlagResolve) {
		if !n.Flags.Has(model.FlagResolve) {
			e.debugf("engine: unexpected resolve-stop for %s with no RESOLVE set", key)
			return
		}
		n.Flags &^= model.FlagResolve
		n.Flags &^= model.FlagRefresh
		if n.Status == model.NUDNone {
			e.Cache.NeighborRemove(n)
		}
		return
	}

	if n.Flags.Has(model.FlagResolve) {
		n.Status = model.NUDNone
		e.triggerResolve(n, entry)
		e.publish(n, model.OpDelete, entry)
		return
	}

	e.publish(n, model.OpDelete, entry)
	e.Cache.NeighborRemove(n)
}
