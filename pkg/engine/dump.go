package engine

import (
	"fmt"
	"strings"
)

// handleDump renders the three caches in the human-readable form spec.md section 6 describes for
// the SIGUSR1/debug dump path, then closes out to signal completion to the caller (the
// SIGUSR1 handler in cmd/nbrmgrd waits on out). Because dispatch already holds the cache lock for
// the whole message, the render sees a fully consistent point-in-time snapshot.
func (e *Engine) handleDump(out chan string) {
	if out == nil {
		return
	}
	defer close(out)

	snap := e.Cache.Snapshot()
	var b strings.Builder

	fmt.Fprintf(&b, "neighbors: %d\n", len(snap.Neighbors))
	for _, n := range snap.Neighbors {
		fmt.Fprintf(&b, "  %s status=%s flags=%s published=%v retry=%d failed=%d\n",
			n.Key, n.Status, n.Flags, n.Published, n.RetryCnt, n.FailedCnt)
	}

	fmt.Fprintf(&b, "macs: %d\n", len(snap.MACs))
	for _, m := range snap.MACs {
		fmt.Fprintf(&b, "  %s mbr_ifindex=%d fdb_type=%s refs=%d\n",
			m.Key, m.MbrIfIndex, m.FDBType, len(m.Neighbors))
	}

	fmt.Fprintf(&b, "interfaces: %d\n", len(snap.Interfaces))
	for _, ifc := range snap.Interfaces {
		paired := "-"
		if ifc.Paired != nil {
			paired = ifc.Paired.String()
		}
		fmt.Fprintf(&b, "  %s admin_up=%v vlan=%d paired=%s\n",
			ifc.Key, ifc.IsAdminUp, ifc.VlanID, paired)
	}

	fmt.Fprintf(&b, "stats: %+v\n", snap.Stats)

	out <- b.String()
}
