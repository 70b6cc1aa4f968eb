package ingress

import (
	"sync"

	"github.com/vishvananda/netlink"
)

// VRFResolver maps an ifindex to the routing-table id of the VRF device that enslaves it,
// defaulting to 0 (the default VRF) for everything else. The kernel only exposes this as the
// link's master ifindex, so the resolver keeps a small cache refreshed from netlink.LinkList
// rather than walking the master chain on every event.
type VRFResolver struct {
	mu      sync.RWMutex
	table   map[int]uint32 // link ifindex -> vrf table id
	vrfByIf map[int]uint32 // vrf device ifindex -> table id
}

func NewVRFResolver() *VRFResolver {
	return &VRFResolver{
		table:   make(map[int]uint32),
		vrfByIf: make(map[int]uint32),
	}
}

// Refresh rebuilds the ifindex -> VRF table mapping from the current link set. Called once at
// startup and again whenever a link add/delete notification arrives for a VRF device.
func (r *VRFResolver) Refresh() error {
	links, err := netlink.LinkList()
	if err != nil {
		return err
	}

	vrfByIf := make(map[int]uint32)
	for _, l := range links {
		if vrf, ok := l.(*netlink.Vrf); ok {
			vrfByIf[l.Attrs().Index] = vrf.Table
		}
	}

	table := make(map[int]uint32)
	for _, l := range links {
		master := l.Attrs().MasterIndex
		if master == 0 {
			continue
		}
		if tableID, ok := vrfByIf[master]; ok {
			table[l.Attrs().Index] = tableID
		}
	}

	r.mu.Lock()
	r.table = table
	r.vrfByIf = vrfByIf
	r.mu.Unlock()
	return nil
}

// Lookup returns the VRF table id for ifindex, or 0 if it belongs to the default VRF (or isn't
// known yet).
func (r *VRFResolver) Lookup(ifindex int) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if vrf, ok := r.vrfByIf[ifindex]; ok {
		return vrf
	}
	return r.table[ifindex]
}
