// Package kernel dispatches resolve/refresh directives to the OS neighbor subsystem. It is the
// "outbound to kernel" collaborator of spec.md section 6.
package kernel

import (
	"log"

	"github.com/kisy/nbrmgr/model"
	"github.com/vishvananda/netlink"
)

// Adapter issues the two kernel-facing commands the directive resolvers (pkg/resolver) drain
// their queues into.
type Adapter interface {
	ResolveNeighbor(entry model.NeighborEntry) error
	RefreshNeighbor(entry model.NeighborEntry) error
}

// NetlinkAdapter resolves/refreshes a neighbor by writing it back into the kernel's neighbor
// table with NeighSet, the same call libnetwork's osl package uses to add/refresh a neighbor
// entry. Both commands issue the same NeighSet with state NUD_INCOMPLETE, which asks the kernel to
// probe reachability again; resolve and refresh differ only in the line they log.
type NetlinkAdapter struct{}

func NewNetlinkAdapter() *NetlinkAdapter { return &NetlinkAdapter{} }

func (a *NetlinkAdapter) ResolveNeighbor(entry model.NeighborEntry) error {
	return a.set(entry, true)
}

func (a *NetlinkAdapter) RefreshNeighbor(entry model.NeighborEntry) error {
	return a.set(entry, false)
}

func (a *NetlinkAdapter) set(entry model.NeighborEntry, broadcast bool) error {
	family := netlink.FAMILY_V4
	if entry.Family == model.FamilyINET6 {
		family = netlink.FAMILY_V6
	}
	n := &netlink.Neigh{
		LinkIndex: entry.Ifindex,
		Family:    family,
		State:     netlink.NUD_INCOMPLETE,
		IP:        entry.Addr,
	}
	if broadcast {
		log.Printf("kernel: resolve %s on if%d", entry.Addr, entry.Ifindex)
	} else {
		log.Printf("kernel: refresh %s on if%d", entry.Addr, entry.Ifindex)
	}
	return netlink.NeighSet(n)
}
