package ingress

import (
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/kisy/nbrmgr/model"
)

// Bootstrap walks the current link, neighbor and FDB tables and feeds them through p.Out as
// synthetic ADD events so the processor starts from the kernel's actual state instead of an empty
// cache, adapting neighbor.go's periodic netlink.NeighList poll into a one-shot reconciliation
// pass run before the live subscriptions in Run start.
func (p *Producer) Bootstrap() error {
	if err := p.VRF.Refresh(); err != nil {
		return err
	}

	links, err := netlink.LinkList()
	if err != nil {
		return err
	}
	for _, l := range links {
		attrs := l.Attrs()
		entry := model.InterfaceEntry{
			VRFID:     p.VRF.Lookup(attrs.Index),
			Ifindex:   attrs.Index,
			IsAdminUp: attrs.Flags&net.FlagUp != 0,
			IsBridge:  l.Type() == "bridge",
		}
		if vlan, ok := l.(*netlink.Vlan); ok {
			entry.VlanID = vlan.VlanId
			entry.ParentOrChildIfindex = vlan.ParentIndex
		}
		p.send(model.Message{Tag: model.MsgIntfEvt, Intf: entry})
	}

	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		neighs, err := netlink.NeighList(0, family)
		if err != nil {
			continue
		}
		for _, n := range neighs {
			fam := model.FamilyINET4
			if family == netlink.FAMILY_V6 {
				fam = model.FamilyINET6
			}
			p.send(model.Message{Tag: model.MsgNbrEvt, Nbr: model.NeighborEntry{
				VRFID:              p.VRF.Lookup(n.LinkIndex),
				Family:             fam,
				Ifindex:            n.LinkIndex,
				ParentIf:           n.LinkIndex,
				Addr:               n.IP,
				MAC:                n.HardwareAddr,
				Status:             model.NUD(n.State),
				MsgType:            model.EvtAdd,
				AutoRefreshOnStale: p.AutoRefreshOnStale,
			}})
		}
	}

	fdb, err := netlink.NeighList(0, unix.AF_BRIDGE)
	if err == nil {
		for _, n := range fdb {
			p.send(model.Message{Tag: model.MsgFDBEvt, FDB: model.FDBEntry{
				Ifindex:    n.LinkIndex,
				MAC:        n.HardwareAddr,
				MbrIfIndex: n.LinkIndex,
				MsgType:    model.EvtAdd,
			}})
		}
	}

	return nil
}
