// Package ingress is the event producer (C1): it subscribes to the kernel's neighbor, link and
// FDB notifications over netlink and translates each one into the tagged model.Message the
// processor in pkg/engine understands, the same "netlink subscribe -> translate -> channel" shape
// the teacher's pkg/monitor uses for conntrack events, generalized from a single event type to
// the spec's tagged union and from polling (neighbor.go's 5s ticker) to live subscriptions.
package ingress

import (
	"context"
	"log"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/kisy/nbrmgr/model"
)

// Producer runs the netlink subscriptions and feeds translated messages onto Out. Out is owned
// by the caller (sized per spec.md section 5's bounded main-queue requirement); Producer only
// ever sends, never closes it.
type Producer struct {
	Out     chan<- model.Message
	VRF     *VRFResolver
	Verbose bool

	// AutoRefreshOnStale is stamped onto every neighbor entry this producer emits, mirroring the
	// per-interface "auto_refresh_on_stale_enabled" config flag spec.md section 6 carries on the
	// wire payload. The retrieved netlink API exposes no such per-link attribute, so it is sourced
	// from static configuration instead (cmd/nbrmgrd's Config.AutoRefreshOnStale).
	AutoRefreshOnStale bool
}

func NewProducer(out chan<- model.Message, vrf *VRFResolver) *Producer {
	return &Producer{Out: out, VRF: vrf}
}

// Run subscribes to link and neighbor (v4/v6/bridge) notifications and translates each into a
// model.Message until ctx is cancelled or a subscription channel closes. A subscription failure
// is returned to the caller unretried (cmd/nbrmgrd treats it as fatal).
func (p *Producer) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	linkCh := make(chan netlink.LinkUpdate, 256)
	if err := netlink.LinkSubscribe(linkCh, done); err != nil {
		return err
	}

	neighCh := make(chan netlink.NeighUpdate, 1024)
	if err := netlink.NeighSubscribeWithOptions(neighCh, done, netlink.NeighSubscribeOptions{
		ListExisting: true,
	}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case lu, ok := <-linkCh:
			if !ok {
				return nil
			}
			p.handleLink(lu)
		case nu, ok := <-neighCh:
			if !ok {
				return nil
			}
			p.handleNeigh(nu)
		}
	}
}

func (p *Producer) handleLink(lu netlink.LinkUpdate) {
	if _, ok := lu.Link.(*netlink.Vrf); ok {
		if err := p.VRF.Refresh(); err != nil {
			log.Printf("ingress: VRF table refresh failed: %v", err)
		}
	}
	attrs := lu.Link.Attrs()
	entry := model.InterfaceEntry{
		VRFID:     p.VRF.Lookup(attrs.Index),
		Ifindex:   attrs.Index,
		IsAdminUp: attrs.Flags&net.FlagUp != 0,
		IsBridge:  lu.Link.Type() == "bridge",
		IsOpDel:   lu.Header.Type == unix.RTM_DELLINK,
	}
	if vlan, ok := lu.Link.(*netlink.Vlan); ok {
		entry.VlanID = vlan.VlanId
		entry.ParentOrChildIfindex = vlan.ParentIndex
	}
	p.send(model.Message{Tag: model.MsgIntfEvt, Intf: entry})
}

func (p *Producer) handleNeigh(nu netlink.NeighUpdate) {
	n := nu.Neigh
	msgType := model.EvtAdd
	if nu.Type == unix.RTM_DELNEIGH {
		msgType = model.EvtDel
	}

	if n.Family == unix.AF_BRIDGE {
		p.send(model.Message{Tag: model.MsgFDBEvt, FDB: model.FDBEntry{
			Ifindex:    n.LinkIndex,
			MAC:        n.HardwareAddr,
			MbrIfIndex: n.LinkIndex,
			MsgType:    msgType,
		}})
		return
	}

	family := model.FamilyINET4
	if n.Family == unix.AF_INET6 {
		family = model.FamilyINET6
	}

	p.send(model.Message{Tag: model.MsgNbrEvt, Nbr: model.NeighborEntry{
		VRFID:              p.VRF.Lookup(n.LinkIndex),
		Family:             family,
		Ifindex:            n.LinkIndex,
		ParentIf:           n.LinkIndex,
		Addr:               n.IP,
		MAC:                n.HardwareAddr,
		Status:             model.NUD(n.State),
		MsgType:            msgType,
		AutoRefreshOnStale: p.AutoRefreshOnStale,
	}})
}

func (p *Producer) send(msg model.Message) {
	select {
	case p.Out <- msg:
	default:
		if p.Verbose {
			log.Printf("ingress: main queue full, dropping %v", msg.Tag)
		}
	}
}
