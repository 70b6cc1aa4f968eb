// Package model defines the neighbor manager's core data types: the Neighbor, MAC and
// Interface entities, their wire-level counterparts, and the small bitsets/enums the state
// machine in pkg/engine dispatches on.
package model

import (
	"fmt"
	"net"
	"strings"

	"github.com/vishvananda/netlink"
)

// NUD mirrors the kernel's neighbor unreachability detection state. The bit values are taken
// directly from github.com/vishvananda/netlink rather than redeclared, since the kernel ABI
// and the library constants are the same numbers.
type NUD int

const (
	NUDNone       NUD = 0x00
	NUDIncomplete NUD = NUD(netlink.NUD_INCOMPLETE)
	NUDReachable  NUD = NUD(netlink.NUD_REACHABLE)
	NUDStale      NUD = NUD(netlink.NUD_STALE)
	NUDDelay      NUD = NUD(netlink.NUD_DELAY)
	NUDProbe      NUD = NUD(netlink.NUD_PROBE)
	NUDFailed     NUD = NUD(netlink.NUD_FAILED)
	NUDNoARP      NUD = NUD(netlink.NUD_NOARP)
	NUDPermanent  NUD = NUD(netlink.NUD_PERMANENT)
)

func (s NUD) Has(bit NUD) bool { return s&bit != 0 }

func (s NUD) String() string {
	switch {
	case s.Has(NUDPermanent):
		return "PERMANENT"
	case s.Has(NUDNoARP):
		return "NOARP"
	case s.Has(NUDFailed):
		return "FAILED"
	case s.Has(NUDProbe):
		return "PROBE"
	case s.Has(NUDDelay):
		return "DELAY"
	case s.Has(NUDStale):
		return "STALE"
	case s.Has(NUDReachable):
		return "REACHABLE"
	case s.Has(NUDIncomplete):
		return "INCOMPLETE"
	default:
		return "NONE"
	}
}

// Family identifies the address family a neighbor belongs to. BRIDGE is used for FDB-sourced
// entries that reflect onto L3 neighbors through a paired interface.
type Family int

const (
	FamilyINET4 Family = iota + 1
	FamilyINET6
	FamilyBridge
)

func (f Family) String() string {
	switch f {
	case FamilyINET4:
		return "IPv4"
	case FamilyINET6:
		return "IPv6"
	case FamilyBridge:
		return "Bridge"
	default:
		return "unknown"
	}
}

// NbrFlag is the per-neighbor bitset described in spec.md section 3.
type NbrFlag uint32

const (
	FlagResolve NbrFlag = 1 << iota
	FlagRefresh
	FlagRefreshForMACLearn
	FlagMACNotPresent
	FlagMACChange
)

func (f NbrFlag) Has(bit NbrFlag) bool { return f&bit != 0 }

func (f NbrFlag) String() string {
	if f == 0 {
		return "-"
	}
	var names []string
	for bit, name := range map[NbrFlag]string{
		FlagResolve:            "RESOLVE",
		FlagRefresh:            "REFRESH",
		FlagRefreshForMACLearn: "REFRESH_MAC_LEARN",
		FlagMACNotPresent:      "MAC_NOT_PRESENT",
		FlagMACChange:          "MAC_CHANGE",
	} {
		if f.Has(bit) {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// FDBType is the learn state of a MAC entry as observed from the kernel's forwarding database.
type FDBType int

const (
	FDBLearned FDBType = iota
	FDBIgnore
	FDBIncomplete
)

func (t FDBType) String() string {
	switch t {
	case FDBLearned:
		return "LEARNED"
	case FDBIgnore:
		return "IGNORE"
	case FDBIncomplete:
		return "INCOMPLETE"
	default:
		return "?"
	}
}

// Op is the operation dispatched to the NPU programming backend.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "CREATE"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	default:
		return "?"
	}
}

// EvtType distinguishes an ADD from a DEL notification for neighbor/FDB/interface messages.
type EvtType int

const (
	EvtAdd EvtType = iota
	EvtDel
)

// NeighborKey uniquely identifies a Neighbor by (vrf, family, ifindex, ip).
type NeighborKey struct {
	VRFID   uint32
	Family  Family
	Ifindex int
	Addr    string
}

func (k NeighborKey) String() string {
	return fmt.Sprintf("vrf%d/%s/if%d/%s", k.VRFID, k.Family, k.Ifindex, k.Addr)
}

// MarshalText lets a NeighborKey serve as a JSON object key (MAC.Neighbors in the dump surface).
func (k NeighborKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// MACKey uniquely identifies a MAC entry by (ifindex, mac address).
type MACKey struct {
	Ifindex int
	Addr    string
}

func (k MACKey) String() string {
	return fmt.Sprintf("if%d/%s", k.Ifindex, k.Addr)
}

// InterfaceKey uniquely identifies an Interface by (vrf, ifindex).
type InterfaceKey struct {
	VRFID   uint32
	Ifindex int
}

func (k InterfaceKey) String() string {
	return fmt.Sprintf("vrf%d/if%d", k.VRFID, k.Ifindex)
}

var zeroMAC net.HardwareAddr = make(net.HardwareAddr, 6)

// IsZeroMAC reports whether addr is absent or all-zero, matching the C++ original's g_zero_mac
// comparisons.
func IsZeroMAC(addr net.HardwareAddr) bool {
	if len(addr) == 0 {
		return true
	}
	if len(addr) != 6 {
		return false
	}
	return addr.String() == zeroMAC.String()
}

// NeighborEntry is the wire-level payload carried by NETLINK_NBR_EVT / RPC_NBR_REQ messages -
// fully decoded by the event ingress layer before it ever reaches the processor.
type NeighborEntry struct {
	VRFID              uint32
	VRFName            string
	Family             Family
	Addr               net.IP
	MAC                net.HardwareAddr
	Ifindex            int
	ParentIf           int
	MbrIfIndex         int
	Expire             uint64
	Flags              NbrFlag
	Status             NUD
	AutoRefreshOnStale bool
	MsgType            EvtType
}

func (e NeighborEntry) Key() NeighborKey {
	return NeighborKey{VRFID: e.VRFID, Family: e.Family, Ifindex: e.Ifindex, Addr: e.Addr.String()}
}

func (e NeighborEntry) MACKey() MACKey {
	return MACKey{Ifindex: e.ParentIf, Addr: e.MAC.String()}
}

// InterfaceEntry is the wire-level payload carried by NETLINK_INTF_EVT messages.
type InterfaceEntry struct {
	VRFID     uint32
	Ifindex   int
	Flags     int // bitset: IntfAdminMsg=1, IntfVlanMsg=2
	IsAdminUp bool
	IsBridge  bool
	VlanID    int
	IsOpDel   bool

	// Set by pkg/ingress to a VLAN link's parent ifindex, and by the processor from an existing
	// record's paired reference before the record is rebuilt.
	ParentOrChildVRFID   uint32
	ParentOrChildIfindex int
}

const (
	IntfAdminMsg = 0x1
	IntfVlanMsg  = 0x2
)

func (e InterfaceEntry) Key() InterfaceKey {
	return InterfaceKey{VRFID: e.VRFID, Ifindex: e.Ifindex}
}

// FlushEntry is the wire-level payload carried by FLUSH messages.
type FlushEntry struct {
	VRFID   uint32
	Ifindex int
}

// Neighbor is the store-owned, mutable state for a single neighbor entry.
type Neighbor struct {
	Key      NeighborKey
	VRFName  string
	ParentIf int

	Status NUD
	Flags  NbrFlag

	RetryCnt                   int
	FailedCnt                  int
	RefreshCnt                 int
	RefreshForMACLearnRetryCnt int

	Published           bool
	LastStatusPublished NUD

	MAC *MACKey
}

func NewNeighbor(entry NeighborEntry) *Neighbor {
	return &Neighbor{
		Key:     entry.Key(),
		VRFName: entry.VRFName,
	}
}

// MAC is the store-owned state for a single (ifindex, mac) FDB entry.
type MAC struct {
	Key        MACKey
	MbrIfIndex int
	FDBType    FDBType
	Neighbors  map[NeighborKey]struct{}
}

func NewMAC(key MACKey) *MAC {
	return &MAC{Key: key, FDBType: FDBIncomplete, Neighbors: make(map[NeighborKey]struct{})}
}

func (m *MAC) IsValid() bool { return m.MbrIfIndex != 0 }

func (m *MAC) AddNeighbor(k NeighborKey)    { m.Neighbors[k] = struct{}{} }
func (m *MAC) RemoveNeighbor(k NeighborKey) { delete(m.Neighbors, k) }
func (m *MAC) Empty() bool                  { return len(m.Neighbors) == 0 }

// Interface is the store-owned state for a single (vrf, ifindex) interface.
type Interface struct {
	Key       InterfaceKey
	IsAdminUp bool
	IsBridge  bool
	VlanID    int
	Paired    *InterfaceKey
}

func NewInterface(entry InterfaceEntry) *Interface {
	return &Interface{
		Key:       entry.Key(),
		IsAdminUp: entry.IsAdminUp,
		IsBridge:  entry.IsBridge,
		VlanID:    entry.VlanID,
	}
}

// MsgTag is the inbound message discriminant from spec.md section 4.1: a tagged union of
// {intf_evt, nbr_evt, fdb_evt, resolve_req, flush_req, dump_req}.
type MsgTag int

const (
	MsgIntfEvt MsgTag = iota
	MsgNbrEvt
	MsgFDBEvt
	MsgResolveReq
	MsgFlushReq
	MsgDumpReq
)

// FDBEntry is the wire-level payload carried by NETLINK_FDB_EVT messages.
type FDBEntry struct {
	Ifindex    int
	MAC        net.HardwareAddr
	MbrIfIndex int
	MsgType    EvtType
}

func (e FDBEntry) Key() MACKey {
	return MACKey{Ifindex: e.Ifindex, Addr: e.MAC.String()}
}

// Message is the single envelope every component enqueues onto the main queue; exactly one of
// the typed fields is populated, selected by Tag.
type Message struct {
	Tag MsgTag

	Intf  InterfaceEntry
	Nbr   NeighborEntry
	FDB   FDBEntry
	Flush FlushEntry

	// Dump, when non-nil, receives the rendered snapshot; closed by the processor once written.
	Dump chan string
}

// DirectiveKind distinguishes the three outbound kernel commands from spec.md section 4.2.6.
type DirectiveKind int

const (
	DirectiveResolve DirectiveKind = iota
	DirectiveRefresh
	DirectiveDelayRefresh
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveResolve:
		return "RESOLVE"
	case DirectiveRefresh:
		return "REFRESH"
	case DirectiveDelayRefresh:
		return "DELAY_REFRESH"
	default:
		return "?"
	}
}

// Directive carries a fully-populated Neighbor entry to one of the two paced resolver queues
// (C3 for Resolve/Refresh, C4 for DelayRefresh).
type Directive struct {
	Kind  DirectiveKind
	Entry NeighborEntry
}
