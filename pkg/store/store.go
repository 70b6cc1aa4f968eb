// Package store holds the three owning caches (neighbor, MAC, interface) plus the non-owning
// reverse index, and the counters the observability surface exports. Exactly one goroutine — the
// processor in pkg/engine — mutates a Cache; everything else (the HTTP dump surface, tests) reads
// it through RLock. This mirrors the single-writer-plus-shared-mutex design spec.md's Concurrency
// & Resource Model section calls for once caches are shared across goroutines.
package store

import (
	"sync"

	"github.com/kisy/nbrmgr/model"
)

// Cache owns the neighbor/MAC/interface stores and their reverse index. Callers that need a
// multi-step transaction (the processor dispatching one message) take the embedded lock once for
// the whole operation; the dump/metrics surfaces take RLock for a point-in-time snapshot.
type Cache struct {
	sync.RWMutex

	v4   map[uint32]map[model.NeighborKey]*model.Neighbor
	v6   map[uint32]map[model.NeighborKey]*model.Neighbor
	mac  map[int]map[string]*model.MAC
	intf map[model.InterfaceKey]*model.Interface
	rev  map[model.InterfaceKey]map[model.NeighborKey]*model.Neighbor

	Stats *Stats
}

func New() *Cache {
	return &Cache{
		v4:    make(map[uint32]map[model.NeighborKey]*model.Neighbor),
		v6:    make(map[uint32]map[model.NeighborKey]*model.Neighbor),
		mac:   make(map[int]map[string]*model.MAC),
		intf:  make(map[model.InterfaceKey]*model.Interface),
		rev:   make(map[model.InterfaceKey]map[model.NeighborKey]*model.Neighbor),
		Stats: NewStats(),
	}
}

func (c *Cache) neighborDB(f model.Family) map[uint32]map[model.NeighborKey]*model.Neighbor {
	if f == model.FamilyINET6 {
		return c.v6
	}
	return c.v4
}

func revKey(k model.NeighborKey) model.InterfaceKey {
	return model.InterfaceKey{VRFID: k.VRFID, Ifindex: k.Ifindex}
}

// NeighborGet looks up a neighbor by its full key. Callers must hold at least RLock.
func (c *Cache) NeighborGet(key model.NeighborKey) (*model.Neighbor, bool) {
	db := c.neighborDB(key.Family)
	vm, ok := db[key.VRFID]
	if !ok {
		return nil, false
	}
	n, ok := vm[key]
	return n, ok
}

// NeighborPut inserts or overwrites a neighbor and maintains the reverse index (invariant 2).
// Callers must hold Lock.
func (c *Cache) NeighborPut(n *model.Neighbor) {
	db := c.neighborDB(n.Key.Family)
	vm, ok := db[n.Key.VRFID]
	if !ok {
		vm = make(map[model.NeighborKey]*model.Neighbor)
		db[n.Key.VRFID] = vm
	}
	vm[n.Key] = n

	rk := revKey(n.Key)
	rm, ok := c.rev[rk]
	if !ok {
		rm = make(map[model.NeighborKey]*model.Neighbor)
		c.rev[rk] = rm
	}
	rm[n.Key] = n
}

// NeighborRemove deletes a neighbor from the owning store and the reverse index, and releases its
// MAC reference (removing the MAC if it becomes orphaned and is not LEARNED, per spec.md section
// 3 "A MAC is removed only when..."). Returns false without modifying anything if invariant 4
// applies: a Neighbor with RESOLVE set is never evicted here. Callers must hold Lock.
func (c *Cache) NeighborRemove(n *model.Neighbor) bool {
	if n.Flags.Has(model.FlagResolve) {
		return false
	}

	db := c.neighborDB(n.Key.Family)
	if vm, ok := db[n.Key.VRFID]; ok {
		delete(vm, n.Key)
		if len(vm) == 0 {
			delete(db, n.Key.VRFID)
		}
	}

	rk := revKey(n.Key)
	if rm, ok := c.rev[rk]; ok {
		delete(rm, n.Key)
		if len(rm) == 0 {
			delete(c.rev, rk)
		}
	}

	if n.MAC != nil {
		if m, ok := c.MACGet(*n.MAC); ok {
			m.RemoveNeighbor(n.Key)
			c.MACMaybeRemove(m)
		}
		n.MAC = nil
	}
	return true
}

// NeighborWalkIfindex invokes fn for every neighbor currently indexed under (vrf, ifindex). fn may
// mutate the neighbor in place and may call back into Cache methods that touch the reverse index
// for this key (such as NeighborRemove): the walk iterates over a copy of the index taken first.
// Callers must hold Lock.
func (c *Cache) NeighborWalkIfindex(vrf uint32, ifindex int, fn func(*model.Neighbor)) {
	rk := model.InterfaceKey{VRFID: vrf, Ifindex: ifindex}
	rm, ok := c.rev[rk]
	if !ok {
		return
	}
	snapshot := make([]*model.Neighbor, 0, len(rm))
	for _, n := range rm {
		snapshot = append(snapshot, n)
	}
	for _, n := range snapshot {
		fn(n)
	}
}

// NeighborWalkVRF invokes fn for every neighbor belonging to vrf, across every interface. Callers
// must hold Lock.
func (c *Cache) NeighborWalkVRF(vrf uint32, fn func(*model.Neighbor)) {
	var snapshot []*model.Neighbor
	for rk, rm := range c.rev {
		if rk.VRFID != vrf {
			continue
		}
		for _, n := range rm {
			snapshot = append(snapshot, n)
		}
	}
	for _, n := range snapshot {
		fn(n)
	}
}

// NeighborWalkAll invokes fn for every neighbor in every VRF. Used by global flush.
func (c *Cache) NeighborWalkAll(fn func(*model.Neighbor)) {
	var snapshot []*model.Neighbor
	for _, rm := range c.rev {
		for _, n := range rm {
			snapshot = append(snapshot, n)
		}
	}
	for _, n := range snapshot {
		fn(n)
	}
}

// InterfaceIndexesInVRF returns the set of ifindexes that currently have at least one neighbor
// reverse-indexed under vrf — used to synthesize interface-delete events for a VRF flush.
func (c *Cache) InterfaceIndexesInVRF(vrf uint32) []int {
	var out []int
	for rk := range c.rev {
		if rk.VRFID == vrf {
			out = append(out, rk.Ifindex)
		}
	}
	return out
}

// MACGet looks up a MAC entry by key.
func (c *Cache) MACGet(key model.MACKey) (*model.MAC, bool) {
	im, ok := c.mac[key.Ifindex]
	if !ok {
		return nil, false
	}
	m, ok := im[key.Addr]
	return m, ok
}

// MACGetOrCreate returns the existing MAC for key, or creates and stores a new, empty one.
func (c *Cache) MACGetOrCreate(key model.MACKey) *model.MAC {
	if m, ok := c.MACGet(key); ok {
		return m
	}
	im, ok := c.mac[key.Ifindex]
	if !ok {
		im = make(map[string]*model.MAC)
		c.mac[key.Ifindex] = im
	}
	m := model.NewMAC(key)
	im[key.Addr] = m
	return m
}

// MACMaybeRemove removes m from the store iff it has no referencing neighbors and its fdb_type is
// not LEARNED, per spec.md section 3's MAC ownership rule. Returns true if removed.
func (c *Cache) MACMaybeRemove(m *model.MAC) bool {
	if !m.Empty() || m.FDBType == model.FDBLearned {
		return false
	}
	im, ok := c.mac[m.Key.Ifindex]
	if !ok {
		return true
	}
	delete(im, m.Key.Addr)
	if len(im) == 0 {
		delete(c.mac, m.Key.Ifindex)
	}
	return true
}

// InterfaceGet looks up an interface by key.
func (c *Cache) InterfaceGet(key model.InterfaceKey) (*model.Interface, bool) {
	ifc, ok := c.intf[key]
	return ifc, ok
}

// InterfaceGetOrCreate returns the existing interface for key, creating an admin-down placeholder
// if absent — used by PairInterfaces when a neighbor event references an interface C2 hasn't
// seen an INTF_EVT for yet.
func (c *Cache) InterfaceGetOrCreate(key model.InterfaceKey) *model.Interface {
	if ifc, ok := c.intf[key]; ok {
		return ifc
	}
	ifc := &model.Interface{Key: key}
	c.intf[key] = ifc
	return ifc
}

// InterfacePut stores ifc under its key, overwriting any existing record.
func (c *Cache) InterfacePut(ifc *model.Interface) {
	c.intf[ifc.Key] = ifc
}

// InterfaceDelete removes an interface and clears the counterpart's paired reference, preserving
// invariant 3 (pairing symmetry). Returns the removed interface, if any.
func (c *Cache) InterfaceDelete(key model.InterfaceKey) (*model.Interface, bool) {
	ifc, ok := c.intf[key]
	if !ok {
		return nil, false
	}
	if ifc.Paired != nil {
		if peer, ok := c.intf[*ifc.Paired]; ok {
			peer.Paired = nil
		}
	}
	delete(c.intf, key)
	return ifc, true
}

// PairInterfaces writes both halves of the paired reference atomically, restoring invariant 3 if
// the two interfaces were unpaired or mis-paired. Interfaces that don't exist yet are created as
// admin-down placeholders, mirroring InterfaceGetOrCreate.
func (c *Cache) PairInterfaces(a, b model.InterfaceKey) {
	ai := c.InterfaceGetOrCreate(a)
	bi := c.InterfaceGetOrCreate(b)
	if ai.Paired != nil && *ai.Paired == b && bi.Paired != nil && *bi.Paired == a {
		return
	}
	bb := b
	aa := a
	ai.Paired = &bb
	bi.Paired = &aa
}

// Snapshot is a point-in-time, JSON-friendly copy of the three caches for the dump surface.
// Callers must hold at least RLock while building it (the web handler does).
type Snapshot struct {
	Neighbors  []*model.Neighbor  `json:"neighbors"`
	MACs       []*model.MAC       `json:"macs"`
	Interfaces []*model.Interface `json:"interfaces"`
	Stats      StatsSnapshot      `json:"stats"`
}

func (c *Cache) Snapshot() Snapshot {
	s := Snapshot{Stats: c.Stats.Snapshot()}
	for _, vm := range c.v4 {
		for _, n := range vm {
			cp := *n
			s.Neighbors = append(s.Neighbors, &cp)
		}
	}
	for _, vm := range c.v6 {
		for _, n := range vm {
			cp := *n
			s.Neighbors = append(s.Neighbors, &cp)
		}
	}
	for _, im := range c.mac {
		for _, m := range im {
			cp := *m
			cp.Neighbors = make(map[model.NeighborKey]struct{}, len(m.Neighbors))
			for k := range m.Neighbors {
				cp.Neighbors[k] = struct{}{}
			}
			s.MACs = append(s.MACs, &cp)
		}
	}
	for _, ifc := range c.intf {
		cp := *ifc
		s.Interfaces = append(s.Interfaces, &cp)
	}
	return s
}
