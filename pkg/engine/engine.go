// Package engine implements the neighbor processor (C2): the single consumer of the main queue
// that owns the neighbor/MAC/interface caches and the per-neighbor state machine described in
// spec.md section 4.2. Structurally the dispatch loop is the teacher's conn_monitor.go
// single-goroutine select-over-channels pattern, generalized from one event channel to the
// tagged union of messages from pkg/ingress.
package engine

import (
	"context"
	"log"

	"github.com/kisy/nbrmgr/model"
	"github.com/kisy/nbrmgr/pkg/npu"
	"github.com/kisy/nbrmgr/pkg/store"
)

const defaultVRF = 0

// Engine is the sole mutator of the caches (spec.md section 5). All fields besides the channels
// are only ever touched from the goroutine running Run.
type Engine struct {
	Cache *store.Cache
	NPU   npu.Adapter

	ResolveQ chan<- model.Directive // to C3
	DelayQ   chan<- model.Directive // to C4

	Verbose bool

	MaxNbrRetry        int
	MaxRefreshMacLearn int
}

func New(cache *store.Cache, adapter npu.Adapter, resolveQ, delayQ chan<- model.Directive) *Engine {
	return &Engine{
		Cache:              cache,
		NPU:                adapter,
		ResolveQ:           resolveQ,
		DelayQ:             delayQ,
		MaxNbrRetry:        10,
		MaxRefreshMacLearn: 100,
	}
}

// Run dequeues one message at a time from in and dispatches it until ctx is cancelled or in is
// closed, matching spec.md section 4.2's "single cooperative loop".
func (e *Engine) Run(ctx context.Context, in <-chan model.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			e.dispatch(msg)
		}
	}
}

func (e *Engine) dispatch(msg model.Message) {
	e.Cache.Lock()
	defer e.Cache.Unlock()

	switch msg.Tag {
	case model.MsgIntfEvt:
		e.handleIntfEvent(msg.Intf)
	case model.MsgNbrEvt, model.MsgResolveReq:
		e.handleNbrEvent(msg.Nbr)
	case model.MsgFDBEvt:
		e.handleFDBEvent(msg.FDB)
	case model.MsgFlushReq:
		e.handleFlush(msg.Flush)
	case model.MsgDumpReq:
		e.handleDump(msg.Dump)
	}
}

func (e *Engine) debugf(format string, args ...any) {
	if e.Verbose {
		log.Printf(format, args...)
	}
}

// interfaceUp reports whether (vrf, ifindex) exists and is admin-up; spec.md section 4.2.6 gates
// every directive on this check, and the ADD handler's admin-down guard (step 2) uses it too.
func (e *Engine) interfaceUp(vrf uint32, ifindex int) bool {
	ifc, ok := e.Cache.InterfaceGet(model.InterfaceKey{VRFID: vrf, Ifindex: ifindex})
	return ok && ifc.IsAdminUp
}

// issueDirective gates on interfaceUp (spec.md section 4.2.6) and enqueues onto the matching
// paced queue, bumping the matching counter. Silently drops (and counts) when the gate fails,
// matching the "Interface missing / admin-down when issuing a directive" error policy.
func (e *Engine) issueDirective(n *model.Neighbor, kind model.DirectiveKind, entry model.NeighborEntry) bool {
	if !e.interfaceUp(n.Key.VRFID, n.Key.Ifindex) {
		e.Cache.Stats.DirectiveSkippedCnt++
		return false
	}
	entry.VRFID = n.Key.VRFID
	entry.Ifindex = n.Key.Ifindex
	entry.Family = n.Key.Family
	d := model.Directive{Kind: kind, Entry: entry}
	switch kind {
	case model.DirectiveResolve:
		e.Cache.Stats.ResolveCnt++
		e.nonBlockingSend(e.ResolveQ, d)
	case model.DirectiveRefresh:
		e.Cache.Stats.RefreshCnt++
		e.nonBlockingSend(e.ResolveQ, d)
	case model.DirectiveDelayRefresh:
		e.Cache.Stats.DelayRefreshCnt++
		e.nonBlockingSend(e.DelayQ, d)
	}
	return true
}

// nonBlockingSend drops the directive and logs rather than stalling C2 if a resolver queue is
// full — spec.md section 5 accepts that synchronous calls into adapters may stall the pipeline,
// but an unbounded block on a peer goroutine's queue is a self-inflicted deadlock risk the
// teacher's own bounded-channel style (conn_monitor.go's buffered evCh) never takes either.
func (e *Engine) nonBlockingSend(q chan<- model.Directive, d model.Directive) {
	select {
	case q <- d:
	default:
		e.debugf("engine: directive queue full, dropping %s for %s", d.Kind, d.Entry.Addr)
	}
}

func (e *Engine) triggerResolve(n *model.Neighbor, entry model.NeighborEntry) bool {
	return e.issueDirective(n, model.DirectiveResolve, entry)
}

func (e *Engine) triggerRefresh(n *model.Neighbor, entry model.NeighborEntry) bool {
	if n.Status.Has(model.NUDPermanent) {
		return false
	}
	if !n.Flags.Has(model.FlagMACNotPresent) {
		n.Flags |= model.FlagRefresh
	}
	return e.issueDirective(n, model.DirectiveRefresh, entry)
}

func (e *Engine) triggerDelayRefresh(n *model.Neighbor, entry model.NeighborEntry) bool {
	if n.Status.Has(model.NUDPermanent) {
		return false
	}
	if !n.Flags.Has(model.FlagMACNotPresent) {
		n.Flags |= model.FlagRefresh
	}
	return e.issueDirective(n, model.DirectiveDelayRefresh, entry)
}

func (e *Engine) triggerRefreshForMACLearn(n *model.Neighbor, entry model.NeighborEntry) bool {
	if n.Status.Has(model.NUDPermanent) {
		return false
	}
	n.Flags |= model.FlagRefreshForMACLearn
	e.Cache.Stats.HWMacLearnRefreshCnt++
	return e.issueDirective(n, model.DirectiveDelayRefresh, entry)
}

// publish dispatches a neighbor op to the NPU adapter, auto-upgrading a CREATE to UPDATE once the
// entry has already been published (mirrors publish_entry). Unlike the original source, a
// successful DELETE clears Published rather than leaving it true, so invariant 4 ("published ==
// true implies last op was CREATE or UPDATE") actually holds.
func (e *Engine) publish(n *model.Neighbor, op model.Op, entry model.NeighborEntry) bool {
	if n.Published && op == model.OpCreate {
		op = model.OpUpdate
	}
	ok := e.NPU.ProgramNPU(op, entry)
	if ok {
		n.Published = op != model.OpDelete
	}
	e.Cache.Stats.NPUPrgMsgCnt++
	n.LastStatusPublished = entry.Status
	return ok
}

// pairInterfaces writes the symmetric L3<->L2 reference (spec.md section 4.5) between a router
// interface and its lower-layer interface. The lower layer always lives in the default VRF, per
// the original source's parent-interface lookups.
func (e *Engine) pairInterfaces(n *model.Neighbor) {
	l3 := model.InterfaceKey{VRFID: n.Key.VRFID, Ifindex: n.Key.Ifindex}
	l2 := model.InterfaceKey{VRFID: defaultVRF, Ifindex: n.ParentIf}
	e.Cache.PairInterfaces(l3, l2)
}
