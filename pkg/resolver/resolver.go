// Package resolver implements the paced directive drains described in spec.md sections 4.3/4.4
// (C3 the burst resolver, C4 the delayed resolver). Both share the same shape: drain a bounded
// queue at up to Burst directives per Interval, then sleep; FIFO order, no deduplication.
// Structurally this generalizes the teacher's conn_monitor.go select loop (ticker + channel
// drain in one goroutine) from a single event channel to a rate-limited directive drain.
package resolver

import (
	"context"
	"log"
	"time"

	"github.com/kisy/nbrmgr/model"
	"github.com/kisy/nbrmgr/pkg/kernel"
)

// Resolver drains a directive queue at a capped rate and issues the matching kernel command for
// each directive.
type Resolver struct {
	Name     string
	Queue    <-chan model.Directive
	Kernel   kernel.Adapter
	Burst    int
	Interval time.Duration
}

// Run blocks draining Queue until ctx is cancelled or Queue is closed. Within each burst window
// at most Burst directives are issued; once the window is exhausted, Run waits for the next
// interval tick before resuming, mirroring conn_monitor.go's ticker-driven select loop.
func (r *Resolver) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent = 0
		case d, ok := <-r.Queue:
			if !ok {
				return
			}
			if sent >= r.Burst {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sent = 0
				}
			}
			r.dispatch(d)
			sent++
		}
	}
}

func (r *Resolver) dispatch(d model.Directive) {
	var err error
	switch d.Kind {
	case model.DirectiveResolve:
		err = r.Kernel.ResolveNeighbor(d.Entry)
	case model.DirectiveRefresh, model.DirectiveDelayRefresh:
		err = r.Kernel.RefreshNeighbor(d.Entry)
	}
	if err != nil {
		log.Printf("%s: %s %s failed: %v", r.Name, d.Kind, d.Entry.Addr, err)
	}
}
