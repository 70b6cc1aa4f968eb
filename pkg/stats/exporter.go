// Package stats exposes the neighbor manager's counters to Prometheus. It replaces the teacher's
// traffic Aggregator (a client-keyed byte-counter map) with a prometheus.Collector over the
// single store.Stats struct the processor already maintains — the counters here are the ones
// SPEC_FULL.md's observability section names, not bandwidth.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kisy/nbrmgr/pkg/store"
)

// Exporter adapts store.Cache's counters to the prometheus.Collector interface. It takes RLock
// only while copying the snapshot, the same read path the web dump handler uses.
type Exporter struct {
	cache *store.Cache
	descs map[string]*prometheus.Desc
}

func NewExporter(cache *store.Cache) *Exporter {
	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("nbrmgr_"+name, help, nil, nil)
	}
	return &Exporter{
		cache: cache,
		descs: map[string]*prometheus.Desc{
			"nbr_add_total":              mk("nbr_add_total", "Neighbor ADD messages processed"),
			"nbr_del_total":              mk("nbr_del_total", "Neighbor DEL messages processed"),
			"nbr_add_incomplete_total":   mk("nbr_add_incomplete_total", "Neighbor ADD messages observed in INCOMPLETE"),
			"nbr_add_reachable_total":    mk("nbr_add_reachable_total", "Neighbor ADD messages observed in REACHABLE"),
			"nbr_add_stale_total":        mk("nbr_add_stale_total", "Neighbor ADD messages observed in STALE"),
			"nbr_add_failed_total":       mk("nbr_add_failed_total", "Neighbor ADD messages observed in FAILED"),
			"nbr_add_permanent_total":    mk("nbr_add_permanent_total", "Neighbor ADD messages observed in PERMANENT"),
			"fdb_add_total":              mk("fdb_add_total", "FDB ADD messages processed"),
			"fdb_del_total":              mk("fdb_del_total", "FDB DEL messages processed"),
			"intf_add_total":             mk("intf_add_total", "Interface ADD/UPDATE messages processed"),
			"intf_del_total":             mk("intf_del_total", "Interface DEL messages processed"),
			"flush_total":                mk("flush_total", "Flush requests processed"),
			"flush_nbr_total":            mk("flush_nbr_total", "Neighbors whose flush refresh was deferred (REFRESH in flight or INCOMPLETE)"),
			"flush_trig_refresh_total":   mk("flush_trig_refresh_total", "Flush-triggered refresh/resolve directives"),
			"retry_total":                mk("retry_total", "MAC-learn retry attempts"),
			"failed_trig_resolve_total":  mk("failed_trig_resolve_total", "FAILED-state resolve triggers"),
			"stale_trig_refresh_total":   mk("stale_trig_refresh_total", "STALE-state refresh triggers"),
			"mac_not_present_total":      mk("mac_not_present_total", "Times a neighbor's MAC wasn't present in hardware"),
			"resolve_total":              mk("resolve_total", "RESOLVE directives issued"),
			"refresh_total":              mk("refresh_total", "REFRESH directives issued"),
			"delay_refresh_total":        mk("delay_refresh_total", "DELAY_REFRESH directives issued"),
			"hw_mac_learn_refresh_total": mk("hw_mac_learn_refresh_total", "Hardware MAC-learn refresh triggers"),
			"npu_program_total":          mk("npu_program_total", "NPU programming calls issued"),
			"directive_skipped_total":    mk("directive_skipped_total", "Directives skipped due to a down/missing interface"),
			"neighbors":                  mk("neighbors", "Current neighbor count"),
			"macs":                       mk("macs", "Current MAC entry count"),
			"interfaces":                mk("interfaces", "Current interface count"),
		},
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.descs {
		ch <- d
	}
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.cache.RLock()
	snap := e.cache.Snapshot()
	e.cache.RUnlock()
	s := snap.Stats

	counter := func(name string, v int64) {
		ch <- prometheus.MustNewConstMetric(e.descs[name], prometheus.CounterValue, float64(v))
	}
	gauge := func(name string, v int) {
		ch <- prometheus.MustNewConstMetric(e.descs[name], prometheus.GaugeValue, float64(v))
	}

	counter("nbr_add_total", s.NbrAddMsgCnt)
	counter("nbr_del_total", s.NbrDelMsgCnt)
	counter("nbr_add_incomplete_total", s.NbrAddIncompleteMsgCnt)
	counter("nbr_add_reachable_total", s.NbrAddReachableMsgCnt)
	counter("nbr_add_stale_total", s.NbrAddStaleMsgCnt)
	counter("nbr_add_failed_total", s.NbrAddFailedMsgCnt)
	counter("nbr_add_permanent_total", s.NbrAddPermanentCnt)
	counter("fdb_add_total", s.FdbAddMsgCnt)
	counter("fdb_del_total", s.FdbDelMsgCnt)
	counter("intf_add_total", s.IntfAddMsgCnt)
	counter("intf_del_total", s.IntfDelMsgCnt)
	counter("flush_total", s.FlushMsgCnt)
	counter("flush_nbr_total", s.FlushNbrCnt)
	counter("flush_trig_refresh_total", s.FlushTrigRefreshCnt)
	counter("retry_total", s.RetryCnt)
	counter("failed_trig_resolve_total", s.FailedTrigResolveCnt)
	counter("stale_trig_refresh_total", s.StaleTrigRefreshCnt)
	counter("mac_not_present_total", s.MACNotPresentCnt)
	counter("resolve_total", s.ResolveCnt)
	counter("refresh_total", s.RefreshCnt)
	counter("delay_refresh_total", s.DelayRefreshCnt)
	counter("hw_mac_learn_refresh_total", s.HWMacLearnRefreshCnt)
	counter("npu_program_total", s.NPUPrgMsgCnt)
	counter("directive_skipped_total", s.DirectiveSkippedCnt)

	gauge("neighbors", len(snap.Neighbors))
	gauge("macs", len(snap.MACs))
	gauge("interfaces", len(snap.Interfaces))
}
