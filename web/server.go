// Package web serves the operator-facing HTTP surface: a JSON snapshot of the caches and the
// Prometheus metrics endpoint, replacing the teacher's bandwidth dashboard (whose html/static
// assets were never part of the retrieval pack) with the dump/metrics surface SPEC_FULL.md's
// observability section describes.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kisy/nbrmgr/pkg/store"
)

type Server struct {
	cache *store.Cache
}

func NewServer(cache *store.Cache) *Server {
	return &Server{cache: cache}
}

func (s *Server) RegisterHandlers() {
	http.HandleFunc("/api/dump", func(w http.ResponseWriter, r *http.Request) {
		s.cache.RLock()
		snap := s.cache.Snapshot()
		s.cache.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	})

	http.Handle("/metrics", promhttp.Handler())
}
