package main

import (
	"net/http"
	"strings"

	"whatsflow/internal/httputil"
	"whatsflow/internal/metrics"
)

// handleMetrics serves a registry snapshot. ?prefix= keeps only series whose
// name starts with it, e.g. ?prefix=dispatch_.
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := metrics.GetAllMetrics()
		if prefix := r.URL.Query().Get("prefix"); prefix != "" {
			snap = filterSnapshot(snap, prefix)
		}

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		httputil.WriteJSON(w, http.StatusOK, snap)
	}
}

func filterSnapshot(snap metrics.Snapshot, prefix string) metrics.Snapshot {
	out := snap
	out.Counters = make(map[string]metrics.Metric)
	out.Gauges = make(map[string]metrics.Metric)
	out.Timers = make(map[string]metrics.TimerMetric)

	for k, m := range snap.Counters {
		if strings.HasPrefix(m.Name, prefix) {
			out.Counters[k] = m
		}
	}
	for k, m := range snap.Gauges {
		if strings.HasPrefix(m.Name, prefix) {
			out.Gauges[k] = m
		}
	}
	for k, m := range snap.Timers {
		if strings.HasPrefix(m.Name, prefix) {
			out.Timers[k] = m
		}
	}
	return out
}
