package server

import (
	"net/http"
	"strconv"
	"time"

	"fbxdash/backend/fbxd/internal/stats"
	"fbxdash/backend/fbxd/pkg/httpx"
)

// windowFromQuery parses ?window= (seconds, default one hour, capped at the
// retention window's order of magnitude).
func windowFromQuery(r *http.Request) time.Duration {
	window := time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 7*24*3600 {
			window = time.Duration(n) * time.Second
		}
	}
	return window
}

func (s *Server) handleStatsBandwidth(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		httpx.WriteTypedError(w, http.StatusServiceUnavailable, "stats_disabled", "history store not configured")
		return
	}
	since := time.Now().Add(-windowFromQuery(r))
	series := map[string][]stats.Point{}
	for _, metric := range []string{"rate_up", "rate_down"} {
		pts, err := s.stats.Series(metric, since, 360)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		series[metric] = pts
	}
	writeJSON(w, series)
}

func (s *Server) handleStatsTemps(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		httpx.WriteTypedError(w, http.StatusServiceUnavailable, "stats_disabled", "history store not configured")
		return
	}
	since := time.Now().Add(-windowFromQuery(r))
	caps := s.detector.DetectModel(r.Context())
	series := map[string][]stats.Point{}
	for _, metric := range caps.TempFields {
		pts, err := s.stats.Series(metric, since, 360)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		series[metric] = pts
	}
	writeJSON(w, series)
}
