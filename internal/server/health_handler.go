package server

import (
	"net/http"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
)

// handleHealth reports daemon liveness plus host basics. It never touches the
// appliance: the dashboard must answer even when the box is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":         true,
		"version":    appVersion,
		"registered": s.session.IsRegistered(),
		"logged_in":  s.session.IsLoggedIn(),
	}
	if up, err := host.Uptime(); err == nil {
		out["host_uptime_sec"] = up
	}
	if avg, err := load.Avg(); err == nil {
		out["load1"] = avg.Load1
	}
	writeJSON(w, out)
}
