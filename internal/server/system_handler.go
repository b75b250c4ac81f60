package server

import (
	"encoding/json"
	"net/http"

	"fbxdash/backend/fbxd/internal/freebox"
)

// handleSystem relays system info, filtering temperature fields to the
// sensors the detected hardware actually exposes so the UI never charts a
// sensor that does not exist on this generation.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	res := s.client.Call(r.Context(), http.MethodGet, "system/", nil, true)
	if !res.Success {
		writeResult(w, res)
		return
	}
	var sys map[string]json.RawMessage
	if err := res.Decode(&sys); err != nil {
		writeResult(w, freebox.Fail(freebox.CodeInvalidResponse, "system payload: "+err.Error()))
		return
	}
	caps := s.detector.DetectModel(r.Context())
	temps := map[string]json.RawMessage{}
	for _, f := range caps.TempFields {
		if v, ok := sys[f]; ok {
			temps[f] = v
		}
	}
	writeJSON(w, map[string]any{
		"success": true,
		"result":  sys,
		"temps":   temps,
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.detector.DetectModel(r.Context()))
}

func (s *Server) handleCapabilitiesRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.detector.Refresh(r.Context()))
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPost, "system/reboot/")
}
