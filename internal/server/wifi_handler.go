package server

import (
	"encoding/json"
	"net/http"

	"fbxdash/backend/fbxd/internal/freebox"
)

func (s *Server) handleWifiConfig(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "wifi/config/")
}

func (s *Server) handleWifiConfigUpdate(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPut, "wifi/config/")
}

// handleWifiAPs relays the radio list, withholding the 6 GHz radio on
// hardware that does not carry it so the UI never offers a band the appliance
// cannot serve.
func (s *Server) handleWifiAPs(w http.ResponseWriter, r *http.Request) {
	res := s.client.Call(r.Context(), http.MethodGet, "wifi/ap/", nil, true)
	if res.Success && !s.detector.DetectModel(r.Context()).Supports6GHz() {
		res = drop6GHzRadios(res)
	}
	writeResult(w, res)
}

func (s *Server) handleWifiGuest(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "wifi/custom_key/")
}

// drop6GHzRadios filters 6 GHz access points out of a radio-list result.
// Entries that do not parse are kept untouched.
func drop6GHzRadios(res freebox.Result) freebox.Result {
	var aps []json.RawMessage
	if err := res.Decode(&aps); err != nil {
		return res
	}
	kept := make([]json.RawMessage, 0, len(aps))
	for _, raw := range aps {
		var ap struct {
			Band   string `json:"band"`
			Config struct {
				Band string `json:"band"`
			} `json:"config"`
		}
		if err := json.Unmarshal(raw, &ap); err == nil && (ap.Band == "6g" || ap.Config.Band == "6g") {
			continue
		}
		kept = append(kept, raw)
	}
	filtered, err := json.Marshal(kept)
	if err != nil {
		return res
	}
	res.Result = filtered
	return res
}
