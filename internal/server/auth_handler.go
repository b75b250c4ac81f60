package server

import (
	"errors"
	"net/http"

	"fbxdash/backend/fbxd/internal/freebox"
	"fbxdash/backend/fbxd/pkg/httpx"
)

// handleRegister starts the appliance authorization flow and polls it to a
// terminal status. The HTTP request stays open while the user confirms on the
// appliance's front panel; the UI shows a "press the button" screen meanwhile.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.session.IsRegistered() {
		writeJSON(w, map[string]any{"status": "already_registered"})
		return
	}
	trackID, err := s.session.Register(r.Context())
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadGateway, "registration_failed", err.Error())
		return
	}
	status, err := s.session.PollRegistration(r.Context(), trackID, 120)
	if err != nil {
		httpx.WriteTypedError(w, http.StatusBadGateway, "registration_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"status": status, "track_id": trackID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	perms, err := s.session.Login(r.Context())
	if err != nil {
		if errors.Is(err, freebox.ErrNotRegistered) {
			// Actionable for the UI: offer the registration flow.
			httpx.WriteTypedError(w, http.StatusConflict, "not_registered", "register this application with the appliance first")
			return
		}
		httpx.WriteTypedError(w, http.StatusUnauthorized, "login_failed", err.Error())
		return
	}
	if _, err := s.cookies.issue(w); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "issue browser session")
		return
	}
	caps := s.detector.DetectModel(r.Context())
	writeJSON(w, map[string]any{
		"ok":           true,
		"permissions":  perms,
		"capabilities": caps,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	s.detector.ClearCache()
	s.cookies.clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	alive := false
	if s.session.IsLoggedIn() {
		alive = s.session.CheckSession(r.Context())
	}
	writeJSON(w, map[string]any{
		"registered":  s.session.IsRegistered(),
		"logged_in":   alive,
		"permissions": s.session.Permissions(),
	})
}
