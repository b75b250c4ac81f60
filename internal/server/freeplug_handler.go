package server

import "net/http"

// handleFreeplugs goes through the façade's old-protocol version override.
func (s *Server) handleFreeplugs(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "freeplug/")
}
