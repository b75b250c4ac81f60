package server

import "net/http"

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "connection/")
}

func (s *Server) handleConnectionLogs(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "connection/logs/")
}
