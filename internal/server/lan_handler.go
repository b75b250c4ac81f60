package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleLanInterfaces(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "lan/browser/interfaces/")
}

func (s *Server) handleLanHosts(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "lan/browser/"+chi.URLParam(r, "iface")+"/")
}

func (s *Server) handleLanWake(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPost, "lan/wol/"+chi.URLParam(r, "iface")+"/")
}
