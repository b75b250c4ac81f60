package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// All VM routes sit behind requireVMSupport; by the time these run the
// hardware is known to support virtualization.

func (s *Server) handleVMList(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "vm/")
}

func (s *Server) handleVMInfo(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "vm/info/")
}

func (s *Server) handleVMGet(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "vm/"+chi.URLParam(r, "id"))
}

func (s *Server) handleVMStart(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPost, "vm/"+chi.URLParam(r, "id")+"/start/")
}

func (s *Server) handleVMStop(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPost, "vm/"+chi.URLParam(r, "id")+"/powerbutton/")
}
