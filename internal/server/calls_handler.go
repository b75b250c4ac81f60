package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCallsList(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "call/log/")
}

func (s *Server) handleCallsMarkRead(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPost, "call/log/mark_all_as_read/")
}

func (s *Server) handleCallDelete(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodDelete, "call/log/"+chi.URLParam(r, "id"))
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "contact/")
}
