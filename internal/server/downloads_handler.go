package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"fbxdash/backend/fbxd/internal/freebox"
	"fbxdash/backend/fbxd/pkg/httpx"
)

func (s *Server) handleDownloadsList(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodGet, "downloads/")
}

// handleDownloadAdd accepts {"url": "..."} from the UI and forwards it the
// way the appliance wants it: form-encoded.
func (s *Server) handleDownloadAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &body); err != nil || body.URL == "" {
		httpx.WriteError(w, http.StatusBadRequest, "url is required")
		return
	}
	form := url.Values{"download_url": {body.URL}}
	res := s.client.Call(r.Context(), http.MethodPost, "downloads/add/", freebox.RawBody{
		ContentType: "application/x-www-form-urlencoded",
		Data:        []byte(form.Encode()),
	}, true)
	writeResult(w, res)
}

func (s *Server) handleDownloadUpdate(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodPut, "downloads/"+chi.URLParam(r, "id"))
}

func (s *Server) handleDownloadDelete(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, http.MethodDelete, "downloads/"+chi.URLParam(r, "id"))
}
