package server

import (
	"encoding/json"
	"io"
	"net/http"

	"fbxdash/backend/fbxd/internal/freebox"
	"fbxdash/backend/fbxd/pkg/httpx"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult maps a façade result to an HTTP response. Local state failures
// map to 401, transport-class failures to 502; appliance envelopes (success or
// not) pass through as 200 and the UI reads the success flag.
func writeResult(w http.ResponseWriter, res freebox.Result) {
	switch res.ErrorCode {
	case freebox.CodeNotLoggedIn:
		httpx.WriteTypedError(w, http.StatusUnauthorized, res.ErrorCode, res.Message)
		return
	case freebox.CodeRequestFailed, freebox.CodeInvalidResponse:
		if !res.Success {
			httpx.WriteTypedError(w, http.StatusBadGateway, res.ErrorCode, res.Message)
			return
		}
	}
	writeJSON(w, res)
}

// proxy forwards a request through the façade, relaying the request body
// verbatim when present.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, method, endpoint string) {
	var body any
	if r.Body != nil && (method == http.MethodPost || method == http.MethodPut || method == http.MethodDelete) {
		if b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)); err == nil && len(b) > 0 {
			body = b
		}
	}
	writeResult(w, s.client.Call(r.Context(), method, endpoint, body, true))
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// requireBrowserSession gates proxy routes on the cookie issued at login.
func (s *Server) requireBrowserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cookies.verify(r) {
			httpx.WriteTypedError(w, http.StatusUnauthorized, "browser_session_required", "log in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireVMSupport rejects VM routes on hardware without VM support before
// any appliance call is made.
func (s *Server) requireVMSupport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caps := s.detector.DetectModel(r.Context())
		if !caps.SupportsVM() {
			httpx.WriteTypedError(w, http.StatusForbidden, "feature_unsupported", "this hardware does not support virtual machines")
			return
		}
		next.ServeHTTP(w, r)
	})
}
