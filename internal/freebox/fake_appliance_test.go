package freebox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAppliance emulates the appliance's auth surface for tests: discovery,
// authorization with a poll-until-granted sequence, challenge issuance and
// session opening with real password verification.
type fakeAppliance struct {
	t  *testing.T
	ts *httptest.Server

	mu             sync.Mutex
	modelName      string
	boxModel       string
	appToken       string
	challenge      string
	sessionToken   string
	trackStatuses  []string // consumed one per poll; last one repeats
	permissions    map[string]bool
	discoveryCalls int
	loginCalls     int
}

func newFakeAppliance(t *testing.T) *fakeAppliance {
	f := &fakeAppliance{
		t:           t,
		modelName:   "Freebox Ultra",
		boxModel:    "fbxgw9-r1/full",
		appToken:    "tok-abcdef0123456789",
		challenge:   "challenge-1",
		permissions: map[string]bool{"settings": true, "downloads": true},
	}
	f.ts = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fakeAppliance) URL() string { return f.ts.URL }

func (f *fakeAppliance) envelope(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": result})
}

func (f *fakeAppliance) failure(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error_code": code, "msg": msg})
}

func (f *fakeAppliance) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/api_version":
		f.discoveryCalls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"uid":            "fake-uid",
			"device_name":    "Freebox Server",
			"box_model":      f.boxModel,
			"box_model_name": f.modelName,
			"api_version":    "8.0",
		})

	case path == "/api/v8/login/authorize/" && r.Method == http.MethodPost:
		var id AppIdentity
		_ = json.NewDecoder(r.Body).Decode(&id)
		if id.AppID == "" || id.DeviceName == "" {
			f.failure(w, "invalid_request", "missing app identity")
			return
		}
		f.envelope(w, map[string]any{"app_token": f.appToken, "track_id": 42})

	case strings.HasPrefix(path, "/api/v8/login/authorize/") && r.Method == http.MethodGet:
		status := "granted"
		if len(f.trackStatuses) > 0 {
			status = f.trackStatuses[0]
			if len(f.trackStatuses) > 1 {
				f.trackStatuses = f.trackStatuses[1:]
			}
		}
		f.envelope(w, map[string]any{"status": status, "challenge": f.challenge})

	case path == "/api/v8/login/" && r.Method == http.MethodGet:
		f.loginCalls++
		loggedIn := f.sessionToken != "" && r.Header.Get("X-Fbx-App-Auth") == f.sessionToken
		f.envelope(w, map[string]any{"logged_in": loggedIn, "challenge": f.challenge})

	case path == "/api/v8/login/session/" && r.Method == http.MethodPost:
		var body struct {
			AppID    string `json:"app_id"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != computePassword(f.appToken, f.challenge) {
			f.failure(w, "invalid_token", "wrong password")
			return
		}
		f.sessionToken = fmt.Sprintf("sess-%d", f.loginCalls)
		next := f.challenge + "x" // rolling challenge
		f.challenge = next
		f.envelope(w, map[string]any{
			"session_token": f.sessionToken,
			"challenge":     next,
			"permissions":   f.permissions,
		})

	case path == "/api/v8/login/logout/" && r.Method == http.MethodPost:
		if r.Header.Get("X-Fbx-App-Auth") != f.sessionToken || f.sessionToken == "" {
			f.failure(w, "auth_required", "no session")
			return
		}
		f.sessionToken = ""
		f.envelope(w, map[string]any{})

	case path == "/api/v2/freeplug/":
		f.envelope(w, []map[string]any{{"id": "plug-1"}})

	default:
		// Generic authenticated echo for proxy-style calls.
		if r.Header.Get("X-Fbx-App-Auth") != f.sessionToken || f.sessionToken == "" {
			f.failure(w, "auth_required", "no session")
			return
		}
		f.envelope(w, map[string]any{"path": path})
	}
}
