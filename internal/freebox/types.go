package freebox

import (
	"encoding/json"
	"errors"
)

// AppIdentity is the fixed identity presented to the appliance during
// authorization and session opening.
type AppIdentity struct {
	AppID      string `json:"app_id"`
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	DeviceName string `json:"device_name"`
}

// Result is the normalized outcome of every appliance call. Expected failures
// (appliance down, non-JSON body, timeout, appliance error envelope) are
// reported here, never as Go errors.
type Result struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"msg,omitempty"`
}

// Failure codes produced locally by the façade, distinct from appliance codes.
const (
	CodeRequestFailed   = "request_failed"
	CodeInvalidResponse = "invalid_response"
	CodeNotLoggedIn     = "not_logged_in"
)

// Fail builds a local failure result.
func Fail(code, msg string) Result {
	return Result{Success: false, ErrorCode: code, Message: msg}
}

// Decode unmarshals the result payload into v.
func (r Result) Decode(v any) error {
	if !r.Success {
		return errors.New("cannot decode failed result")
	}
	if len(r.Result) == 0 {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

// VersionInfo is the unauthenticated discovery document served at the root of
// the appliance API. Model identification reads the box_model_name field first
// and falls back through box_model and device_name.
type VersionInfo struct {
	UID            string `json:"uid"`
	DeviceName     string `json:"device_name"`
	DeviceType     string `json:"device_type"`
	APIVersion     string `json:"api_version"`
	APIBaseURL     string `json:"api_base_url"`
	BoxModel       string `json:"box_model"`
	BoxModelName   string `json:"box_model_name"`
	HTTPSAvailable bool   `json:"https_available"`
	HTTPSPort      int    `json:"https_port"`
}

// Registration tracking statuses reported by the appliance while the user is
// asked to confirm on the front panel.
const (
	TrackUnknown = "unknown"
	TrackPending = "pending"
	TrackTimeout = "timeout"
	TrackGranted = "granted"
	TrackDenied  = "denied"
)

// ErrNotRegistered is returned by Login when no application token has been
// loaded or obtained; no network call is made in that case.
var ErrNotRegistered = errors.New("freebox: application not registered")
