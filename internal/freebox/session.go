package freebox

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Session owns the appliance trust-establishment protocol: one-time
// registration with physical confirmation, then challenge-response logins. It
// is the only writer of the application token, session token, rolling
// challenge and permission set.
type Session struct {
	logger zerolog.Logger
	client *Client
	store  *TokenStore
	app    AppIdentity

	// mu serializes logins so two concurrent Login calls cannot interleave
	// their challenge fetch and password exchange, and guards all state below.
	mu          sync.Mutex
	appToken    string
	loggedIn    bool
	challenge   string
	permissions map[string]bool

	// pollInterval between registration status probes; shortened in tests.
	pollInterval time.Duration
}

// NewSession builds a session manager. The persisted application token, if
// any, is loaded immediately so a restart stays registered.
func NewSession(logger zerolog.Logger, client *Client, store *TokenStore, app AppIdentity) *Session {
	s := &Session{
		logger:       logger.With().Str("component", "freebox-session").Logger(),
		client:       client,
		store:        store,
		app:          app,
		permissions:  map[string]bool{},
		pollInterval: time.Second,
	}
	if tok, ok := store.Load(); ok {
		s.appToken = tok
		s.logger.Info().Msg("application token loaded")
	}
	return s
}

// computePassword derives the one-time session password from the rolling
// challenge. HMAC-SHA1 is fixed by the appliance protocol and must match it
// bit-for-bit.
func computePassword(appToken, challenge string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

type registerResult struct {
	AppToken string `json:"app_token"`
	TrackID  int    `json:"track_id"`
}

// Register asks the appliance to authorize this application. The user must
// confirm on the appliance's front panel; progress is observed through
// TrackRegistration with the returned track id. The received application token
// is persisted before Register returns so a crash cannot lose it.
func (s *Session) Register(ctx context.Context) (int, error) {
	res := s.client.Call(ctx, http.MethodPost, "login/authorize/", s.app, false)
	if !res.Success {
		return 0, fmt.Errorf("registration rejected: %s (%s)", res.Message, res.ErrorCode)
	}
	var out registerResult
	if err := res.Decode(&out); err != nil {
		return 0, fmt.Errorf("registration response: %w", err)
	}
	if err := s.store.Save(out.AppToken); err != nil {
		return 0, fmt.Errorf("persist application token: %w", err)
	}
	s.mu.Lock()
	s.appToken = out.AppToken
	s.mu.Unlock()
	s.logger.Info().Int("track_id", out.TrackID).Msg("registration started, waiting for front-panel confirmation")
	return out.TrackID, nil
}

type trackResult struct {
	Status    string `json:"status"`
	Challenge string `json:"challenge"`
}

// TrackRegistration reports the authorization status for a track id: one of
// unknown, pending, timeout, granted, denied.
func (s *Session) TrackRegistration(ctx context.Context, trackID int) (string, error) {
	res := s.client.Call(ctx, http.MethodGet, fmt.Sprintf("login/authorize/%d", trackID), nil, false)
	if !res.Success {
		return "", fmt.Errorf("track registration: %s (%s)", res.Message, res.ErrorCode)
	}
	var out trackResult
	if err := res.Decode(&out); err != nil {
		return "", err
	}
	if out.Status == "" {
		return TrackUnknown, nil
	}
	return out.Status, nil
}

// PollRegistration polls TrackRegistration once per interval until a terminal
// status (granted, denied, timeout), the context ends or maxAttempts polls
// have run. Each poll waits for the previous one, so at most one probe is ever
// outstanding. Transient transport failures count as attempts and do not abort
// the loop.
func (s *Session) PollRegistration(ctx context.Context, trackID, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 120
	}
	for i := 0; i < maxAttempts; i++ {
		status, err := s.TrackRegistration(ctx, trackID)
		if err != nil {
			s.logger.Debug().Err(err).Msg("registration poll failed, retrying")
		} else {
			switch status {
			case TrackGranted, TrackDenied, TrackTimeout:
				return status, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return TrackTimeout, nil
}

type challengeResult struct {
	LoggedIn  bool   `json:"logged_in"`
	Challenge string `json:"challenge"`
}

type sessionResult struct {
	SessionToken string          `json:"session_token"`
	Challenge    string          `json:"challenge"`
	Permissions  map[string]bool `json:"permissions"`
}

// Login opens an authenticated session: fetch a fresh challenge, derive the
// password from the application token, exchange it for a session token and
// permission set. Fails fast with ErrNotRegistered (and zero network calls)
// when no application token is held.
func (s *Session) Login(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appToken == "" {
		return nil, ErrNotRegistered
	}

	// Always start from a fresh challenge; the one cached from a previous
	// exchange may have been superseded appliance-side.
	res := s.client.Call(ctx, http.MethodGet, "login/", nil, false)
	if !res.Success {
		return nil, fmt.Errorf("challenge fetch: %s (%s)", res.Message, res.ErrorCode)
	}
	var ch challengeResult
	if err := res.Decode(&ch); err != nil {
		return nil, fmt.Errorf("challenge response: %w", err)
	}
	if ch.Challenge == "" {
		return nil, fmt.Errorf("challenge response: empty challenge")
	}

	open := map[string]string{
		"app_id":      s.app.AppID,
		"app_version": s.app.AppVersion,
		"password":    computePassword(s.appToken, ch.Challenge),
	}
	res = s.client.Call(ctx, http.MethodPost, "login/session/", open, false)
	if !res.Success {
		return nil, fmt.Errorf("session open: %s (%s)", res.Message, res.ErrorCode)
	}
	var open2 sessionResult
	if err := res.Decode(&open2); err != nil {
		return nil, fmt.Errorf("session response: %w", err)
	}

	s.challenge = open2.Challenge
	s.permissions = open2.Permissions
	if s.permissions == nil {
		s.permissions = map[string]bool{}
	}
	s.loggedIn = true
	s.client.SetSessionToken(open2.SessionToken)
	s.logger.Info().Int("permissions", len(s.permissions)).Msg("session opened")
	return copyPermissions(s.permissions), nil
}

// Logout closes the session on the appliance (best effort) and always clears
// local session state.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	wasLoggedIn := s.loggedIn
	s.loggedIn = false
	s.challenge = ""
	s.permissions = map[string]bool{}
	s.mu.Unlock()

	if wasLoggedIn {
		if res := s.client.Call(ctx, http.MethodPost, "login/logout/", nil, true); !res.Success {
			s.logger.Debug().Str("code", res.ErrorCode).Msg("logout call failed, clearing local state anyway")
		}
	}
	s.client.SetSessionToken("")
}

// CheckSession probes the appliance with the current session token and
// reports whether it is still accepted. Never returns an error.
func (s *Session) CheckSession(ctx context.Context) bool {
	if !s.client.HasSession() {
		return false
	}
	res := s.client.Call(ctx, http.MethodGet, "login/", nil, true)
	if !res.Success {
		return false
	}
	var ch challengeResult
	if err := res.Decode(&ch); err != nil {
		return false
	}
	if !ch.LoggedIn {
		// Session expired appliance-side; reflect it locally.
		s.mu.Lock()
		s.loggedIn = false
		s.mu.Unlock()
	}
	return ch.LoggedIn
}

func (s *Session) IsRegistered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appToken != ""
}

func (s *Session) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// Permissions returns a copy of the permission set from the last login.
func (s *Session) Permissions() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPermissions(s.permissions)
}

func copyPermissions(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
