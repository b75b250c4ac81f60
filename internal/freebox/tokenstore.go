package freebox

import (
	"github.com/rs/zerolog"

	"fbxdash/backend/fbxd/internal/fsatomic"
)

type tokenFile struct {
	Version  int    `json:"version"`
	AppToken string `json:"app_token"`
}

// TokenStore persists the long-lived application token as a small JSON
// document. Writes happen once at registration time; durability matters more
// than throughput.
type TokenStore struct {
	logger zerolog.Logger
	path   string
}

func NewTokenStore(logger zerolog.Logger, path string) *TokenStore {
	return &TokenStore{
		logger: logger.With().Str("component", "token-store").Logger(),
		path:   path,
	}
}

// Load reads the persisted token. A missing, unreadable or corrupt file is
// treated as "no token": logged and ignored, never fatal.
func (s *TokenStore) Load() (string, bool) {
	var f tokenFile
	exists, err := fsatomic.LoadJSON(s.path, &f)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("token file unreadable, treating as unregistered")
		return "", false
	}
	if !exists || f.AppToken == "" {
		return "", false
	}
	return f.AppToken, true
}

// Save durably persists the token, creating parent directories as needed. A
// subsequent Load never observes a partial write.
func (s *TokenStore) Save(token string) error {
	return fsatomic.SaveJSON(s.path, tokenFile{Version: 1, AppToken: token}, 0o600)
}
