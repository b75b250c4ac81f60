package config

import (
	"os"
	"strconv"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration: an optional YAML file provides the
// baseline, FBX_* environment variables take precedence.
type Config struct {
	Bind          string
	ApplianceBase string
	TokenPath     string
	DataDir       string
	CORSOrigin    string
	LogLevel      zerolog.Level

	// ModelOverride, when set to a known hardware family name, makes the
	// capability detector return that family's static table without touching
	// the appliance. Test/simulation switch only.
	ModelOverride string

	// CookieHashKey signs the browser session cookie. Generated per process
	// when not configured, which invalidates browser sessions on restart.
	CookieHashKey []byte

	DeviceName string

	StatsInterval  time.Duration
	StatsRetention time.Duration
}

type fileConfig struct {
	Bind      string `yaml:"bind"`
	Appliance struct {
		Base      string `yaml:"base"`
		TokenPath string `yaml:"tokenPath"`
	} `yaml:"appliance"`
	DataDir string `yaml:"dataDir"`
	CORS    struct {
		Origin string `yaml:"origin"`
	} `yaml:"cors"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Stats struct {
		IntervalSec   int `yaml:"intervalSec"`
		RetentionDays int `yaml:"retentionDays"`
	} `yaml:"stats"`
}

// FromEnv loads configuration from FBX_CONFIG (if set) plus the environment.
func FromEnv() Config {
	return Load(os.Getenv("FBX_CONFIG"))
}

// Load reads the YAML file at path (ignored when empty or unreadable), then
// applies environment overrides and defaults.
func Load(path string) Config {
	cfg := Config{
		Bind:           "127.0.0.1:8850",
		ApplianceBase:  "https://mafreebox.freebox.fr",
		TokenPath:      "/var/lib/fbxd/token.json",
		DataDir:        "/var/lib/fbxd",
		CORSOrigin:     "http://localhost:5173",
		LogLevel:       zerolog.InfoLevel,
		DeviceName:     hostname(),
		StatsInterval:  10 * time.Second,
		StatsRetention: 7 * 24 * time.Hour,
	}

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			var fc fileConfig
			if yaml.Unmarshal(b, &fc) == nil {
				if fc.Bind != "" {
					cfg.Bind = fc.Bind
				}
				if fc.Appliance.Base != "" {
					cfg.ApplianceBase = fc.Appliance.Base
				}
				if fc.Appliance.TokenPath != "" {
					cfg.TokenPath = fc.Appliance.TokenPath
				}
				if fc.DataDir != "" {
					cfg.DataDir = fc.DataDir
				}
				if fc.CORS.Origin != "" {
					cfg.CORSOrigin = fc.CORS.Origin
				}
				if l, err := zerolog.ParseLevel(fc.Logging.Level); err == nil && fc.Logging.Level != "" {
					cfg.LogLevel = l
				}
				if fc.Stats.IntervalSec > 0 {
					cfg.StatsInterval = time.Duration(fc.Stats.IntervalSec) * time.Second
				}
				if fc.Stats.RetentionDays > 0 {
					cfg.StatsRetention = time.Duration(fc.Stats.RetentionDays) * 24 * time.Hour
				}
			}
		}
	}

	if v := os.Getenv("FBX_BIND"); v != "" {
		cfg.Bind = v
	}
	if v := os.Getenv("FBX_APPLIANCE_BASE"); v != "" {
		cfg.ApplianceBase = v
	}
	if v := os.Getenv("FBX_TOKEN_PATH"); v != "" {
		cfg.TokenPath = v
	}
	if v := os.Getenv("FBX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FBX_CORS_ORIGIN"); v != "" {
		cfg.CORSOrigin = v
	}
	if v := os.Getenv("FBX_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = l
		}
	}
	cfg.ModelOverride = os.Getenv("FBX_MODEL_OVERRIDE")
	if v := os.Getenv("FBX_DEVICE_NAME"); v != "" {
		cfg.DeviceName = v
	}
	if v := os.Getenv("FBX_STATS_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StatsInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("FBX_COOKIE_KEY"); v != "" {
		cfg.CookieHashKey = []byte(v)
	} else {
		cfg.CookieHashKey = securecookie.GenerateRandomKey(32)
	}

	return cfg
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "fbxd"
	}
	return h
}
