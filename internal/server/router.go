package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"fbxdash/backend/fbxd/internal/config"
	"fbxdash/backend/fbxd/internal/freebox"
	"fbxdash/backend/fbxd/internal/stats"
)

// Application identity presented to the appliance. The id is what the user
// confirms on the front panel; changing it forces a re-registration.
const (
	appID      = "fr.fbxdash"
	appName    = "Freebox Dashboard"
	appVersion = "1.2.0"
)

func Logger(cfg config.Config) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
	return &logger
}

// Server wires the core services to the HTTP surface. Everything is
// explicitly constructed so tests can run several independent instances in
// one process.
type Server struct {
	cfg      config.Config
	logger   zerolog.Logger
	client   *freebox.Client
	session  *freebox.Session
	detector *freebox.Detector
	stats    *stats.Store
	cookies  *cookieCodec
}

// New builds a server and its core services from configuration.
func New(cfg config.Config) *Server {
	logger := *Logger(cfg)
	client := freebox.NewClient(logger, cfg.ApplianceBase, 0)
	store := freebox.NewTokenStore(logger, cfg.TokenPath)
	session := freebox.NewSession(logger, client, store, freebox.AppIdentity{
		AppID:      appID,
		AppName:    appName,
		AppVersion: appVersion,
		DeviceName: cfg.DeviceName,
	})
	detector := freebox.NewDetector(logger, client)
	detector.Override = cfg.ModelOverride
	return NewWith(cfg, client, session, detector, nil)
}

// NewWith wires pre-built services; used by New and by tests.
func NewWith(cfg config.Config, client *freebox.Client, session *freebox.Session, detector *freebox.Detector, statsStore *stats.Store) *Server {
	return &Server{
		cfg:      cfg,
		logger:   *Logger(cfg),
		client:   client,
		session:  session,
		detector: detector,
		stats:    statsStore,
		cookies:  newCookieCodec(cfg.CookieHashKey),
	}
}

// Core exposes the constructed services for the sampler and main.
func (s *Server) Core() (*freebox.Client, *freebox.Session, *freebox.Detector) {
	return s.client, s.session, s.detector
}

// SetStats installs the history store once main has opened it.
func (s *Server) SetStats(st *stats.Store) { s.stats = st }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware(&s.logger))
	r.Use(securityHeaders)

	// Dev CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Post("/register", s.handleRegister)
		ar.Post("/login", s.handleLogin)
		ar.Post("/logout", s.handleLogout)
		ar.Get("/session", s.handleSessionStatus)
	})

	// Everything below proxies to the appliance and needs both an appliance
	// session and the browser cookie issued at login.
	r.Group(func(pr chi.Router) {
		pr.Use(s.requireBrowserSession)

		pr.Route("/api/system", func(sr chi.Router) {
			sr.Get("/", s.handleSystem)
			sr.Get("/capabilities", s.handleCapabilities)
			sr.Post("/capabilities/refresh", s.handleCapabilitiesRefresh)
			sr.Post("/reboot", s.handleReboot)
		})

		pr.Route("/api/connection", func(cr chi.Router) {
			cr.Get("/", s.handleConnection)
			cr.Get("/logs", s.handleConnectionLogs)
		})

		pr.Route("/api/wifi", func(wr chi.Router) {
			wr.Get("/config", s.handleWifiConfig)
			wr.Put("/config", s.handleWifiConfigUpdate)
			wr.Get("/ap", s.handleWifiAPs)
			wr.Get("/guest", s.handleWifiGuest)
		})

		pr.Route("/api/downloads", func(dr chi.Router) {
			dr.Get("/", s.handleDownloadsList)
			dr.Post("/", s.handleDownloadAdd)
			dr.Put("/{id}", s.handleDownloadUpdate)
			dr.Delete("/{id}", s.handleDownloadDelete)
		})

		pr.Route("/api/vms", func(vr chi.Router) {
			vr.Use(s.requireVMSupport)
			vr.Get("/", s.handleVMList)
			vr.Get("/info", s.handleVMInfo)
			vr.Get("/{id}", s.handleVMGet)
			vr.Post("/{id}/start", s.handleVMStart)
			vr.Post("/{id}/powerbutton", s.handleVMStop)
		})

		pr.Route("/api/lan", func(lr chi.Router) {
			lr.Get("/interfaces", s.handleLanInterfaces)
			lr.Get("/browser/{iface}", s.handleLanHosts)
			lr.Post("/wake/{iface}", s.handleLanWake)
		})

		pr.Route("/api/calls", func(cr chi.Router) {
			cr.Get("/", s.handleCallsList)
			cr.Post("/mark_all_as_read", s.handleCallsMarkRead)
			cr.Delete("/{id}", s.handleCallDelete)
		})
		pr.Get("/api/contacts", s.handleContacts)

		pr.Get("/api/freeplugs", s.handleFreeplugs)

		pr.Route("/api/stats", func(sr chi.Router) {
			sr.Get("/bandwidth", s.handleStatsBandwidth)
			sr.Get("/temps", s.handleStatsTemps)
		})
	})

	return r
}
