// Package server exposes the tunnel document persistence API consumed by the
// editor: load, per-section save, import/render and the revision history.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"amneziawg-webui/internal/auth"
	"amneziawg-webui/internal/diaglog"
	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/repository"
	"amneziawg-webui/internal/settings"
)

const maxBodyBytes = 1 << 20

// Server handles HTTP requests and background coordination.
type Server struct {
	repo     *repository.Store
	auth     *auth.Manager
	settings *settings.Manager
	diagLog  *diaglog.Manager

	watchersMu    sync.Mutex
	watchers      map[chan streamMessage]struct{}
	streamsClosed bool

	cleanupInterval time.Duration
}

// New creates an HTTP server. authManager may be nil to serve without
// authentication (tests and loopback-only setups).
func New(repo *repository.Store, authManager *auth.Manager, settingsManager *settings.Manager, diagLog *diaglog.Manager) *Server {
	return &Server{
		repo:            repo,
		auth:            authManager,
		settings:        settingsManager,
		diagLog:         diagLog,
		watchers:        make(map[chan streamMessage]struct{}),
		cleanupInterval: time.Hour,
	}
}

// Router constructs the http.Handler with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.auth != nil {
		r.Use(s.auth.Middleware)
	}

	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/version", s.handleVersion)

	r.Route("/amneziawg", func(awg chi.Router) {
		awg.Get("/config", s.handleGetConfig)
		awg.Get("/config/render", s.handleRenderConfig)
		awg.Post("/save/{section}", s.handleSave)
		awg.Post("/import", s.handleImport)
		awg.Get("/revisions", s.handleListRevisions)
		awg.Get("/revisions/{id}", s.handleGetRevision)
		awg.Get("/events", s.handleStream)
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/settings", s.handleGetSettings)
		api.Put("/settings", s.handleSaveSettings)
		api.Get("/auth/token", s.handleGetAuthToken)
		api.Post("/auth/token", s.handleRegenerateAuthToken)
		api.Post("/auth/password", s.handleChangePassword)
	})

	return r
}

// StartBackground prunes the revision history until stop is closed.
func (s *Server) StartBackground(stop <-chan struct{}) {
	s.prune()
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.prune()
		case <-stop:
			return
		}
	}
}

func (s *Server) prune() {
	if err := s.repo.Prune(); err != nil {
		logs.Logger.Warnf("revision cleanup failed: %v", err)
		return
	}
	s.diagLog.Debugf("revision cleanup completed")
}
