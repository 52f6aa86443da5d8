// Package web serves the lead dashboard and its JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/leaddesk/internal/config"
	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/gate"
	"github.com/JonMunkholm/leaddesk/internal/web/middleware"
)

const csp = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'"

// Server is the HTTP server for the dashboard.
type Server struct {
	service       *core.Service
	cfg           *config.Config
	gate          *gate.Gate
	sessions      *sessionStore
	limiter       *rateLimiter
	secureCookies bool

	router   *chi.Mux
	server   *http.Server
	bgCancel context.CancelFunc
}

// NewServer builds the router. Call Start to listen.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service:       service,
		cfg:           cfg,
		gate:          gate.New(cfg.Gate.Password, cfg.Gate.Secret, cfg.Gate.TTL, cfg.Security.SecureCookies),
		sessions:      newSessionStore(service.Columns(), cfg.Table.PageSize, cfg.Table.SessionTTL),
		secureCookies: cfg.Security.SecureCookies,
		router:        chi.NewRouter(),
	}
	if cfg.Rate.Enabled && cfg.Rate.RequestsPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Tracing)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)
	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.handleHealth)
	r.Get("/unlock", s.handleUnlockPage)
	r.Post("/unlock", s.handleUnlock)
	r.Post("/lock", s.handleLock)

	r.Group(func(r chi.Router) {
		r.Use(s.gate.Require("/unlock"))

		// Progress streams stay open for the whole batch.
		r.Get("/api/batches/{batchID}/progress", s.handleBatchProgress)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/", s.handleDashboard)

			r.Route("/api/table", func(r chi.Router) {
				r.Get("/", s.handleTableView)
				r.Post("/filter", s.handleSetFilter)
				r.Post("/filter/toggle", s.handleToggleCategory)
				r.Post("/filter/clear", s.handleClearFilters)
				r.Post("/sort", s.handleSort)
				r.Post("/columns", s.handleColumnVisibility)
				r.Post("/select", s.handleSelectRow)
				r.Post("/select-page", s.handleSelectPage)
				r.Post("/page", s.handleSetPage)
				r.Post("/page/next", s.handleNextPage)
				r.Post("/page/prev", s.handlePrevPage)
				r.Post("/refresh", s.handleRefresh)
				r.Get("/export.xlsx", s.handleExportXLSX)
			})

			r.Post("/api/batches", s.handleStartBatch)
			r.Get("/api/batches", s.handleListBatches)
			r.Get("/api/batches/{batchID}", s.handleGetBatch)
			r.Post("/api/batches/{batchID}/cancel", s.handleCancelBatch)
			r.Get("/api/batches/{batchID}/errors.json", s.handleErrorReport)
		})
	})
}

// Start runs background sweepers and listens until Shutdown.
func (s *Server) Start() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	go s.sessions.run(bgCtx)
	if s.limiter != nil {
		go s.limiter.run(bgCtx)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps progress streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("http server listening", "addr", s.server.Addr, "gate", s.gate.Enabled())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			h.Set("Content-Security-Policy", csp)
		}
		next.ServeHTTP(w, r)
	})
}
