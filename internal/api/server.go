package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sikaguard/sikaguard/internal/domain"
	"github.com/sikaguard/sikaguard/internal/risk"
	"github.com/sikaguard/sikaguard/internal/rules"
)

// Server is the HTTP front door: a chi router over the handler with
// the shared middleware stack applied.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer wires the handler and routes. Health endpoints sit
// outside the tenant gate; everything else requires X-Tenant-ID.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, analyzer *risk.Analyzer, engine *rules.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, analyzer, engine, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Analysis pipeline
		r.Post("/analyze", handler.Analyze)
		r.Get("/analyses/{id}", handler.GetAnalysis)
		r.Get("/transactions/{id}", handler.GetTransaction)
		r.Get("/transactions/{id}/audit", handler.GetAuditTrail)
		r.Get("/alerts", handler.ListAlerts)

		// Blacklist management
		r.Get("/blacklist", handler.ListBlacklist)
		r.Post("/blacklist", handler.CreateBlacklistEntry)
		r.Delete("/blacklist/{id}", handler.DeleteBlacklistEntry)

		// Supplemental rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the chi router, mainly for httptest.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler exposes the underlying handler, mainly for tests.
func (s *Server) Handler() *Handler {
	return s.handler
}
