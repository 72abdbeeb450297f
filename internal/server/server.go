// Package server exposes the bot's operational HTTP surface: health checks,
// version and Prometheus metrics. It never serves bot traffic.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/config"
	apperrors "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/errors"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/observability"
	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/server/handlers"
	servermw "github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/server/middleware"
)

// Options wires the server to the rest of the process.
type Options struct {
	Config   config.ServerConfig
	Health   *handlers.HealthManager
	Build    handlers.BuildInfo
	Identity *appidentity.Identity
	Bot      *handlers.BotInfo
	// MetricsPort is where the Prometheus exporter listens; 0 disables /metrics.
	MetricsPort int
	Logger      observability.Logger
}

// Server is the health/version/metrics HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     config.ServerConfig
	metrics *metricsProxy
	logger  observability.Logger
}

// New builds the router. Middleware order: RealIP, RequestID, RequestMetrics,
// Recovery (innermost, so panics are still measured).
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	health := opts.Health
	if health == nil {
		health = handlers.NewHealthManager(opts.Build.Version)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithEnvelope(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:  r,
		cfg:     opts.Config,
		metrics: newMetricsProxy(opts.MetricsPort),
		logger:  logger,
	}
	s.registerRoutes(health, handlers.VersionHandler(opts.Build, opts.Identity, opts.Bot))
	return s
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start blocks serving until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadTimeout:       orDefault(s.cfg.ReadTimeout, 15*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      orDefault(s.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       orDefault(s.cfg.IdleTimeout, 60*time.Second),
	}

	s.logger.Info("Starting health server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Shutting down health server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
