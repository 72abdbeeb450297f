package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/nickfitnesscoach-ctrl/telegram-wg-bot/internal/server/handlers"
)

func (s *Server) registerRoutes(health *handlers.HealthManager, version http.HandlerFunc) {
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", version)
	s.router.Get("/metrics", s.metrics.ServeHTTP)

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes gofulmen's signal handler (shutdown, reload)
// behind a bearer token. Without server.admin_token the route does not exist.
func (s *Server) registerAdminEndpoint() {
	if s.cfg.AdminToken == "" {
		s.logger.Debug("Admin signal endpoint disabled")
		return
	}
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.cfg.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)
	s.logger.Warn("Admin signal endpoint enabled; keep the health port off the public internet",
		zap.String("path", "/admin/signal"))
}
