package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/observability"
	"github.com/nodeproxy/nodeproxy/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/", handlers.LandingHandler(s.landing))
	if s.proxy != nil {
		s.router.Post("/", s.proxy.ServeHTTP)
	}

	if s.health != nil {
		s.router.Get("/health", s.health.HealthHandler)
		s.router.Get("/health/live", s.health.LivenessHandler)
		s.router.Get("/health/ready", s.health.ReadinessHandler)
		s.router.Get("/health/startup", s.health.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler(s.metricsPort))

	s.registerAdminRoutes()
}

// registerAdminRoutes mounts /admin behind the network allow-list. Without
// an allow-list nothing is mounted.
func (s *Server) registerAdminRoutes() {
	logger := observability.Logger()
	if s.adminNetworks == nil {
		logger.Debug("Admin endpoints disabled")
		return
	}

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(s.adminNetworks.Restrict(func(w http.ResponseWriter, req *http.Request) {
			HandleError(w, req, apperrors.NewForbiddenError("admin endpoints are restricted by client network"))
		}))

		r.Get("/ratelimits", handlers.RateLimitsHandler(s.rateLimits))

		if s.adminToken == "" {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
			return
		}

		handler := signals.NewHTTPHandler(signals.HTTPConfig{
			TokenAuth: s.adminToken,
			RateLimit: 10, // per minute
			RateBurst: 5,
			Manager:   nil,
		})
		r.Post("/signal", handler.ServeHTTP)

		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
	})

	logger.Info("Admin endpoints enabled", zap.String("path", "/admin/ratelimits"))
}
