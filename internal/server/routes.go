package server

import (
	"net/http"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Use(preflight)

		if api := s.opts.API; api != nil {
			r.Post("/generate-review", api.GenerateReview)
			r.Post("/consultation", api.Consultation)
			r.Post("/follow-up", api.FollowUp)
			r.Post("/compare-review", api.CompareReview)
		}
		if sh := s.opts.ServiceHealth; sh != nil {
			r.Get("/health-check", sh.HealthCheck)
		}
	})

	if hm := s.opts.Health; hm != nil {
		s.router.Get("/health/live", hm.LivenessHandler)
		s.router.Get("/health/ready", hm.ReadinessHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", s.MetricsHandler)

	s.registerAdminEndpoint()
}

// preflight answers OPTIONS on any /api path with an empty JSON object.
// CORS headers are already set by the cors middleware.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	})
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger

	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10, // per minute
		RateBurst: 5,
		Manager:   nil,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
