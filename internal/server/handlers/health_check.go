package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
)

// HealthCheckResponse is the body of GET /api/health-check.
type HealthCheckResponse struct {
	Success     bool              `json:"success"`
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	Timestamp   string            `json:"timestamp"`
	Version     string            `json:"version"`
	Services    map[string]string `json:"services"`
	Uptime      float64           `json:"uptime"`
	Environment string            `json:"environment"`
}

// Pinger is implemented by rate-limit stores with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceHealth answers the client-facing health check.
type ServiceHealth struct {
	Gateway     Completer
	Store       ratelimit.Store
	Environment string
	StartedAt   time.Time
	Now         func() time.Time
}

// HealthCheck handles GET /api/health-check.
func (s *ServiceHealth) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	gemini := "not-configured"
	if s.Gateway != nil && s.Gateway.Configured() {
		gemini = "configured"
	}

	services := map[string]string{
		"server":    "running",
		"geminiAPI": gemini,
	}

	status, message := StatusHealthy, core.MsgHealthy
	if s.Store != nil {
		services["rateLimitStore"] = s.Store.Name()
		if p, ok := s.Store.(Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				services["rateLimitStore"] = s.Store.Name() + " (" + StatusUnhealthy + ")"
				status, message = StatusDegraded, core.MsgUnhealthy
			}
		}
	} else {
		services["rateLimitStore"] = "disabled"
	}

	var uptime float64
	if !s.StartedAt.IsZero() {
		uptime = now.Sub(s.StartedAt).Seconds()
	}

	writeJSON(w, http.StatusOK, HealthCheckResponse{
		Success:     true,
		Status:      status,
		Message:     message,
		Timestamp:   core.FormatTimestamp(now),
		Version:     AppVersion,
		Services:    services,
		Uptime:      uptime,
		Environment: s.Environment,
	})
}
