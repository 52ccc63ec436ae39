package metrics

import (
	"time"

	"github.com/tacopii/tacopii/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Rate limiting
	RateLimitDecisionsTotal = "tacopii_ratelimit_decisions_total"
	RateLimitStoreErrors    = "tacopii_ratelimit_store_errors_total"

	// Upstream completions
	CompletionsTotal   = "tacopii_completions_total"
	CompletionDuration = "tacopii_completion_duration_ms"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
	ServerUptime    = "app_server_uptime_seconds"
)

// RecordRateLimitDecision counts one allow/deny outcome for a category.
func RecordRateLimitDecision(category string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionsTotal,
			1,
			map[string]string{
				"category": category,
				"decision": decision,
			},
		)
	}
}

// RecordRateLimitStoreError counts a store failure that was let through.
func RecordRateLimitStoreError(store string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitStoreErrors,
			1,
			map[string]string{
				"store": store,
			},
		)
	}
}

// RecordCompletion records an upstream completion. outcome is "success" or
// the failure kind.
func RecordCompletion(provider, prompt, outcome string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CompletionsTotal,
			1,
			map[string]string{
				"provider": provider,
				"prompt":   prompt,
				"outcome":  outcome,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			CompletionDuration,
			duration,
			map[string]string{
				"provider": provider,
				"prompt":   prompt,
			},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
