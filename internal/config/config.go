package config

import (
	"time"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/core"
)

// Config represents the complete application configuration. Values come
// from defaults, then the config file, then environment variables.
type Config struct {
	Environment string                   `mapstructure:"environment"`
	Server      ServerConfig             `mapstructure:"server"`
	Gemini      ailink.Config            `mapstructure:"gemini"`
	RateLimit   RateLimitConfig          `mapstructure:"rate_limit"`
	Generation  ailink.GenerationConfigs `mapstructure:"generation"`
	Prompts     PromptsConfig            `mapstructure:"prompts"`
	Logging     LoggingConfig            `mapstructure:"logging"`
	Metrics     MetricsConfig            `mapstructure:"metrics"`
	Health      HealthConfig             `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// RateLimitConfig selects the rate-limit store and per-category budgets.
type RateLimitConfig struct {
	// Backend is "memory" (single instance) or "redis".
	Backend         string         `mapstructure:"backend"`
	Window          time.Duration  `mapstructure:"window"`
	Limits          map[string]int `mapstructure:"limits"`
	CleanupInterval time.Duration  `mapstructure:"cleanup_interval"`

	// MaxRequestsPerHour overrides every category limit when positive.
	MaxRequestsPerHour int `mapstructure:"max_requests_per_hour"`

	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the shared rate-limit store.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LimitFor returns the per-window budget for category.
func (r RateLimitConfig) LimitFor(category core.Category) int {
	if r.MaxRequestsPerHour > 0 {
		return r.MaxRequestsPerHour
	}
	if limit, ok := r.Limits[string(category)]; ok && limit > 0 {
		return limit
	}
	return 0
}

// PromptsConfig points at an optional directory overriding the built-in prompts.
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level (simple, structured)
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port. /metrics on the main
	// port proxies to it.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}
