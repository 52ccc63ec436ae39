// Package config loads Tacopii configuration from defaults, an optional
// YAML file and the environment into a typed Config.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/driver/gemini"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
)

const (
	// AppName names the binary and the XDG config directory.
	AppName = "tacopii"

	// EnvPrefix prefixes environment overrides, e.g. TACOPII_SERVER_PORT.
	EnvPrefix = "TACOPII"
)

// Rate-limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// envBindings maps config keys to environment variables beyond the
// automatic TACOPII_ prefix. The first variable that is set wins.
var envBindings = map[string][]string{
	"gemini.api_key":                   {"GEMINI_API_KEY", EnvPrefix + "_GEMINI_API_KEY"},
	"rate_limit.max_requests_per_hour": {"MAX_REQUESTS_PER_HOUR", EnvPrefix + "_MAX_REQUESTS_PER_HOUR"},
	"environment":                      {EnvPrefix + "_ENVIRONMENT", "NODE_ENV"},
	"logging.level":                    {EnvPrefix + "_LOG_LEVEL", EnvPrefix + "_LOGGING_LEVEL"},
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// Upstream defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", gemini.DefaultModel)
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.timeout", "60s")
	v.SetDefault("gemini.max_rps", 0)
	v.SetDefault("gemini.burst", 0)

	// Rate limit defaults
	v.SetDefault("rate_limit.backend", BackendMemory)
	v.SetDefault("rate_limit.window", ratelimit.DefaultWindow.String())
	v.SetDefault("rate_limit.cleanup_interval", "1m")
	v.SetDefault("rate_limit.max_requests_per_hour", 0)
	for category, limit := range ratelimit.DefaultLimits {
		v.SetDefault("rate_limit.limits."+string(category), limit)
	}
	v.SetDefault("rate_limit.redis.addr", "localhost:6379")
	v.SetDefault("rate_limit.redis.password", "")
	v.SetDefault("rate_limit.redis.db", 0)
	v.SetDefault("rate_limit.redis.key_prefix", ratelimit.DefaultRedisPrefix)

	// Generation defaults, per field so a config file can override one value
	for slug, gen := range ailink.DefaultGeneration() {
		prefix := "generation." + slug + "."
		v.SetDefault(prefix+"temperature", gen.Temperature)
		v.SetDefault(prefix+"top_k", gen.TopK)
		v.SetDefault(prefix+"top_p", gen.TopP)
		v.SetDefault(prefix+"max_output_tokens", gen.MaxOutputTokens)
	}

	v.SetDefault("prompts.dir", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// BindEnv enables TACOPII_* overrides for every known key plus the
// unprefixed variables the service has always honoured.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes the settings held by v into a Config and validates it.
// SetDefaults and BindEnv should have been applied to v.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

func (c *Config) normalize() {
	c.Environment = strings.TrimSpace(c.Environment)
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.RateLimit.Backend = strings.ToLower(strings.TrimSpace(c.RateLimit.Backend))
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = BackendMemory
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = ratelimit.DefaultWindow
	}
	if c.Generation == nil {
		c.Generation = ailink.DefaultGeneration()
	}
}

// Validate reports settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RateLimit.Redis.Addr) == "" {
			return fmt.Errorf("rate_limit.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}

	if c.RateLimit.MaxRequestsPerHour < 0 {
		return fmt.Errorf("rate_limit.max_requests_per_hour must not be negative")
	}
	for _, category := range []core.Category{core.CategoryReview, core.CategoryConsultation} {
		if c.RateLimit.LimitFor(category) <= 0 {
			return fmt.Errorf("rate_limit.limits.%s must be positive", category)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Gemini.Timeout < 0 {
		return fmt.Errorf("gemini.timeout must not be negative")
	}
	if c.Gemini.MaxRPS < 0 {
		return fmt.Errorf("gemini.max_rps must not be negative")
	}
	return nil
}

// ShutdownTimeout returns the configured shutdown timeout, defaulting to ten seconds.
func (c *Config) ShutdownTimeout() time.Duration {
	if c == nil || c.Server.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return c.Server.ShutdownTimeout
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}
