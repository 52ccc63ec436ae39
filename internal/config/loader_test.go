package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacopii/tacopii/internal/core"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	require.NoError(t, BindEnv(v))
	return v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MAX_REQUESTS_PER_HOUR", "")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())

	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 60*time.Second, cfg.Gemini.Timeout)
	assert.False(t, cfg.Gemini.Configured())

	assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, time.Hour, cfg.RateLimit.Window)
	assert.Equal(t, 50, cfg.RateLimit.LimitFor(core.CategoryReview))
	assert.Equal(t, 100, cfg.RateLimit.LimitFor(core.CategoryConsultation))

	review := cfg.Generation.For("review")
	assert.InDelta(t, 0.7, review.Temperature, 0.0001)
	assert.Equal(t, 40, review.TopK)
	assert.Equal(t, 2048, review.MaxOutputTokens)
	assert.Equal(t, 1024, cfg.Generation.For("consultation").MaxOutputTokens)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Health.Enabled)

	assert.Same(t, cfg, GetConfig())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "  secret-key ")
	t.Setenv("MAX_REQUESTS_PER_HOUR", "5")
	t.Setenv("TACOPII_SERVER_PORT", "9999")
	t.Setenv("TACOPII_GEMINI_TIMEOUT", "15s")
	t.Setenv("TACOPII_RATE_LIMIT_BACKEND", "redis")
	t.Setenv("TACOPII_RATE_LIMIT_REDIS_ADDR", "redis:6379")

	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "secret-key", cfg.Gemini.APIKey)
	assert.True(t, cfg.Gemini.Configured())
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, BackendRedis, cfg.RateLimit.Backend)
	assert.Equal(t, "redis:6379", cfg.RateLimit.Redis.Addr)

	assert.Equal(t, 5, cfg.RateLimit.LimitFor(core.CategoryReview))
	assert.Equal(t, 5, cfg.RateLimit.LimitFor(core.CategoryConsultation))
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("MAX_REQUESTS_PER_HOUR", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
rate_limit:
  limits:
    review: 7
generation:
  consultation:
    temperature: 0.5
prompts:
  dir: /etc/tacopii/prompts
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.RateLimit.LimitFor(core.CategoryReview))
	assert.Equal(t, 100, cfg.RateLimit.LimitFor(core.CategoryConsultation))

	consult := cfg.Generation.For("consultation")
	assert.InDelta(t, 0.5, consult.Temperature, 0.0001)
	assert.Equal(t, 1024, consult.MaxOutputTokens)
	assert.Equal(t, "/etc/tacopii/prompts", cfg.Prompts.Dir)
}

func TestValidate(t *testing.T) {
	t.Setenv("MAX_REQUESTS_PER_HOUR", "")

	cases := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"TACOPII_RATE_LIMIT_BACKEND": "memcached"}},
		{"redis without addr", map[string]string{"TACOPII_RATE_LIMIT_BACKEND": "redis", "TACOPII_RATE_LIMIT_REDIS_ADDR": " "}},
		{"bad port", map[string]string{"TACOPII_SERVER_PORT": "70000"}},
		{"negative override", map[string]string{"MAX_REQUESTS_PER_HOUR": "-1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(newViper(t))
			require.Error(t, err)
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := DefaultConfigPath()
	require.NotEmpty(t, path)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Contains(t, path, AppName)
}
