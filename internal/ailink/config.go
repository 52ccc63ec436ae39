package ailink

import (
	"strings"
	"time"

	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
)

// Config defines the upstream provider settings (the gemini config section).
type Config struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxRPS enables a local token bucket in front of the provider. Zero
	// disables it. Burst defaults to 1 when MaxRPS is set.
	MaxRPS float64 `mapstructure:"max_rps"`
	Burst  int     `mapstructure:"burst"`
}

// Configured reports whether an API key is present.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// GenerationConfigs holds generation settings per prompt slug.
type GenerationConfigs map[string]driver.GenerationConfig

// DefaultGeneration returns the built-in generation settings.
func DefaultGeneration() GenerationConfigs {
	review := driver.GenerationConfig{Temperature: 0.7, TopK: 40, TopP: 0.95, MaxOutputTokens: 2048}
	return GenerationConfigs{
		prompt.SlugReview:       review,
		prompt.SlugConsultation: {Temperature: 0.9, TopK: 40, TopP: 0.95, MaxOutputTokens: 1024},
		prompt.SlugFollowUp:     review,
		prompt.SlugComparison:   review,
	}
}

// For returns the settings for slug, falling back to the review settings.
func (g GenerationConfigs) For(slug string) driver.GenerationConfig {
	if cfg, ok := g[slug]; ok {
		return cfg
	}
	if cfg, ok := g[prompt.SlugReview]; ok {
		return cfg
	}
	return DefaultGeneration()[prompt.SlugReview]
}
