package driver

import "context"

// Driver defines the interface for AI completion providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "gemini").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsStreaming bool
	SupportedModels   []string
}

// GenerationConfig is forwarded to the provider as-is.
type GenerationConfig struct {
	Temperature     float32 `json:"temperature" mapstructure:"temperature"`
	TopK            int     `json:"top_k" mapstructure:"top_k"`
	TopP            float32 `json:"top_p" mapstructure:"top_p"`
	MaxOutputTokens int     `json:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request. Prompt is sent as a
// single user turn.
type Request struct {
	Model      string
	Prompt     string
	Generation GenerationConfig
	PromptSlug string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Text         string
	FinishReason string
	Usage        *Usage
}
