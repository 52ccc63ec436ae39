package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/tacopii/tacopii/internal/ailink/driver"
)

// DefaultModel is used when a request does not name one.
const DefaultModel = "gemini-1.5-flash"

const providerName = "gemini"

// Client implements the Gemini driver on top of the genai SDK.
//
// The SDK client is created lazily on first use so that a Client can be
// constructed without network access or credentials.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration

	once   sync.Once
	sdk    *genai.Client
	sdkErr error
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey, model string) *Client {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL: strings.TrimSpace(baseURL),
		APIKey:  strings.TrimSpace(apiKey),
		Model:   model,
	}
}

// Name returns the driver identifier.
func (c *Client) Name() string {
	return providerName
}

// Capabilities describes supported features.
func (c *Client) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		SupportsStreaming: false,
		SupportedModels:   []string{c.model("")},
	}
}

// Complete sends a single-turn generateContent request.
func (c *Client) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if c.APIKey == "" {
		return nil, &driver.Error{Provider: providerName, Kind: driver.KindAuth, Message: "api key is required"}
	}
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	sdk, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	gen := req.Generation
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(gen.Temperature),
		TopP:            genai.Ptr(gen.TopP),
		TopK:            genai.Ptr(float32(gen.TopK)),
		MaxOutputTokens: int32(gen.MaxOutputTokens),
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := sdk.Models.GenerateContent(ctx, c.model(req.Model), contents, config)
	if err != nil {
		return nil, classify(ctx, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &driver.Error{Provider: providerName, Kind: driver.KindUnknown, Message: "empty response"}
	}

	out := &driver.Response{Text: text}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.Usage = &driver.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *Client) model(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:     c.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.HTTPClient,
		}
		if c.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.BaseURL}
		}
		c.sdk, c.sdkErr = genai.NewClient(ctx, cfg)
		if c.sdkErr != nil {
			c.sdkErr = fmt.Errorf("create gemini client: %w", c.sdkErr)
		}
	})
	return c.sdk, c.sdkErr
}

// classify maps an SDK failure onto a driver error kind using the HTTP
// status, the RPC status and ErrorInfo reasons. Message text is not inspected.
func classify(ctx context.Context, err error) *driver.Error {
	out := &driver.Error{Provider: providerName, Kind: driver.KindUnknown, Message: err.Error(), Err: err}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.Kind = driver.KindTimeout
		out.Message = "request timed out"
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.Kind = driver.KindTimeout
		out.Message = "request timed out"
		return out
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		return out
	}

	out.StatusCode = apiErr.Code
	out.Status = apiErr.Status
	out.Reason = errorInfoReason(apiErr.Details)
	out.Message = strings.TrimSpace(apiErr.Message)

	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden,
		out.Reason == "API_KEY_INVALID",
		apiErr.Status == "UNAUTHENTICATED" || apiErr.Status == "PERMISSION_DENIED":
		out.Kind = driver.KindAuth
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Status == "RESOURCE_EXHAUSTED":
		out.Kind = driver.KindQuota
	case apiErr.Code == http.StatusGatewayTimeout, apiErr.Status == "DEADLINE_EXCEEDED":
		out.Kind = driver.KindTimeout
	}
	return out
}

func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func errorInfoReason(details []map[string]any) string {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.ErrorInfo") {
			continue
		}
		if reason, ok := d["reason"].(string); ok {
			return reason
		}
	}
	return ""
}
