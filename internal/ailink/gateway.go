package ailink

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/driver/gemini"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/metrics"
)

// ErrNotConfigured is returned when no provider credential is available.
var ErrNotConfigured = errors.New("ailink gateway not configured")

// Gateway sends rendered prompts to the provider. It never retries.
type Gateway struct {
	Driver  driver.Driver
	Model   string
	Timeout time.Duration
	Limiter *rate.Limiter
	Logger  *logging.Logger
}

// New builds a gateway for the Gemini provider. Without an API key the
// gateway is returned unconfigured.
func New(cfg Config, logger *logging.Logger) *Gateway {
	var d driver.Driver
	if cfg.Configured() {
		d = gemini.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
	}
	return NewWithDriver(d, cfg, logger)
}

// NewWithDriver builds a gateway around an existing driver.
func NewWithDriver(d driver.Driver, cfg Config, logger *logging.Logger) *Gateway {
	g := &Gateway{
		Driver:  d,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Logger:  logger,
	}
	if cfg.Model == "" {
		g.Model = gemini.DefaultModel
	}
	if cfg.MaxRPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.Limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return g
}

// Configured reports whether the gateway can reach a provider.
func (g *Gateway) Configured() bool {
	return g != nil && g.Driver != nil
}

// Complete sends prompt and returns the generated text. slug identifies the
// prompt in logs and metrics. Failures are *driver.Error values.
func (g *Gateway) Complete(ctx context.Context, slug, prompt string, gen driver.GenerationConfig) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	provider := g.Driver.Name()

	if g.Limiter != nil && !g.Limiter.Allow() {
		err := &driver.Error{Provider: provider, Kind: driver.KindQuota, Message: "local upstream throttle exhausted"}
		g.record(slug, len(prompt), 0, err)
		return "", err
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.Driver.Complete(ctx, &driver.Request{
		Model:      g.Model,
		Prompt:     prompt,
		Generation: gen,
		PromptSlug: slug,
	})
	duration := time.Since(start)
	if err != nil {
		derr := normalize(ctx, provider, err)
		g.record(slug, len(prompt), duration, derr)
		return "", derr
	}

	g.record(slug, len(prompt), duration, nil)
	if !core.HasPersona(resp.Text) && g.Logger != nil {
		g.Logger.Warn("Response is missing persona suffix",
			zap.String("prompt", slug),
			zap.Int("response_length", len(resp.Text)))
	}
	return resp.Text, nil
}

func (g *Gateway) record(slug string, promptLen int, duration time.Duration, err *driver.Error) {
	outcome := "success"
	if err != nil {
		outcome = string(err.Kind)
	}
	metrics.RecordCompletion(g.Driver.Name(), slug, outcome, duration)

	if g.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("provider", g.Driver.Name()),
		zap.String("model", g.Model),
		zap.String("prompt", slug),
		zap.Int("prompt_length", promptLen),
		zap.Int64("duration_ms", duration.Milliseconds()),
	}
	if err != nil {
		fields = append(fields, zap.String("error_kind", string(err.Kind)), zap.Error(err))
		g.Logger.Error("Upstream completion failed", fields...)
		return
	}
	g.Logger.Info("Upstream completion", fields...)
}

func normalize(ctx context.Context, provider string, err error) *driver.Error {
	var derr *driver.Error
	if errors.As(err, &derr) {
		return derr
	}
	kind := driver.KindUnknown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = driver.KindTimeout
	}
	return &driver.Error{Provider: provider, Kind: kind, Message: err.Error(), Err: err}
}
