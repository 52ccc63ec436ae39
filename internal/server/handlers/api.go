package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
	apperrors "github.com/tacopii/tacopii/internal/errors"
	"github.com/tacopii/tacopii/internal/metrics"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server/middleware"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Rate-limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Completer sends a rendered prompt upstream.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, slug, prompt string, gen driver.GenerationConfig) (string, error)
}

// RateChecker records one request for a client key.
type RateChecker interface {
	Check(ctx context.Context, clientKey string) (ratelimit.Decision, error)
}

// API serves the AI-backed endpoints. A category without a limiter is not
// rate limited.
type API struct {
	Gateway      Completer
	Prompts      *prompt.Builder
	Generation   ailink.GenerationConfigs
	Limiters     map[core.Category]RateChecker
	MaxBodyBytes int64
	Logger       *logging.Logger
	Now          func() time.Time
}

type endpoint[T any] struct {
	category core.Category
	slug     string
	field    string
	validate func(T) []string
	render   func(*prompt.Builder, T) (string, error)
	metadata func(T) map[string]any
}

var reviewEndpoint = endpoint[core.ReviewRequest]{
	category: core.CategoryReview,
	slug:     prompt.SlugReview,
	field:    "review",
	validate: core.ValidateReview,
	render:   (*prompt.Builder).Review,
	metadata: func(req core.ReviewRequest) map[string]any {
		focus := req.FocusAreas
		if focus == nil {
			focus = []string{}
		}
		return map[string]any{
			"fileName":    req.FileName,
			"language":    req.Language,
			"reviewLevel": req.Level(),
			"focusAreas":  focus,
			"codeLength":  core.CharCount(req.Code),
		}
	},
}

var consultationEndpoint = endpoint[core.ConsultationRequest]{
	category: core.CategoryConsultation,
	slug:     prompt.SlugConsultation,
	field:    "consolation",
	validate: core.ValidateConsultation,
	render:   (*prompt.Builder).Consultation,
	metadata: func(req core.ConsultationRequest) map[string]any {
		return map[string]any{
			"messageLength": core.CharCount(req.Message),
			"hasHistory":    len(req.MessageHistory) > 0,
			"historyLength": len(req.MessageHistory),
		}
	},
}

var followUpEndpoint = endpoint[core.FollowUpRequest]{
	category: core.CategoryReview,
	slug:     prompt.SlugFollowUp,
	field:    "answer",
	validate: core.ValidateFollowUp,
	render:   (*prompt.Builder).FollowUp,
	metadata: func(req core.FollowUpRequest) map[string]any {
		return map[string]any{
			"codeLength":     core.CharCount(req.Code),
			"questionLength": core.CharCount(req.Question),
		}
	},
}

var comparisonEndpoint = endpoint[core.ComparisonRequest]{
	category: core.CategoryReview,
	slug:     prompt.SlugComparison,
	field:    "comparison",
	validate: core.ValidateComparison,
	render:   (*prompt.Builder).Comparison,
	metadata: func(req core.ComparisonRequest) map[string]any {
		return map[string]any{
			"fileName":       req.FileName,
			"language":       req.Language,
			"originalLength": core.CharCount(req.OriginalCode),
			"improvedLength": core.CharCount(req.ImprovedCode),
		}
	},
}

// GenerateReview handles POST /api/generate-review.
func (a *API) GenerateReview(w http.ResponseWriter, r *http.Request) {
	serve(a, reviewEndpoint, w, r)
}

// Consultation handles POST /api/consultation.
func (a *API) Consultation(w http.ResponseWriter, r *http.Request) {
	serve(a, consultationEndpoint, w, r)
}

// FollowUp handles POST /api/follow-up.
func (a *API) FollowUp(w http.ResponseWriter, r *http.Request) {
	serve(a, followUpEndpoint, w, r)
}

// CompareReview handles POST /api/compare-review.
func (a *API) CompareReview(w http.ResponseWriter, r *http.Request) {
	serve(a, comparisonEndpoint, w, r)
}

func serve[T any](a *API, ep endpoint[T], w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msgs := core.Messages(ep.category)
	started := time.Now()

	var req T
	if err := a.decode(w, r, &req); err != nil {
		respondWithError(w, r, apperrors.NewValidationError(core.MsgInvalidJSON))
		return
	}

	if errs := ep.validate(req); len(errs) > 0 {
		respondWithError(w, r, apperrors.NewValidationError(core.JoinValidation(errs)))
		return
	}

	decision, limited := a.checkRate(ctx, ep.category)
	if decision != nil {
		setRateLimitHeaders(w, *decision)
	}
	if limited {
		w.Header().Set(HeaderRetryAfter, retryAfterSeconds(decision.RetryAfter(a.now())))
		respondWithError(w, r, apperrors.NewRateLimitedError(msgs.RateLimited, decision.ResetAt))
		return
	}

	if a.Gateway == nil || !a.Gateway.Configured() {
		respondWithError(w, r, apperrors.NewNotConfiguredError(msgs.NotConfigured))
		return
	}

	rendered, err := ep.render(a.Prompts, req)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(ctx, err, msgs.Failure))
		return
	}

	text, err := a.Gateway.Complete(ctx, ep.slug, rendered, a.Generation.For(ep.slug))
	if err != nil {
		if errors.Is(err, ailink.ErrNotConfigured) {
			respondWithError(w, r, apperrors.NewNotConfiguredError(msgs.NotConfigured))
			return
		}
		respondWithError(w, r, apperrors.WrapUpstream(ctx, err, UpstreamMessage(msgs, driver.KindOf(err))))
		return
	}

	if logger := a.logger(); logger != nil {
		logger.Info("Completed AI request",
			zap.String("prompt", ep.slug),
			zap.String("client_key", middleware.GetClientKey(ctx)),
			zap.String("request_id", middleware.GetRequestID(ctx)),
			zap.Int("response_length", core.CharCount(text)),
			zap.Duration("duration", time.Since(started)))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		ep.field:    text,
		"timestamp": core.FormatTimestamp(a.now()),
		"metadata":  ep.metadata(req),
	})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	limit := a.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(dst)
}

// checkRate returns the decision to report, if any, and whether the request
// was denied. Store failures let the request through.
func (a *API) checkRate(ctx context.Context, category core.Category) (*ratelimit.Decision, bool) {
	checker, ok := a.Limiters[category]
	if !ok || checker == nil {
		return nil, false
	}

	decision, err := checker.Check(ctx, middleware.GetClientKey(ctx))
	if err != nil {
		metrics.RecordRateLimitStoreError(storeName(checker))
		if logger := a.logger(); logger != nil {
			logger.Warn("Rate limit store unavailable, allowing request",
				zap.String("category", string(category)),
				zap.String("request_id", middleware.GetRequestID(ctx)),
				zap.Error(err))
		}
		return nil, false
	}

	metrics.RecordRateLimitDecision(string(category), decision.Allowed)
	return &decision, !decision.Allowed
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *API) logger() *logging.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return observability.ServerLogger
}

func storeName(checker RateChecker) string {
	if l, ok := checker.(*ratelimit.Limiter); ok && l != nil && l.Store != nil {
		return l.Store.Name()
	}
	return "unknown"
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}

// UpstreamMessage picks the persona message for a failed completion.
func UpstreamMessage(msgs core.PersonaMessages, kind driver.ErrorKind) string {
	switch kind {
	case driver.KindAuth:
		return msgs.Auth
	case driver.KindQuota:
		return msgs.Quota
	case driver.KindTimeout:
		return msgs.Timeout
	default:
		return msgs.Failure
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
