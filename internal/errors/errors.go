package errors

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/metrics"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server/middleware"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeUpstreamAuth         = "UPSTREAM_AUTH"
	CodeUpstreamQuota        = "UPSTREAM_QUOTA"
	CodeUpstreamTimeout      = "UPSTREAM_TIMEOUT"
	CodeUpstreamError        = "UPSTREAM_ERROR"
	CodeServiceNotConfigured = "SERVICE_NOT_CONFIGURED"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeNotFound             = "NOT_FOUND"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
)

// DetailRateLimitReset carries the window reset (ms epoch) on rate-limit errors.
const DetailRateLimitReset = "rateLimitReset"

// User Errors (400-level)
func NewValidationError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeValidationFailed, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

// NewRateLimitedError reports a denied request. resetAt is exposed to the
// caller as rateLimitReset.
func NewRateLimitedError(message string, resetAt time.Time) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeRateLimited, message).
		WithDetails(map[string]interface{}{
			DetailRateLimitReset: resetAt.UnixMilli(),
		})
	env, _ = env.WithSeverity(errors.SeverityMedium)
	return env
}

// Server Errors (500-level)
func NewInternalError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeInternalError, message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

func NewNotConfiguredError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeServiceNotConfigured, message)
	env, _ = env.WithSeverity(errors.SeverityCritical)
	return env
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeServiceUnavailable, message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// UpstreamCode maps a provider failure kind to an error code.
func UpstreamCode(kind driver.ErrorKind) string {
	switch kind {
	case driver.KindAuth:
		return CodeUpstreamAuth
	case driver.KindQuota:
		return CodeUpstreamQuota
	case driver.KindTimeout:
		return CodeUpstreamTimeout
	default:
		return CodeUpstreamError
	}
}

// WrapUpstream converts a provider failure into an envelope with the
// caller-facing message. The provider detail stays in the log context only.
func WrapUpstream(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	kind := driver.KindOf(err)
	envelope := errors.NewErrorEnvelope(UpstreamCode(kind), message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = withWrappedError(envelope, err)

	severity := errors.SeverityHigh
	if kind == driver.KindQuota || kind == driver.KindTimeout {
		severity = errors.SeverityMedium
	}
	envelope, _ = envelope.WithSeverity(severity)
	return envelope
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope(CodeInternalError, message)
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = withWrappedError(envelope, err)
	envelope, _ = envelope.WithSeverity(errors.SeverityHigh)
	return envelope
}

// extractCorrelationID gets correlation ID from context, falls back to generating new UUID
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternalError, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	env := errors.NewErrorEnvelope(CodeInternalError, core.Messages(core.CategoryReview).Failure)
	env, _ = env.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

// EnsureCorrelationID attaches a correlation ID to the envelope using the context when available.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	if envelope.CorrelationID != "" {
		return envelope
	}

	var correlationID string
	if ctx != nil {
		correlationID = middleware.GetRequestID(ctx)
	}

	if correlationID == "" {
		correlationID = "fallback-" + errors.GenerateCorrelationID()
	}

	return envelope.WithCorrelationID(correlationID)
}

// HTTPStatusFromEnvelope resolves the HTTP status code corresponding to an error envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code corresponding to an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeUpstreamAuth:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeUpstreamTimeout:
		return http.StatusRequestTimeout
	case CodeRateLimited, CodeUpstreamQuota:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

// HTTPErrorResponse is the error body returned to callers.
type HTTPErrorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	Code           string `json:"code"`
	RequestID      string `json:"requestId,omitempty"`
	Timestamp      string `json:"timestamp"`
	RateLimitReset *int64 `json:"rateLimitReset,omitempty"`
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope finalizes the provided envelope, logging and emitting metrics.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}

	statusCode := HTTPStatusFromEnvelope(envelope)

	response := HTTPErrorResponse{
		Success:        false,
		Error:          envelope.Message,
		Code:           envelope.Code,
		RequestID:      envelope.CorrelationID,
		Timestamp:      core.FormatTimestamp(time.Now()),
		RateLimitReset: rateLimitReset(envelope),
	}

	logHTTPError(envelope, statusCode)
	emitErrorMetrics(r, envelope, statusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func rateLimitReset(envelope *errors.ErrorEnvelope) *int64 {
	if envelope == nil || envelope.Details == nil {
		return nil
	}
	var ms int64
	switch v := envelope.Details[DetailRateLimitReset].(type) {
	case int64:
		ms = v
	case int:
		ms = int64(v)
	case float64:
		ms = int64(v)
	default:
		return nil
	}
	return &ms
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}

	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}

	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}

func emitErrorMetrics(r *http.Request, envelope *errors.ErrorEnvelope, statusCode int) {
	if envelope == nil {
		return
	}

	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}
}
