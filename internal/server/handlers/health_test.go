package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
	apperrors "github.com/tacopii/tacopii/internal/errors"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

func TestReadinessReportsHealthyChecks(t *testing.T) {
	manager := NewHealthManager()
	manager.RegisterChecker("ok", stubChecker{})

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"])
	assert.NotEmpty(t, resp.Timestamp)
}

func TestReadinessReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager()
	manager.RegisterChecker("ok", stubChecker{})
	manager.RegisterChecker("redis", stubChecker{err: errors.New("down")})

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, apperrors.CodeServiceUnavailable, resp.Code)
	assert.Equal(t, core.MsgUnhealthy, resp.Error)
	assert.NotContains(t, rec.Body.String(), "down")
}

func TestLivenessRunsNoChecks(t *testing.T) {
	manager := NewHealthManager()
	manager.RegisterChecker("redis", stubChecker{err: errors.New("down")})

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckMarksCancelledContextAsTimeout(t *testing.T) {
	manager := NewHealthManager()
	manager.RegisterChecker("redis", stubChecker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks, status := manager.Check(ctx)
	assert.Equal(t, StatusTimeout, checks["redis"])
	assert.Equal(t, StatusDegraded, status)
}

type pingStore struct {
	ratelimit.Store
	err error
}

func (p pingStore) Name() string                   { return "redis" }
func (p pingStore) Ping(ctx context.Context) error { return p.err }

func TestServiceHealthCheck(t *testing.T) {
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Second)

	tests := []struct {
		name        string
		gateway     Completer
		store       ratelimit.Store
		wantStatus  string
		wantMessage string
		wantGemini  string
		wantStore   string
	}{
		{
			name:        "configured with memory store",
			gateway:     &stubGateway{configured: true},
			store:       ratelimit.NewMemoryStore(time.Minute),
			wantStatus:  StatusHealthy,
			wantMessage: core.MsgHealthy,
			wantGemini:  "configured",
			wantStore:   "memory",
		},
		{
			name:        "missing api key",
			gateway:     &stubGateway{},
			store:       ratelimit.NewMemoryStore(time.Minute),
			wantStatus:  StatusHealthy,
			wantMessage: core.MsgHealthy,
			wantGemini:  "not-configured",
			wantStore:   "memory",
		},
		{
			name:        "unreachable redis",
			gateway:     &stubGateway{configured: true},
			store:       pingStore{err: errors.New("connection refused")},
			wantStatus:  StatusDegraded,
			wantMessage: core.MsgUnhealthy,
			wantGemini:  "configured",
			wantStore:   "redis (unhealthy)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &ServiceHealth{
				Gateway:     tt.gateway,
				Store:       tt.store,
				Environment: "test",
				StartedAt:   started,
				Now:         func() time.Time { return now },
			}

			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health-check", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp HealthCheckResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, "running", resp.Services["server"])
			assert.Equal(t, tt.wantGemini, resp.Services["geminiAPI"])
			assert.Equal(t, tt.wantStore, resp.Services["rateLimitStore"])
			assert.Equal(t, "test", resp.Environment)
			assert.InDelta(t, 90.0, resp.Uptime, 0.001)
			assert.Equal(t, "2026-01-01T00:01:30.000Z", resp.Timestamp)
		})
	}
}
