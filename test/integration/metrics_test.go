package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacopii/tacopii/internal/ailink"
	"github.com/tacopii/tacopii/internal/ailink/driver"
	"github.com/tacopii/tacopii/internal/ailink/prompt"
	"github.com/tacopii/tacopii/internal/core"
	"github.com/tacopii/tacopii/internal/core/ratelimit"
	"github.com/tacopii/tacopii/internal/observability"
	"github.com/tacopii/tacopii/internal/server"
	"github.com/tacopii/tacopii/internal/server/handlers"
)

// echoDriver answers every prompt with a fixed persona reply.
type echoDriver struct{}

func (echoDriver) Complete(ctx context.Context, req *driver.Request) (*driver.Response, error) {
	return &driver.Response{Text: "だいじょうぶっピ", FinishReason: "STOP"}, nil
}

func (echoDriver) Name() string { return "echo" }

func (echoDriver) Capabilities() driver.Capabilities { return driver.Capabilities{} }

// cleanupMetrics tears down global telemetry state so each test starts clean.
// This matters in sandboxes where lingering exporters can block future binds.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

func newServer(t *testing.T, reviewLimit int) *server.Server {
	t.Helper()

	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	gw := ailink.NewWithDriver(echoDriver{}, ailink.Config{Timeout: 5 * time.Second}, observability.ServerLogger)
	store := ratelimit.NewMemoryStore(time.Minute)
	review := ratelimit.New(store, core.CategoryReview)
	review.Limit = reviewLimit

	return server.New(server.Options{
		API: &handlers.API{
			Gateway:    gw,
			Prompts:    prompt.NewBuilder(reg),
			Generation: ailink.DefaultGeneration(),
			Limiters: map[core.Category]handlers.RateChecker{
				core.CategoryReview:       review,
				core.CategoryConsultation: ratelimit.New(store, core.CategoryConsultation),
			},
			Logger: observability.ServerLogger,
		},
		ServiceHealth: &handlers.ServiceHealth{Gateway: gw, Store: store, Environment: "test", StartedAt: time.Now()},
		Health:        handlers.NewHealthManager(),
	})
}

// newTestServer binds to IPv4 loopback explicitly (avoiding IPv6-only defaults)
// and skips when the sandbox refuses to open sockets.
func newTestServer(t *testing.T, srv *server.Server) (*httptest.Server, *http.Client) {
	t.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func post(client *http.Client, url, body, clientIP string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", clientIP)
	return client.Do(req)
}

func initLoggers() {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLoggerOptions{Service: "test", Level: "error"})
}

func TestMetricsEndpoint_Integration(t *testing.T) {
	initLoggers()
	initMetricsOrSkip(t)

	ts, client := newTestServer(t, newServer(t, 5))
	serverURL := ts.URL

	const numRequests = 60
	const numWorkers = 10

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var (
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				var (
					resp *http.Response
					err  error
				)
				switch reqNum % 4 {
				case 0:
					resp, err = post(client, serverURL+"/api/generate-review",
						`{"code":"x := 1","fileName":"a.go","language":"go"}`, "198.51.100.1")
				case 1:
					resp, err = post(client, serverURL+"/api/consultation",
						`{"message":"つかれた"}`, fmt.Sprintf("198.51.100.%d", reqNum))
				case 2:
					resp, err = client.Get(serverURL + "/api/health-check")
				default:
					resp, err = client.Get(serverURL + "/nowhere")
				}
				if err != nil {
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				mu.Lock()
				statuses[resp.StatusCode]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)

	// 15 review requests from one client against a limit of 5.
	assert.Equal(t, 10, statuses[http.StatusTooManyRequests])
	assert.Equal(t, 15, statuses[http.StatusNotFound])
	assert.Equal(t, 5+15+15, statuses[http.StatusOK])

	resp, err := client.Get(serverURL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsContent := string(body)
	assert.Contains(t, metricsContent, "http_requests_total", "Should have HTTP request metrics")
	assert.Contains(t, metricsContent, "http_request_duration_ms", "Should have duration metrics")
	assert.Contains(t, metricsContent, "tacopii_completions_total", "Should count upstream completions")
	assert.Contains(t, metricsContent, "tacopii_ratelimit_decisions_total", "Should count rate limit decisions")
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
	t.Logf("Load test completed: %d requests in %v (%.2f req/s)", numRequests, elapsed, float64(numRequests)/elapsed.Seconds())
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	initLoggers()
	initMetricsOrSkip(t)

	ts, client := newTestServer(t, newServer(t, 50))
	serverURL := ts.URL

	resp, err := client.Get(serverURL + "/version")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(serverURL + "/metrics")
	require.NoError(t, err)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "text/plain"),
		"Expected Prometheus content type, got: %s", contentType)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)

	metricLines := 0
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if !strings.HasPrefix(line, "#") && strings.TrimSpace(line) != "" {
			metricLines++
		}
	}
	assert.Greater(t, metricLines, 0, "Should have actual metric values")
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	initLoggers()

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	ts, client := newTestServer(t, newServer(t, 50))

	resp, err := client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
