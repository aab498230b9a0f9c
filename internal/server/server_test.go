package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"index-coordinator/internal/config"
	"index-coordinator/internal/coordinator"
	"index-coordinator/internal/handler"
	"index-coordinator/internal/metrics"
	"index-coordinator/internal/utils"
	"index-coordinator/pkg/logger"
)

type staticCoordinator struct{}

func (staticCoordinator) Status() coordinator.Status       { return coordinator.Status{MaxWorkers: 1} }
func (staticCoordinator) ProjectState(string) (bool, bool) { return false, false }
func (staticCoordinator) Reserve(string) (func(), bool)    { return func() {}, true }
func (staticCoordinator) Wake()                            {}

func newTestServer(t *testing.T, cfg config.ConfigServer, metricsHandler http.Handler) http.Handler {
	log := logger.NewZapLogger(zap.NewNop())
	h := handler.NewAdminHandler(nil, nil, nil, staticCoordinator{}, log)
	return NewServer(cfg, h, metricsHandler, log).Handler()
}

func serve(h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	config.SetAppInfo(config.AppInfo{AppName: "index-coordinator", Version: "1.2.3"})
	t.Cleanup(func() { config.SetAppInfo(config.AppInfo{}) })
	h := newTestServer(t, config.DefaultConfigServer, nil)

	w := serve(h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestMetricsRoute(t *testing.T) {
	provider, err := metrics.NewProvider()
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	withMetrics := newTestServer(t, config.DefaultConfigServer, provider.Handler())
	w := serve(withMetrics, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	withoutMetrics := newTestServer(t, config.DefaultConfigServer, nil)
	w = serve(withoutMetrics, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoordinatorStatusRoute(t *testing.T) {
	h := newTestServer(t, config.DefaultConfigServer, nil)

	w := serve(h, http.MethodGet, "/api/v1/coordinator/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"maxWorkers":1`)
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, config.DefaultConfigServer, nil)

	w := serve(h, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	const clientID = "0190f1a2-7b3c-7d4e-8f50-123456789abc"
	w = serve(h, http.MethodGet, "/healthz", http.Header{requestIDHeader: []string{clientID}})
	assert.Equal(t, clientID, w.Header().Get(requestIDHeader))

	w = serve(h, http.MethodGet, "/healthz", http.Header{requestIDHeader: []string{"req-42"}})
	replaced := w.Header().Get(requestIDHeader)
	assert.NotEqual(t, "req-42", replaced)
	assert.True(t, utils.IsValidUUID(replaced))
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, config.ConfigServer{RateLimitPerSecond: 1}, nil)

	w := serve(h, http.MethodGet, "/api/v1/coordinator/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(h, http.MethodGet, "/api/v1/coordinator/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 健康检查不受限流影响
	w = serve(h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRoutes(t *testing.T) {
	h := newTestServer(t, config.DefaultConfigServer, nil)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/nope", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/healthz", nil).Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RecoveryMiddleware(logger.NewZapLogger(zap.NewNop())))
	engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(engine, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}
