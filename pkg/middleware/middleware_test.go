package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/syncvault/pkg/configs"
	"github.com/yeisme/syncvault/pkg/middleware"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(mw...)

	return r
}

func serve(r *gin.Engine, req *http.Request) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w.Code
}

func TestRateLimitGlobal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newEngine(middleware.RateLimitMiddleware(ctx, configs.RateLimitConfig{
		Enabled:   true,
		RPS:       0.001,
		Burst:     2,
		Key:       "global",
		SkipPaths: []string{"/healthz"},
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)))
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)))

	for range 5 {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)))
	}
}

func TestRateLimitPerHeader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newEngine(middleware.RateLimitMiddleware(ctx, configs.RateLimitConfig{
		Enabled: true,
		RPS:     0.001,
		Burst:   1,
		Key:     "header:X-Client",
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := func(client string) *http.Request {
		rq := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rq.Header.Set("X-Client", client)

		return rq
	}

	assert.Equal(t, http.StatusOK, serve(r, req("a")))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, req("a")))
	assert.Equal(t, http.StatusOK, serve(r, req("b")))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newEngine(middleware.RateLimitMiddleware(context.Background(), configs.RateLimitConfig{Enabled: false}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 10 {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)))
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error

	r := newEngine(middleware.BodyLimitMiddleware(8))
	r.POST("/up", func(c *gin.Context) {
		_, readErr = io.ReadAll(c.Request.Body)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/up", strings.NewReader("small"))))
	require.NoError(t, readErr)

	assert.Equal(t, http.StatusRequestEntityTooLarge,
		serve(r, httptest.NewRequest(http.MethodPost, "/up", strings.NewReader("far too large body"))))

	// 未声明长度时由 MaxBytesReader 截断
	req := httptest.NewRequest(http.MethodPost, "/up", io.NopCloser(strings.NewReader("far too large body")))
	req.ContentLength = -1
	serve(r, req)

	var mbe *http.MaxBytesError
	assert.ErrorAs(t, readErr, &mbe)
}

func TestCircuitBreakerOpens(t *testing.T) {
	r := newEngine(middleware.CircuitBreakerMiddleware(configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		TimeoutSeconds:    60,
		MaxRequestsInHalf: 1,
	}))

	calls := 0
	r.GET("/boom", func(c *gin.Context) {
		calls++
		c.Status(http.StatusInternalServerError)
	})

	assert.Equal(t, http.StatusInternalServerError, serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil)))
	assert.Equal(t, http.StatusInternalServerError, serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil)))

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil)))
	assert.Equal(t, 2, calls)
}
