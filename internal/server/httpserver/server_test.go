package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.EndpointAddrHTTP = ":99999" })

	if err := f.server.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	down := NewHTTPServer(testConfig(), discardLogger(), &fakeUsers{}, &fakeTodos{}, nil,
		func(context.Context) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	down.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `todoapi_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Route not found", env.Message)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/todos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec, _ := f.do(t, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(common.RequestIDHeaderName, "req-42")
	rec, _ := f.do(t, req)
	assert.Equal(t, "req-42", rec.Header().Get(common.RequestIDHeaderName))

	rec, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get(common.RequestIDHeaderName))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ValidationError("bad"), http.StatusBadRequest},
		{common.NewError(common.ErrorUnauthorized, "no"), http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.NewError(common.ErrorNotFound, "gone"), http.StatusNotFound},
		{common.NewError(common.ErrorAlreadyExists, "dup"), http.StatusConflict},
		{common.NewError(common.ErrorRateLimited, "slow"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
		{common.WrapError(common.ErrorUnauthorized, "refresh", common.ErrorNotFound), http.StatusUnauthorized},
		{fmt.Errorf("outer: %w", common.NewError(common.ErrorNotFound, "gone")), http.StatusNotFound},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
