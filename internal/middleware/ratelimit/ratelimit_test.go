package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func do(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, Burst: 5})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rr := do(handler, "/api/v1/deployments", "192.168.1.100:12345")
		assert.Equal(t, http.StatusOK, rr.Code, "request %d should succeed", i+1)
	}
}

func TestRateLimiter_BlocksExcessRequests(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, Burst: 2})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(handler, "/api/v1/deployments", "192.168.1.100:12345").Code)
	}

	rr := do(handler, "/api/v1/deployments", "192.168.1.100:12345")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"]["code"])
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, Burst: 1})
	handler := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, do(handler, "/api/v1/deployments", "10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(handler, "/api/v1/deployments", "10.0.0.1:2222").Code, "same IP, different port")
	assert.Equal(t, http.StatusOK, do(handler, "/api/v1/deployments", "10.0.0.2:1111").Code)
	// RemoteAddr rewritten by RealIP carries no port
	assert.Equal(t, http.StatusOK, do(handler, "/api/v1/deployments", "203.0.113.7").Code)
}

func TestRateLimiter_ExemptPaths(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, Burst: 1})
	handler := rl.Middleware(okHandler())

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, do(handler, "/health", "10.0.0.1:1").Code)
		assert.Equal(t, http.StatusOK, do(handler, "/metrics", "10.0.0.1:1").Code)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := New(Config{})
	assert.False(t, rl.Enabled())

	handler := rl.Middleware(okHandler())
	for i := 0; i < 100; i++ {
		require.Equal(t, http.StatusOK, do(handler, "/api/v1/deployments", "10.0.0.1:1").Code)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2022, 7, 14, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	do(rl.Middleware(okHandler()), "/api/v1/deployments", "10.0.0.1:1")
	require.Equal(t, 1, rl.size())

	now = now.Add(30 * time.Second)
	rl.evictIdle()
	assert.Equal(t, 1, rl.size())

	now = now.Add(2 * time.Minute)
	rl.evictIdle()
	assert.Equal(t, 0, rl.size())
}

func TestRateLimiter_RunStopsWithContext(t *testing.T) {
	rl := New(Config{RequestsPerMin: 60, IdleTTL: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
