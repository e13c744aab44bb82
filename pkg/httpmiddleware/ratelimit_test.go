package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func fromAddr(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimit_AllowsUpToMax(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i, want := range []string{"2", "1", "0"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, fromAddr("192.168.1.1:1234"))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, fromAddr("192.168.1.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	serve := func(addr string) int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, fromAddr(addr))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, serve("10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, serve("10.0.0.2:1"))
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:2"))
}

func TestRateLimit_Disabled(t *testing.T) {
	handler := RateLimit(t.Context(), RateLimitConfig{})(okHandler())
	for range 10 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, fromAddr("10.0.0.1:1"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiter_SlidingWindow(t *testing.T) {
	base := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	now := base
	l := newLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	l.now = func() time.Time { return now }

	for range 4 {
		_, _, ok := l.take("k")
		require.True(t, ok)
	}
	_, _, ok := l.take("k")
	require.False(t, ok)

	// A quarter into the next window the previous one still weighs 3.
	now = base.Add(75 * time.Second)
	_, _, ok = l.take("k")
	assert.True(t, ok)
	_, _, ok = l.take("k")
	assert.False(t, ok)

	// Two idle windows later the key starts fresh and is evictable before use.
	now = base.Add(5 * time.Minute)
	l.evict()
	assert.Empty(t, l.windows)
	remaining, _, ok := l.take("k")
	assert.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestClientIP(t *testing.T) {
	req := fromAddr("10.1.1.1:5555")
	assert.Equal(t, "10.1.1.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "172.16.0.9")
	assert.Equal(t, "172.16.0.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
