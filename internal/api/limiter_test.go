package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"turfhub/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerClient(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 2})
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("10.0.0.1"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 1})
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	now = now.Add(clientIdleAfter / 2)
	l.allow("10.0.0.2")
	assert.Len(t, l.clients, 2)

	now = now.Add(clientIdleAfter/2 + time.Second)
	l.allow("10.0.0.2")
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "10.0.0.2")
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	handler := l.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Empty(t, l.clients)
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.7:52100"
	assert.Equal(t, "192.168.1.7", clientKey(r))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientKey(r))
}
