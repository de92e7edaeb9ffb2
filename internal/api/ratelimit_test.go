package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/middleware"
	"github.com/siteworks/recruitops/internal/web/ratelimit"
)

func withLimiter(t *testing.T, h *harness, limit int, proxies ...string) *recordingLimiter {
	t.Helper()
	inner, err := ratelimit.NewMemory(ratelimit.Options{Limit: limit, Window: time.Minute})
	require.NoError(t, err)
	trusted, err := middleware.ParseProxies(proxies)
	require.NoError(t, err)

	l := &recordingLimiter{inner: inner}
	h.api.deps.Limiter = l
	h.api.opts.TrustedProxies = trusted
	h.api.router = h.api.routes()
	return l
}

func TestRateLimitPerUser(t *testing.T) {
	h := newHarness(t)
	l := withLimiter(t, h, 1)
	alice := h.token(t, auth.RoleRecruiter)
	bob := h.token(t, auth.RoleRecruiter)

	rec := h.do(t, http.MethodGet, "/api/phases", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/phases", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code, "users behind one address have their own budget")

	rec = h.do(t, http.MethodGet, "/api/phases", nil, alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	keys := l.seen()
	require.Len(t, keys, 3)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "user:"), k)
	}
}

func TestRateLimitLoginByAddress(t *testing.T) {
	h := newHarness(t)
	l := withLimiter(t, h, 1)

	login := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"email":"nobody@agency.com.au","password":"wrong-horse"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		h.api.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, login("203.0.113.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, login("203.0.113.2").Code, "a rotated forwarding header is not a new client")
	assert.Equal(t, []string{"ip:192.0.2.1", "ip:192.0.2.1"}, l.seen())
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	h := newHarness(t)
	l := withLimiter(t, h, 5, "192.0.2.0/24")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"nobody@agency.com.au","password":"wrong-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.api.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{"ip:203.0.113.7"}, l.seen())
}
