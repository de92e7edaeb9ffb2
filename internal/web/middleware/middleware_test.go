package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/siteworks/recruitops/internal/config"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mark("a"), nil, mark("b"))(okHandler)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := RequestID()(Recovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/bench", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "panic recovered", entry.Message)
	assert.Equal(t, "boom", entry.ContextMap()["panic"])
	assert.NotEmpty(t, entry.ContextMap()["request_id"])
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("hello"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/roles", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	entries := logs.All()
	require.Len(t, entries, 2, "healthz is skipped")
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, int64(5), entries[0].ContextMap()["bytes"])
	assert.Equal(t, "http", entries[0].LoggerName)
	assert.Equal(t, int64(404), entries[1].ContextMap()["status"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://dash.example.com", "*.siteworks.com.au"})(okHandler)

	tests := []struct {
		name       string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{"exact origin", "GET", "https://dash.example.com", false, "https://dash.example.com", 200},
		{"wildcard subdomain", "GET", "https://ops.siteworks.com.au", false, "https://ops.siteworks.com.au", 200},
		{"bare domain not matched", "GET", "https://siteworks.com.au", false, "", 200},
		{"unknown origin", "GET", "https://evil.test", false, "", 200},
		{"preflight", "OPTIONS", "https://dash.example.com", true, "https://dash.example.com", 204},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/candidates", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
			}
		})
	}
}

func newTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tk, err := auth.NewTokens(config.AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour})
	require.NoError(t, err)
	return tk
}

func TestAuthenticate(t *testing.T) {
	tk := newTokens(t)
	token, _, err := tk.Issue(&store.User{ID: uuid.New(), Email: "a@b.co", Roles: []string{auth.RoleViewer}})
	require.NoError(t, err)

	var got auth.Principal
	h := Authenticate(tk)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"valid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, 200},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, 200},
		{"missing header", func(*http.Request) {}, 401},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, 401},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, 401},
		{"query token on websocket", func(r *http.Request) {
			r.Header.Set("Upgrade", "websocket")
			q := r.URL.Query()
			q.Set("access_token", token)
			r.URL.RawQuery = q.Encode()
		}, 200},
		{"query token on plain request", func(r *http.Request) {
			r.URL.RawQuery = "access_token=" + token
		}, 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = auth.Principal{}
			req := httptest.NewRequest("GET", "/api/bench", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == 200 {
				assert.Equal(t, "a@b.co", got.Email)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(auth.PermSync)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sync/bench", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for role, want := range map[string]int{auth.RoleViewer: 403, auth.RoleRecruiter: 200} {
		req := httptest.NewRequest("POST", "/api/sync/bench", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "u", Roles: []string{role}}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (*ratelimit.Decision, error) {
	return nil, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewMemory(ratelimit.Options{Limit: 2, Window: time.Minute})
	require.NoError(t, err)
	h := RateLimit(limiter, nil, zap.NewNop())(okHandler)

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/roles", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, 200, do("10.0.0.1").Code)
	rec := do("10.0.0.1")
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 200, do("10.0.0.2").Code)

	open := RateLimit(failingLimiter{}, nil, zap.NewNop())(okHandler)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, 200, rec.Code, "limiter errors fail open")

	rec = httptest.NewRecorder()
	RateLimit(nil, nil, zap.NewNop())(okHandler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, 200, rec.Code)
}

func TestRateLimitKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "ip:198.51.100.7", RateLimitKey(req, nil), "forwarding headers from untrusted peers are ignored")

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:4000"
	assert.Equal(t, "ip:::1", RateLimitKey(req, nil))

	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{UserID: "u-1"}))
	assert.Equal(t, "user:u-1", RateLimitKey(req, nil))
}

func TestClientIPTrustedProxies(t *testing.T) {
	proxies, err := ParseProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "6.6.6.6, 203.0.113.9, 192.0.2.10")
	assert.Equal(t, "203.0.113.9", proxies.ClientIP(req), "spoofed leftmost hops are skipped")

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.20")
	assert.Equal(t, "203.0.113.20", proxies.ClientIP(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "10.9.9.9")
	assert.Equal(t, "10.1.2.3", proxies.ClientIP(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.50:443"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "203.0.113.50", proxies.ClientIP(req))

	_, err = ParseProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

