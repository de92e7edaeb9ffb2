package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/advisor"
	"github.com/siteworks/recruitops/internal/config"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/auth"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	api        *API
	tokens     *auth.Tokens
	accounts   *auth.Service
	clients    *memClients
	candidates *memCandidates
	projects   *memProjects
	contacts   *memContacts
	placements *memPlacements
	advisors   *fakeAdvisors
	queue      *fakeQueue
	events     *eventLog
	healthErr  error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens, err := auth.NewTokens(config.AuthConfig{JWTSecret: "test-secret-for-api-tests", TokenTTL: time.Hour})
	require.NoError(t, err)

	h := &harness{
		tokens:     tokens,
		accounts:   auth.NewService(&memUsers{users: map[string]*store.User{}}, tokens),
		clients:    &memClients{rows: map[uuid.UUID]*crm.Client{}},
		candidates: &memCandidates{rows: map[uuid.UUID]*crm.Candidate{}},
		projects:   &memProjects{rows: map[uuid.UUID]*crm.Project{}},
		contacts:   &memContacts{rows: map[uuid.UUID]*crm.Contact{}},
		advisors:   &fakeAdvisors{sessions: map[string][]advisor.Turn{}},
		queue:      &fakeQueue{},
		events:     &eventLog{},
	}
	h.placements = &memPlacements{candidates: h.candidates}
	h.api = New(Deps{
		Clients:    h.clients,
		Candidates: h.candidates,
		Projects:   h.projects,
		Contacts:   h.contacts,
		Placements: h.placements,
		Accounts:   h.accounts,
		Tokens:     tokens,
		Advisors:   h.advisors,
		Jobs:       h.queue,
		Publisher:  h.events,
		Health: map[string]HealthCheck{
			"database": func(context.Context) error { return h.healthErr },
		},
	}, Options{CORSOrigins: []string{"*"}, Profiling: true}, zap.NewNop())
	h.api.now = func() time.Time { return testNow }
	return h
}

func (h *harness) token(t *testing.T, roles ...string) string {
	t.Helper()
	tok, _, err := h.tokens.Issue(&store.User{ID: uuid.New(), Email: "tester@agency.com.au", Roles: roles})
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.api.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	h.healthErr = errors.New("connection refused")
	rec = h.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["database"])
}

func TestAuthorization(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/phases", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/phases", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer := h.token(t, auth.RoleViewer)
	rec = h.do(t, http.MethodGet, "/api/phases", nil, viewer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/clients", map[string]any{"name": "Hutchies"}, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/sync/bench", nil, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginAndMe(t *testing.T) {
	h := newHarness(t)
	_, err := h.accounts.Register(context.Background(), "sam@agency.com.au", "Sam", "correct-horse", auth.RoleAdmin)
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "SAM@agency.com.au", "password": "wrong-horse"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "sam@agency.com.au"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "sam@agency.com.au", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeBody(t, rec)["token"].(string)

	rec = h.do(t, http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "sam@agency.com.au", body["user"].(map[string]any)["email"])
	assert.Len(t, body["permissions"], 5)
}

func TestCreateUser(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, auth.RoleAdmin)

	rec := h.do(t, http.MethodPost, "/api/users", map[string]any{
		"email": "new@agency.com.au", "name": "New", "password": "long-enough", "roles": []string{"viewer"},
	}, h.token(t, auth.RoleRecruiter))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/users", map[string]any{
		"email": "new@agency.com.au", "name": "New", "password": "long-enough", "roles": []string{"viewer"},
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = h.do(t, http.MethodPost, "/api/users", map[string]any{
		"email": "new@agency.com.au", "name": "New", "password": "long-enough",
	}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/users", map[string]any{
		"email": "nope", "password": "x", "roles": []string{"owner"},
	}, admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "roles")
	assert.Contains(t, fields, "password")
}

func TestReferenceData(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, auth.RoleViewer)

	rec := h.do(t, http.MethodGet, "/api/phases", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["phases"], len(construction.Phases()))

	first := construction.Phases()[0]
	rec = h.do(t, http.MethodGet, "/api/phases/"+first.Key+"?size=xl", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, first.Name, body["phase"].(map[string]any)["name"])
	assert.Contains(t, body["crew"], "XL")
	assert.Len(t, body["crew"], 1)

	rec = h.do(t, http.MethodGet, "/api/phases/"+first.Key+"?size=huge", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/phases/nope", nil, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/roles", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["roles"], len(construction.Roles()))

	rec = h.do(t, http.MethodGet, "/api/size?value=%2412.5m", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "L", body["size"])
	assert.Equal(t, 12.5e6, body["amount"])

	rec = h.do(t, http.MethodGet, "/api/size?value=tbc", nil, tok)
	body = decodeBody(t, rec)
	assert.Equal(t, "M", body["size"])
	assert.NotContains(t, body, "amount")

	rec = h.do(t, http.MethodGet, "/api/schedule?start=2025-04-07&size=S", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "S", body["size"])
	assert.Equal(t, "2025-04-07T00:00:00Z", body["start"])

	rec = h.do(t, http.MethodGet, "/api/schedule?start=07/04/2025", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundIsJSON(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["code"])
}

func TestRoutesListed(t *testing.T) {
	h := newHarness(t)
	patterns := map[string]bool{}
	for _, r := range h.api.Routes() {
		patterns[r.Method+" "+r.Pattern] = true
	}
	for _, want := range []string{
		"POST /api/auth/login",
		"GET /api/phases/{key}",
		"GET /api/size",
		"PUT /api/clients/{id}",
		"DELETE /api/candidates/{id}",
		"GET /api/bench",
		"GET /api/projects/{id}/matches",
		"GET /api/forecast/gap",
		"POST /api/advisors/{name}/chat",
		"POST /api/sync/{target}",
		"GET /api/jobs/stats",
		"GET /api/ws/activity",
		"GET /healthz",
	} {
		assert.True(t, patterns[want], want)
	}
}

func TestProfilingRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/debug/pprof/", nil, h.token(t, auth.RoleRecruiter))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodGet, "/debug/pprof/", nil, h.token(t, auth.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActivityNotRunning(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/ws/activity", nil, h.token(t, auth.RoleViewer))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
