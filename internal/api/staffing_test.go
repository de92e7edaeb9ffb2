package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/web/auth"
)

func TestClientContacts(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, auth.RoleRecruiter)

	rec := h.do(t, http.MethodPost, "/api/clients", map[string]any{"name": "Multiplex"}, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	clientID := decodeBody(t, rec)["id"].(string)

	rec = h.do(t, http.MethodPost, "/api/clients/"+clientID+"/contacts", map[string]any{
		"name":  "  jane   SMITH ",
		"title": "Project Director",
		"phone": "0400 111 222",
	}, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	contact := decodeBody(t, rec)
	assert.Equal(t, "Jane Smith", contact["name"])
	assert.Equal(t, clientID, contact["client_id"])

	rec = h.do(t, http.MethodPost, "/api/clients/"+clientID+"/contacts", map[string]any{"email": "nope"}, tok)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")

	rec = h.do(t, http.MethodPost, "/api/clients/"+uuid.New().String()+"/contacts", map[string]any{"name": "Ghost"}, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/clients/"+clientID+"/contacts", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["contacts"], 1)

	viewer := h.token(t, auth.RoleViewer)
	rec = h.do(t, http.MethodDelete, "/api/clients/"+clientID+"/contacts/"+contact["id"].(string), nil, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/clients/"+clientID+"/contacts/"+contact["id"].(string), nil, tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodDelete, "/api/clients/"+clientID+"/contacts/bad", nil, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlacementLifecycle(t *testing.T) {
	h := newHarness(t)
	tok := h.token(t, auth.RoleRecruiter)

	rec := h.do(t, http.MethodPost, "/api/candidates", map[string]any{"first_name": "Sam", "last_name": "Sparks", "role": "sparky"}, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	candidateID := decodeBody(t, rec)["id"].(string)

	rec = h.do(t, http.MethodPost, "/api/projects", map[string]any{
		"name":       "Riverside Tower",
		"status":     "active",
		"start_date": "2025-01-06T00:00:00Z",
	}, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	projectID := decodeBody(t, rec)["id"].(string)

	rec = h.do(t, http.MethodPost, "/api/projects/"+projectID+"/placements", map[string]any{
		"candidate_id": candidateID,
		"start_date":   "2025-03-17T00:00:00Z",
		"end_date":     "2025-09-26T00:00:00Z",
		"charge_rate":  950,
		"pay_rate":     700,
	}, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placement := decodeBody(t, rec)
	assert.Equal(t, string(construction.RoleElectrician), placement["role"])
	assert.Equal(t, projectID, placement["project_id"])
	assert.Contains(t, h.events.types(), activity.CandidateChanged)

	stored := h.candidates.rows[uuid.MustParse(candidateID)]
	assert.Equal(t, crm.CandidatePlaced, stored.Status)
	require.NotNil(t, stored.AssignmentEndsAt)
	assert.Equal(t, time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC), stored.AssignmentEndsAt.UTC())

	rec = h.do(t, http.MethodGet, "/api/projects/"+projectID+"/placements", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["placements"], 1)
	assert.Equal(t, float64(250), body["margin"])

	rec = h.do(t, http.MethodGet, "/api/candidates/"+candidateID+"/placements", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["placements"], 1)

	rec = h.do(t, http.MethodPost, "/api/placements/"+placement["id"].(string)+"/end", map[string]any{}, tok)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/projects/"+projectID+"/placements", nil, tok)
	assert.Equal(t, float64(0), decodeBody(t, rec)["margin"])

	rec = h.do(t, http.MethodPost, "/api/projects/"+projectID+"/placements", map[string]any{
		"candidate_id": candidateID,
		"start_date":   "2025-03-17T00:00:00Z",
		"charge_rate":  500,
		"pay_rate":     700,
	}, tok)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "pay_rate")

	rec = h.do(t, http.MethodPost, "/api/projects/"+projectID+"/placements", map[string]any{"start_date": "2025-03-17T00:00:00Z"}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/projects/"+projectID+"/placements", map[string]any{
		"candidate_id": uuid.New().String(),
		"start_date":   "2025-03-17T00:00:00Z",
	}, tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaffingRoutesUnavailable(t *testing.T) {
	h := newHarness(t)
	h.api.deps.Contacts = nil
	h.api.deps.Placements = nil
	tok := h.token(t, auth.RoleRecruiter)

	rec := h.do(t, http.MethodGet, "/api/clients/"+uuid.New().String()+"/contacts", nil, tok)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = h.do(t, http.MethodGet, "/api/projects/"+uuid.New().String()+"/placements", nil, tok)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
