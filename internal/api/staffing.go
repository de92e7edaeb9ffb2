package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

// Contacts

func (a *API) listContacts(w http.ResponseWriter, r *http.Request) {
	if a.deps.Contacts == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	contacts, err := a.deps.Contacts.ListByClient(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"contacts": contacts})
}

func (a *API) createContact(w http.ResponseWriter, r *http.Request) {
	if a.deps.Contacts == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := a.deps.Clients.Get(r.Context(), id); err != nil {
		a.renderError(w, r, err)
		return
	}
	var c crm.Contact
	if !decode(w, r, &c) {
		return
	}
	c.ID = uuid.Nil
	c.ClientID = id
	c.Normalize()
	if err := c.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Contacts.Create(r.Context(), &c); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.Created(w, &c)
}

func (a *API) deleteContact(w http.ResponseWriter, r *http.Request) {
	if a.deps.Contacts == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, err := router.PathUUID(r, "contactID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	if err := a.deps.Contacts.Delete(r.Context(), id); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Placements

func (a *API) projectPlacements(w http.ResponseWriter, r *http.Request) {
	if a.deps.Placements == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	placements, err := a.deps.Placements.ListByProject(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"placements": placements, "margin": dailyMargin(placements)})
}

func (a *API) candidatePlacements(w http.ResponseWriter, r *http.Request) {
	if a.deps.Placements == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	placements, err := a.deps.Placements.ListByCandidate(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"placements": placements})
}

// createPlacement places a candidate on the project in the path. The
// candidate is marked placed until the placement's end date.
func (a *API) createPlacement(w http.ResponseWriter, r *http.Request) {
	if a.deps.Placements == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.deps.Projects.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	var pl crm.Placement
	if !decode(w, r, &pl) {
		return
	}
	pl.ID = uuid.Nil
	pl.ProjectID = id
	if pl.Role != "" {
		pl.Role = crm.NormalizeRole(string(pl.Role))
	}
	if pl.CandidateID == uuid.Nil {
		response.RenderBadRequest(w, "candidate_id is required")
		return
	}
	if err := pl.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Placements.Place(r.Context(), &pl); err != nil {
		a.renderError(w, r, err)
		return
	}
	a.publish(activity.CandidateChanged, "Candidate placed on "+p.Name,
		map[string]any{"candidate_id": pl.CandidateID, "project_id": id, "role": pl.Role})
	response.Created(w, &pl)
}

type endPlacementRequest struct {
	EndDate time.Time `json:"end_date"`
}

func (a *API) endPlacement(w http.ResponseWriter, r *http.Request) {
	if a.deps.Placements == nil {
		response.RenderServiceUnavailable(w, "")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req endPlacementRequest
	if !decode(w, r, &req) {
		return
	}
	if req.EndDate.IsZero() {
		req.EndDate = a.now()
	}
	if err := a.deps.Placements.End(r.Context(), id, req.EndDate); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.NoContent(w)
}

// dailyMargin totals charge minus pay across open placements
func dailyMargin(placements []*crm.Placement) float64 {
	var total float64
	for _, p := range placements {
		if p.EndDate == nil {
			total += p.Margin()
		}
	}
	return total
}
