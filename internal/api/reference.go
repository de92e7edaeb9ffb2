package api

import (
	"net/http"

	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

func (a *API) listPhases(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"phases":      construction.Phases(),
		"total_weeks": construction.TotalWeeks(),
	})
}

// getPhase returns a phase with its crew bands, optionally for one size
func (a *API) getPhase(w http.ResponseWriter, r *http.Request) {
	key := router.PathParam(r, "key")
	phase, ok := construction.PhaseByKey(key)
	if !ok {
		response.RenderNotFound(w, "unknown phase "+key)
		return
	}

	sizes := construction.Sizes()
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err := construction.ParseSize(raw)
		if err != nil {
			response.RenderBadRequest(w, err.Error())
			return
		}
		sizes = []construction.Size{size}
	}
	crew := make(map[construction.Size]map[construction.Role]construction.Band, len(sizes))
	for _, s := range sizes {
		crew[s] = construction.PhaseCrew(phase.Key, s)
	}
	response.OK(w, map[string]any{"phase": phase, "crew": crew})
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{"roles": construction.Roles()})
}

// projectSize classifies ?value= the way new projects are sized
func (a *API) projectSize(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	body := map[string]any{
		"value": value,
		"size":  construction.GetProjectSize(value),
	}
	if amount, err := construction.ParseContractValue(value); err == nil {
		body["amount"] = amount
	}
	response.OK(w, body)
}

// previewSchedule lays out the phases from ?start= for ?size= or ?value=
func (a *API) previewSchedule(w http.ResponseWriter, r *http.Request) {
	start, err := router.QueryDate(r, "start", a.now())
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	size := construction.GetProjectSize(r.URL.Query().Get("value"))
	if raw := r.URL.Query().Get("size"); raw != "" {
		if size, err = construction.ParseSize(raw); err != nil {
			response.RenderBadRequest(w, err.Error())
			return
		}
	}
	response.OK(w, construction.BuildSchedule(start, size))
}
