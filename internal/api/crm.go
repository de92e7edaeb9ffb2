package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

// pathID parses {id}, rendering 400 when malformed
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := router.PathUUID(r, "id")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (a *API) publish(eventType, message string, data any) {
	if a.deps.Publisher != nil {
		a.deps.Publisher.Publish(activity.New(eventType, message, data))
	}
}

// Clients

func (a *API) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := a.deps.Clients.List(r.Context(), store.ClientFilter{
		Search:      r.URL.Query().Get("q"),
		ListOptions: router.ListOptions(r),
	})
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"clients": clients})
}

func (a *API) createClient(w http.ResponseWriter, r *http.Request) {
	var c crm.Client
	if !decode(w, r, &c) {
		return
	}
	c.ID = uuid.Nil
	c.Normalize()
	if err := c.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Clients.Create(r.Context(), &c); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.Created(w, &c)
}

func (a *API) getClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.deps.Clients.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, c)
}

// updateClient applies the body on top of the stored record
func (a *API) updateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.deps.Clients.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	if !decode(w, r, c) {
		return
	}
	c.ID = id
	c.Normalize()
	if err := c.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Clients.Update(r.Context(), c); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, c)
}

func (a *API) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.deps.Clients.Delete(r.Context(), id); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Candidates

func (a *API) listCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.CandidateFilter{
		Skill:       q.Get("skill"),
		Search:      q.Get("q"),
		ListOptions: router.ListOptions(r),
	}
	if role := q.Get("role"); role != "" {
		f.Role = crm.NormalizeRole(role)
	}
	if status := q.Get("status"); status != "" {
		f.Status = crm.NormalizeStatus(status)
	}
	cands, err := a.deps.Candidates.List(r.Context(), f)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"candidates": cands})
}

func (a *API) createCandidate(w http.ResponseWriter, r *http.Request) {
	var c crm.Candidate
	if !decode(w, r, &c) {
		return
	}
	c.ID = uuid.Nil
	c.Normalize()
	if err := c.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Candidates.Create(r.Context(), &c); err != nil {
		a.renderError(w, r, err)
		return
	}
	a.publish(activity.CandidateChanged, c.FullName()+" added", map[string]any{"id": c.ID})
	response.Created(w, &c)
}

func (a *API) getCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.deps.Candidates.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"candidate":    c,
		"bench_status": crm.BenchStatus(c, a.now(), a.opts.BenchWindow),
		"available_at": crm.AvailableAt(c, a.now()),
	})
}

func (a *API) updateCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := a.deps.Candidates.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	if !decode(w, r, c) {
		return
	}
	c.ID = id
	c.Normalize()
	if err := c.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Candidates.Update(r.Context(), c); err != nil {
		a.renderError(w, r, err)
		return
	}
	a.publish(activity.CandidateChanged, c.FullName()+" updated", map[string]any{"id": c.ID, "status": c.Status})
	response.OK(w, c)
}

func (a *API) deleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.deps.Candidates.Delete(r.Context(), id); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.NoContent(w)
}

// bench lists everyone available now or finishing within the bench window.
// ?role= narrows the entries; the summary always covers every role.
func (a *API) bench(w http.ResponseWriter, r *http.Request) {
	cands, err := a.deps.Candidates.ListActive(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	now := a.now()
	entries := crm.Bench(cands, now, a.opts.BenchWindow)
	summary := crm.SortedSupply(crm.BenchSummary(entries))

	if role := r.URL.Query().Get("role"); role != "" {
		want := crm.NormalizeRole(role)
		filtered := make([]crm.BenchEntry, 0, len(entries))
		for _, e := range entries {
			if e.Candidate.Role == want {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	response.OK(w, map[string]any{
		"as_of":       now,
		"window_days": int(a.opts.BenchWindow.Hours() / 24),
		"entries":     entries,
		"summary":     summary,
	})
}

// Projects

func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ProjectFilter{Search: q.Get("q"), ListOptions: router.ListOptions(r)}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, crm.ProjectStatus(strings.ToLower(strings.TrimSpace(s))))
		}
	}
	if raw := q.Get("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RenderBadRequest(w, "invalid client_id")
			return
		}
		f.ClientID = &id
	}
	projects, err := a.deps.Projects.List(r.Context(), f)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"projects": projects})
}

func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	var p crm.Project
	if !decode(w, r, &p) {
		return
	}
	p.ID = uuid.Nil
	p.Normalize()
	if err := p.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Projects.Create(r.Context(), &p); err != nil {
		a.renderError(w, r, err)
		return
	}
	a.publish(activity.ProjectChanged, p.Name+" added", map[string]any{"id": p.ID, "status": p.Status})
	response.Created(w, &p)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.deps.Projects.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, p)
}

// updateProject re-derives the size when the contract value changes and no
// explicit size is sent
func (a *API) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.deps.Projects.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	prevValue, prevSize := p.ContractValue, p.Size
	if !decode(w, r, p) {
		return
	}
	if p.ContractValue != prevValue && p.Size == prevSize {
		p.Size = ""
	}
	p.ID = id
	p.Normalize()
	if err := p.Validate(); err != nil {
		a.renderError(w, r, err)
		return
	}
	if err := a.deps.Projects.Update(r.Context(), p); err != nil {
		a.renderError(w, r, err)
		return
	}
	a.publish(activity.ProjectChanged, p.Name+" updated", map[string]any{"id": p.ID, "status": p.Status})
	response.OK(w, p)
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.deps.Projects.Delete(r.Context(), id); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.NoContent(w)
}

func (a *API) projectSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.deps.Projects.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	sched := p.Schedule()
	body := map[string]any{"project": p, "schedule": sched}
	if current, ok := sched.PhaseAt(a.now()); ok {
		body["current_phase"] = current.Key
	}
	response.OK(w, body)
}

// HireMatches pairs a hire with its ranked candidates
type HireMatches struct {
	Hire    construction.Hire `json:"hire"`
	Matches []crm.Match       `json:"matches"`
}

// projectMatches ranks bench candidates for each hire on the project.
// Hires whose phase has already started are left out unless ?all=true.
// ?role=, ?phase=, ?limit= and ?max_km= narrow the result.
func (a *API) projectMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := a.deps.Projects.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	cands, err := a.deps.Candidates.ListActive(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}

	q := r.URL.Query()
	opts := crm.DefaultMatchOptions()
	opts.Limit = router.QueryInt(r, "limit", opts.Limit)
	opts.MaxDistanceKm = float64(router.QueryInt(r, "max_km", int(opts.MaxDistanceKm)))
	if skills := q.Get("skills"); skills != "" {
		opts.RequiredSkills = crm.SplitSkills(skills)
	}
	var role construction.Role
	if raw := q.Get("role"); raw != "" {
		role = crm.NormalizeRole(raw)
	}
	phase := q.Get("phase")
	all := router.QueryBool(r, "all", false)

	now := a.now()
	out := make([]HireMatches, 0)
	for _, h := range p.Schedule().Hires() {
		if role != "" && h.Role != role {
			continue
		}
		if phase != "" && h.PhaseKey != phase {
			continue
		}
		if !all && h.PhaseStart.Before(now) {
			continue
		}
		out = append(out, HireMatches{Hire: h, Matches: crm.MatchCandidates(p, h, cands, now, opts)})
	}
	response.OK(w, map[string]any{"project": p, "hires": out})
}
