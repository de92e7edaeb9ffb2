package api

import (
	"net/http"

	"github.com/siteworks/recruitops/internal/jobs"
	"github.com/siteworks/recruitops/internal/syncer"
	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		response.RenderBadRequest(w, "email and password are required")
		return
	}
	sess, err := a.deps.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, sess)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	perms := make([]auth.Permission, 0)
	for _, perm := range []auth.Permission{auth.PermRead, auth.PermWrite, auth.PermSync, auth.PermAdvisor, auth.PermManageUsers} {
		if p.Can(perm) {
			perms = append(perms, perm)
		}
	}
	response.OK(w, map[string]any{"user": p, "permissions": perms})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := a.deps.Accounts.Register(r.Context(), req.Email, req.Name, req.Password, req.Roles...)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.Created(w, u)
}

func (a *API) syncTargets(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{"targets": syncer.Targets()})
}

// enqueueSync queues a sync run for the worker and answers 202 with the job
func (a *API) enqueueSync(w http.ResponseWriter, r *http.Request) {
	if a.deps.Jobs == nil {
		response.RenderServiceUnavailable(w, "Job queue is not configured")
		return
	}
	job, err := syncer.NewJob(router.PathParam(r, "target"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	job.Priority = jobs.PriorityHigh
	if a.opts.MaxAttempts > 0 {
		job.MaxAttempts = a.opts.MaxAttempts
	}
	if p, ok := auth.FromContext(r.Context()); ok {
		job.Payload["requested_by"] = p.Email
	}
	if err := a.deps.Jobs.Enqueue(r.Context(), job); err != nil {
		a.renderError(w, r, err)
		return
	}
	response.JSON(w, http.StatusAccepted, job)
}

func (a *API) jobStats(w http.ResponseWriter, r *http.Request) {
	if a.deps.Jobs == nil {
		response.RenderServiceUnavailable(w, "Job queue is not configured")
		return
	}
	queue := r.URL.Query().Get("queue")
	if queue == "" {
		queue = jobs.DefaultQueue
	}
	stats, err := a.deps.Jobs.Stats(r.Context(), queue)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, map[string]any{"queue": queue, "stats": stats})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	if a.deps.Jobs == nil {
		response.RenderServiceUnavailable(w, "Job queue is not configured")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	job, err := a.deps.Jobs.Get(r.Context(), id)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, job)
}

func (a *API) activity(w http.ResponseWriter, r *http.Request) {
	if a.deps.Activity == nil {
		response.RenderServiceUnavailable(w, "Activity feed is not running")
		return
	}
	a.deps.Activity.ServeHTTP(w, r)
}
